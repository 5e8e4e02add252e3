package analysis

import "testing"

func TestPowerZone(t *testing.T) {
	ftp := 200

	tests := []struct {
		watts float64
		want  int
	}{
		{0, 0},
		{100, 0}, // 50% recovery
		{130, 1}, // 65% endurance
		{170, 2}, // 85% tempo
		{190, 3}, // 95% threshold
		{220, 4}, // 110% vo2max
		{260, 5}, // 130% anaerobic
		{400, 6}, // 200% neuromuscular
	}

	for _, tt := range tests {
		if got := PowerZone(tt.watts, ftp); got != tt.want {
			t.Errorf("PowerZone(%v, %d) = %d, want %d", tt.watts, ftp, got, tt.want)
		}
	}
}

func TestPowerZoneBoundaries(t *testing.T) {
	// Boundary values belong to the zone above.
	ftp := 100
	if got := PowerZone(55, ftp); got != 1 {
		t.Errorf("PowerZone at 55%% FTP = %d, want 1", got)
	}
	if got := PowerZone(54.9, ftp); got != 0 {
		t.Errorf("PowerZone just below 55%% FTP = %d, want 0", got)
	}
}

func TestPowerZoneWithoutFTP(t *testing.T) {
	if got := PowerZone(200, 0); got != -1 {
		t.Errorf("PowerZone without FTP = %d, want -1", got)
	}
}

func TestHRZone(t *testing.T) {
	lthr := 160

	tests := []struct {
		bpm  float64
		want int
	}{
		{100, 0},
		{135, 1},
		{145, 2},
		{155, 3},
		{170, 4},
	}

	for _, tt := range tests {
		if got := HRZone(tt.bpm, lthr); got != tt.want {
			t.Errorf("HRZone(%v, %d) = %d, want %d", tt.bpm, lthr, got, tt.want)
		}
	}
}

func TestHRZoneWithoutThreshold(t *testing.T) {
	if got := HRZone(150, 0); got != -1 {
		t.Errorf("HRZone without threshold = %d, want -1", got)
	}
}
