package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trainlog/internal/buffer"
	"trainlog/internal/metrics"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestWriteFIT(t *testing.T) {
	dir := t.TempDir()
	store, err := buffer.Open(dir)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := store.CreateSession("s1", start, ""); err != nil {
		t.Fatalf("creating session: %v", err)
	}

	agg := metrics.New(metrics.Config{FTP: 200})
	for i := 0; i < 60; i++ {
		s := buffer.Sample{
			SessionID: "s1",
			Monotonic: time.Duration(i) * time.Second,
			Wall:      start.Add(time.Duration(i) * time.Second),
			Power:     intPtr(200),
			HeartRate: intPtr(150),
			Cadence:   intPtr(90),
			Speed:     floatPtr(8.0),
			Lat:       floatPtr(47.36),
			Lng:       floatPtr(8.54),
			Altitude:  floatPtr(408),
			Distance:  floatPtr(float64(i) * 8),
		}
		if err := store.Append(s); err != nil {
			t.Fatalf("appending: %v", err)
		}
		agg.Ingest(s)
	}

	handle, err := store.Finalize("s1")
	if err != nil {
		t.Fatalf("finalizing: %v", err)
	}

	path := filepath.Join(dir, "ride.fit")
	if err := WriteFIT(path, handle, agg.Snapshot()); err != nil {
		t.Fatalf("WriteFIT: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("fit file is empty")
	}
}

func TestSampleRecordScalings(t *testing.T) {
	s := buffer.Sample{
		Wall:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Speed:    floatPtr(10.0),  // m/s
		Distance: floatPtr(123.4), // m
		Altitude: floatPtr(500.0), // m
		Power:    intPtr(250),
		Lat:      floatPtr(45.0),
		Lng:      floatPtr(-90.0),
	}

	rec := sampleRecord(s)
	if rec.EnhancedSpeed != 10000 {
		t.Errorf("speed = %d mm/s, want 10000", rec.EnhancedSpeed)
	}
	if rec.Distance != 12340 {
		t.Errorf("distance = %d cm, want 12340", rec.Distance)
	}
	if rec.EnhancedAltitude != 5000 {
		t.Errorf("altitude = %d, want (500+500)*5 = 5000", rec.EnhancedAltitude)
	}
	if rec.Power != 250 {
		t.Errorf("power = %d, want 250", rec.Power)
	}
	if rec.PositionLat != int32(45.0*degreesToSemicircles) {
		t.Errorf("lat = %d semicircles", rec.PositionLat)
	}
	if rec.PositionLong != int32(-90.0*degreesToSemicircles) {
		t.Errorf("lng = %d semicircles", rec.PositionLong)
	}
}
