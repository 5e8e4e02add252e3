package metrics

import (
	"math"
	"testing"
	"time"

	"trainlog/internal/buffer"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleAt(second int) buffer.Sample {
	return buffer.Sample{
		Monotonic: time.Duration(second) * time.Second,
		Wall:      testStart.Add(time.Duration(second) * time.Second),
	}
}

func TestIngestRunningStats(t *testing.T) {
	agg := New(Config{FTP: 200, ThresholdHR: 160})

	powers := []int{180, 220, 200}
	for i, p := range powers {
		s := sampleAt(i)
		s.Power = intPtr(p)
		s.HeartRate = intPtr(140 + i)
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if snap.Power.Min != 180 || snap.Power.Max != 220 {
		t.Errorf("power min/max = %f/%f, want 180/220", snap.Power.Min, snap.Power.Max)
	}
	if math.Abs(snap.Power.Avg-200) > 0.001 {
		t.Errorf("power avg = %f, want 200", snap.Power.Avg)
	}
	if snap.HeartRate.Count != 3 {
		t.Errorf("HR count = %d, want 3", snap.HeartRate.Count)
	}
	if snap.Elapsed != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", snap.Elapsed)
	}
}

func TestNilReadingsDoNotCountAsZero(t *testing.T) {
	agg := New(Config{})

	s := sampleAt(0)
	s.Power = intPtr(200)
	agg.Ingest(s)

	// Power meter dropout: no reading at all.
	agg.Ingest(sampleAt(1))

	snap := agg.Snapshot()
	if snap.Power.Count != 1 {
		t.Errorf("power count = %d, want 1", snap.Power.Count)
	}
	if snap.Power.Min != 200 {
		t.Errorf("power min = %f, want 200 (dropout must not register as 0)", snap.Power.Min)
	}
	if snap.HeartRate.Count != 0 || snap.HeartRate.Avg != 0 {
		t.Errorf("HR with no samples = %+v, want zero-valued", snap.HeartRate)
	}
}

func TestStreamingNormalizedPower(t *testing.T) {
	agg := New(Config{FTP: 200})

	for i := 0; i < 60; i++ {
		s := sampleAt(i)
		s.Power = intPtr(200)
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if math.Abs(snap.NormalizedPower-200) > 0.001 {
		t.Errorf("NP for constant 200W = %f, want 200", snap.NormalizedPower)
	}
}

func TestNormalizedPowerUndefinedBelowWindow(t *testing.T) {
	agg := New(Config{})

	for i := 0; i < 29; i++ {
		s := sampleAt(i)
		s.Power = intPtr(250)
		agg.Ingest(s)
	}

	if np := agg.Snapshot().NormalizedPower; np != 0 {
		t.Errorf("NP with 29s of data = %f, want 0", np)
	}
}

func TestGapDoesNotAccrueActiveTime(t *testing.T) {
	agg := New(Config{})

	speed := floatPtr(5.0)
	for _, sec := range []int{0, 1, 2, 123, 124} {
		s := sampleAt(sec)
		s.Speed = speed
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if snap.Elapsed != 124*time.Second {
		t.Errorf("elapsed = %v, want 124s (gaps included)", snap.Elapsed)
	}
	// Two 1s intervals before the gap, one after. The 121s jump is
	// excluded from both active and moving time.
	if snap.Active != 3*time.Second {
		t.Errorf("active = %v, want 3s", snap.Active)
	}
	if snap.Moving != 3*time.Second {
		t.Errorf("moving = %v, want 3s", snap.Moving)
	}
}

func TestStandingStillIsNotMoving(t *testing.T) {
	agg := New(Config{})

	for i := 0; i < 10; i++ {
		s := sampleAt(i)
		s.Speed = floatPtr(0.1) // GPS drift
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if snap.Moving != 0 {
		t.Errorf("moving while stationary = %v, want 0", snap.Moving)
	}
	if snap.Active != 9*time.Second {
		t.Errorf("active = %v, want 9s", snap.Active)
	}
	if snap.Distance != 0 {
		t.Errorf("distance from drift = %f, want 0", snap.Distance)
	}
}

func TestDistancePrefersCumulativeReading(t *testing.T) {
	agg := New(Config{})

	for i := 0; i < 5; i++ {
		s := sampleAt(i)
		s.Distance = floatPtr(float64(i) * 8)
		s.Speed = floatPtr(100) // bogus, must be ignored
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if math.Abs(snap.Distance-32) > 0.001 {
		t.Errorf("distance = %f, want 32 (from cumulative readings)", snap.Distance)
	}
}

func TestDistanceIntegratesSpeedWithoutReadings(t *testing.T) {
	agg := New(Config{})

	for i := 0; i < 11; i++ {
		s := sampleAt(i)
		s.Speed = floatPtr(4.0)
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	// First sample has no credited interval; 10 intervals at 4 m/s.
	if math.Abs(snap.Distance-40) > 0.001 {
		t.Errorf("distance = %f, want 40", snap.Distance)
	}
}

func TestAscentEpsilonRejectsJitter(t *testing.T) {
	agg := New(Config{AscentEpsilon: 1.0})

	// 0.4m oscillation never crosses the epsilon.
	alts := []float64{100, 100.4, 100.1, 100.4, 100.2}
	for i, alt := range alts {
		s := sampleAt(i)
		s.Altitude = floatPtr(alt)
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if snap.Ascent != 0 || snap.Descent != 0 {
		t.Errorf("ascent/descent from jitter = %f/%f, want 0/0", snap.Ascent, snap.Descent)
	}
}

func TestAscentAccumulatesRealClimbing(t *testing.T) {
	agg := New(Config{AscentEpsilon: 1.0})

	alts := []float64{100, 102, 104, 103, 101}
	for i, alt := range alts {
		s := sampleAt(i)
		s.Altitude = floatPtr(alt)
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if math.Abs(snap.Ascent-4) > 0.001 {
		t.Errorf("ascent = %f, want 4", snap.Ascent)
	}
	if math.Abs(snap.Descent-3) > 0.001 {
		t.Errorf("descent = %f, want 3", snap.Descent)
	}
}

func TestTimeInZones(t *testing.T) {
	agg := New(Config{FTP: 200, ThresholdHR: 160})

	// 60s in zone 2 (tempo, 85% FTP), then 30s in zone 4 (vo2max).
	for i := 0; i < 91; i++ {
		s := sampleAt(i)
		if i < 61 {
			s.Power = intPtr(170)
		} else {
			s.Power = intPtr(220)
		}
		s.HeartRate = intPtr(150)
		agg.Ingest(s)
	}

	snap := agg.Snapshot()
	if snap.PowerZones[2] != 60*time.Second {
		t.Errorf("zone 3 time = %v, want 60s", snap.PowerZones[2])
	}
	if snap.PowerZones[4] != 30*time.Second {
		t.Errorf("zone 5 time = %v, want 30s", snap.PowerZones[4])
	}
	// 150bpm at 160 LTHR is 93.75%, HR zone 3.
	if snap.HRZones[3] != 90*time.Second {
		t.Errorf("HR zone 4 time = %v, want 90s", snap.HRZones[3])
	}
}

func TestZonesDisabledWithoutThresholds(t *testing.T) {
	agg := New(Config{})

	s := sampleAt(0)
	s.Power = intPtr(300)
	s.HeartRate = intPtr(170)
	agg.Ingest(s)

	snap := agg.Snapshot()
	for i, d := range snap.PowerZones {
		if d != 0 {
			t.Errorf("power zone %d accumulated %v without FTP", i, d)
		}
	}
	for i, d := range snap.HRZones {
		if d != 0 {
			t.Errorf("HR zone %d accumulated %v without threshold", i, d)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	agg := New(Config{})

	s := sampleAt(0)
	s.Power = intPtr(100)
	agg.Ingest(s)

	before := agg.Snapshot()

	s2 := sampleAt(1)
	s2.Power = intPtr(300)
	agg.Ingest(s2)

	if before.Power.Max != 100 {
		t.Errorf("earlier snapshot mutated: max = %f, want 100", before.Power.Max)
	}
}
