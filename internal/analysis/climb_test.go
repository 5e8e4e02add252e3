package analysis

import (
	"math"
	"testing"
	"time"

	"trainlog/internal/buffer"
)

func TestVAM(t *testing.T) {
	tests := []struct {
		name   string
		ascent float64
		moving time.Duration
		want   float64
	}{
		{"classic climb", 1000, time.Hour, 1000},
		{"half hour", 500, 30 * time.Minute, 1000},
		{"flat ride", 0, time.Hour, 0},
		{"no moving time", 800, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VAM(tt.ascent, tt.moving)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("VAM = %f, want %f", got, tt.want)
			}
		})
	}
}

func climbSamples(altitudes []float64) []buffer.Sample {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	samples := make([]buffer.Sample, len(altitudes))
	for i, alt := range altitudes {
		// 10m of horizontal travel per second keeps segments above
		// the jitter threshold.
		samples[i] = buffer.Sample{
			Wall:     start.Add(time.Duration(i) * time.Second),
			Altitude: floatPtr(alt),
			Distance: floatPtr(float64(i) * 10),
		}
	}
	return samples
}

func TestGradesBucketsTime(t *testing.T) {
	// 10m run per segment: +0.5m rise is a 5% grade (moderate),
	// -0.5m is -5% (descent), 0 is flat.
	altitudes := []float64{100, 100.5, 101, 101, 100.5, 100}
	result := Grades(climbSamples(altitudes))

	if got := result.TimeInBand[1]; got != 1*time.Second {
		t.Errorf("flat time = %v, want 1s", got)
	}
	if got := result.TimeInBand[2]; got != 2*time.Second {
		t.Errorf("moderate climb time = %v, want 2s", got)
	}
	if got := result.TimeInBand[0]; got != 2*time.Second {
		t.Errorf("descent time = %v, want 2s", got)
	}
	if math.Abs(result.MaxGrade-5) > 0.001 {
		t.Errorf("max grade = %f, want 5", result.MaxGrade)
	}
	if math.Abs(result.MinGrade-(-5)) > 0.001 {
		t.Errorf("min grade = %f, want -5", result.MinGrade)
	}
}

func TestGradesSkipsShortSegments(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// Stationary jitter: under 5m of total travel never crosses the
	// threshold, so no segment registers.
	samples := make([]buffer.Sample, 4)
	for i := range samples {
		samples[i] = buffer.Sample{
			Wall:     start.Add(time.Duration(i) * time.Second),
			Altitude: floatPtr(100 + float64(i)),
			Distance: floatPtr(float64(i)),
		}
	}

	result := Grades(samples)
	for band, d := range result.TimeInBand {
		if d != 0 {
			t.Errorf("band %d accumulated %v from sub-threshold segments", band, d)
		}
	}
}

func TestGradesMissingReadings(t *testing.T) {
	result := Grades(nil)
	if result.MaxGrade != 0 || result.MinGrade != 0 {
		t.Errorf("empty series: max %f min %f, want zeros", result.MaxGrade, result.MinGrade)
	}

	samples := climbSamples([]float64{100, 101, 102})
	samples[1].Altitude = nil
	// With the middle sample skipped the remaining segment still
	// computes 2m over 20m = 10% (steep).
	result = Grades(samples)
	if got := result.TimeInBand[3]; got != 2*time.Second {
		t.Errorf("steep time with gap = %v, want 2s", got)
	}
}
