package analysis

import (
	"time"

	"trainlog/internal/buffer"
)

// VAM is the vertical ascent rate in meters per hour.
func VAM(ascentMeters float64, movingTime time.Duration) float64 {
	hours := movingTime.Hours()
	if hours <= 0 || ascentMeters <= 0 {
		return 0
	}
	return ascentMeters / hours
}

// GradeBandCount partitions terrain into descent, flat, moderate climb,
// and steep climb.
const GradeBandCount = 4

// gradeBandUpper holds each band's upper bound in percent grade. The
// last band is open-ended.
var gradeBandUpper = [GradeBandCount - 1]float64{-3, 3, 8}

// GradeBandNames labels the bands for display.
var GradeBandNames = [GradeBandCount]string{"descent", "flat", "moderate", "steep"}

// GradeAnalysis is the terrain profile of a session.
type GradeAnalysis struct {
	TimeInBand [GradeBandCount]time.Duration
	MaxGrade   float64 // percent
	MinGrade   float64 // percent
}

// minGradeDistance rejects grade spikes from GPS jitter: a grade is
// only computed across at least this much horizontal travel.
const minGradeDistance = 5.0 // meters

// Grades computes per-segment grade from altitude and cumulative
// distance, bucketing the time spent in each grade band. Samples
// without altitude or distance readings are skipped.
func Grades(samples []buffer.Sample) GradeAnalysis {
	var out GradeAnalysis

	var prev *buffer.Sample
	first := true
	for i := range samples {
		s := &samples[i]
		if s.Altitude == nil || s.Distance == nil {
			continue
		}
		if prev == nil {
			prev = s
			continue
		}

		run := *s.Distance - *prev.Distance
		if run < minGradeDistance {
			continue
		}
		rise := *s.Altitude - *prev.Altitude
		grade := rise / run * 100

		if first {
			out.MaxGrade, out.MinGrade = grade, grade
			first = false
		} else {
			if grade > out.MaxGrade {
				out.MaxGrade = grade
			}
			if grade < out.MinGrade {
				out.MinGrade = grade
			}
		}

		dt := s.Wall.Sub(prev.Wall)
		if dt > 0 {
			out.TimeInBand[gradeBand(grade)] += dt
		}
		prev = s
	}

	return out
}

func gradeBand(grade float64) int {
	for i, upper := range gradeBandUpper {
		if grade < upper {
			return i
		}
	}
	return GradeBandCount - 1
}
