package plan

import (
	"math"
	"time"
)

// Estimate is the planning-screen summary of a flattened timeline.
type Estimate struct {
	Duration time.Duration
	TSS      float64
	IF       float64

	// Incomplete is set when a distance-based step could not be
	// timed because no pace was available; the duration and TSS are
	// lower bounds.
	Incomplete bool
}

// EstimateTimeline sums per-step duration and training stress for a
// flattened plan. Power targets drive the stress estimate; steps with
// only HR or pace targets contribute duration but no TSS. Distance
// steps are timed with the given pace (m/s); with no pace they
// contribute zero duration and flag the estimate incomplete.
func EstimateTimeline(steps []FlatStep, ftp int, pace float64) Estimate {
	var est Estimate
	var stressSeconds float64 // seconds weighted by IF^2

	for _, fs := range steps {
		dur := fs.Duration
		if dur == 0 && fs.Distance > 0 {
			if pace <= 0 {
				est.Incomplete = true
				continue
			}
			dur = time.Duration(fs.Distance / pace * float64(time.Second))
		}
		if dur <= 0 {
			continue
		}
		est.Duration += dur

		if ftp <= 0 {
			continue
		}
		if frac := powerFraction(fs.Targets); frac > 0 {
			stressSeconds += dur.Seconds() * frac * frac
		}
	}

	if est.Duration > 0 && stressSeconds > 0 {
		est.TSS = stressSeconds / 3600 * 100
		est.IF = math.Sqrt(stressSeconds / est.Duration.Seconds())
	}
	return est
}

// powerFraction returns the midpoint of a step's power band as a
// fraction of FTP, or 0 when the step has no power target.
func powerFraction(targets []Target) float64 {
	for _, t := range targets {
		if t.Kind == TargetPower {
			return (t.Low + t.High) / 2
		}
	}
	return 0
}
