package analysis

import (
	"math"

	"trainlog/internal/buffer"
)

// NPWindowSeconds is the rolling-average window Normalized Power is
// defined over, assuming a 1Hz sample series.
const NPWindowSeconds = 30

// PowerSeries extracts the watt readings from a sample series, skipping
// samples with no power meter reading (they are gaps, not zeros).
func PowerSeries(samples []buffer.Sample) []float64 {
	var powers []float64
	for _, s := range samples {
		if s.Power != nil {
			powers = append(powers, float64(*s.Power))
		}
	}
	return powers
}

// NormalizedPower computes NP over a 1Hz power series: each value is
// the 30-second rolling average raised to the 4th power; NP is the 4th
// root of the mean of those. Returns 0 when the series is shorter than
// the rolling window; NP is undefined below 30 seconds of data.
func NormalizedPower(powers []float64) float64 {
	return NormalizedPowerWindow(powers, NPWindowSeconds)
}

// NormalizedPowerWindow is NormalizedPower with an explicit window size.
func NormalizedPowerWindow(powers []float64, window int) float64 {
	if window <= 0 || len(powers) < window {
		return 0
	}

	var rollingSum float64
	for i := 0; i < window; i++ {
		rollingSum += powers[i]
	}

	var fourthSum float64
	count := 0
	avg := rollingSum / float64(window)
	fourthSum += avg * avg * avg * avg
	count++

	for i := window; i < len(powers); i++ {
		rollingSum += powers[i] - powers[i-window]
		avg = rollingSum / float64(window)
		fourthSum += avg * avg * avg * avg
		count++
	}

	return math.Pow(fourthSum/float64(count), 0.25)
}

// IntensityFactor is NP relative to FTP. Undefined (0) without a
// configured FTP or a valid NP.
func IntensityFactor(np float64, ftp int) float64 {
	if ftp <= 0 || np <= 0 {
		return 0
	}
	return np / float64(ftp)
}

// TSS computes Training Stress Score:
//
//	TSS = (duration_s × NP × IF) / (FTP × 3600) × 100
//
// One hour at FTP scores exactly 100. Undefined (0) under the same
// preconditions as IF.
func TSS(durationSeconds, np float64, ftp int) float64 {
	intensity := IntensityFactor(np, ftp)
	if intensity == 0 || durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds * np * intensity) / (float64(ftp) * 3600) * 100
}

// VariabilityIndex is NP over average power; 1.0 means perfectly steady
// output. Defined only when average power is positive.
func VariabilityIndex(np, avgPower float64) float64 {
	if avgPower <= 0 || np <= 0 {
		return 0
	}
	return np / avgPower
}

// MeanMaxPower returns the best average power held over any contiguous
// window of the given length, or 0 when the series is shorter than the
// window.
func MeanMaxPower(powers []float64, window int) float64 {
	if window <= 0 || len(powers) < window {
		return 0
	}

	var sum float64
	for i := 0; i < window; i++ {
		sum += powers[i]
	}
	best := sum

	for i := window; i < len(powers); i++ {
		sum += powers[i] - powers[i-window]
		if sum > best {
			best = sum
		}
	}

	return best / float64(window)
}

// PowerCurvePoint is one point of a mean-maximal power curve.
type PowerCurvePoint struct {
	WindowSeconds int
	Watts         float64
}

// powerCurveWindows are the standard curve durations: 1s to 20min.
var powerCurveWindows = []int{1, 5, 15, 30, 60, 300, 600, 1200}

// PowerCurve computes the mean-maximal power curve for a session,
// omitting windows longer than the series.
func PowerCurve(powers []float64) []PowerCurvePoint {
	var curve []PowerCurvePoint
	for _, w := range powerCurveWindows {
		if best := MeanMaxPower(powers, w); best > 0 {
			curve = append(curve, PowerCurvePoint{WindowSeconds: w, Watts: best})
		}
	}
	return curve
}
