package analysis

import "trainlog/internal/buffer"

// EfficiencyFactor is normalized power over average heart rate. When NP
// is unavailable (short sessions), average power is used instead.
// Higher is better: more output for the same cardiovascular cost.
func EfficiencyFactor(np, avgPower, avgHR float64) float64 {
	if avgHR <= 0 {
		return 0
	}
	output := np
	if output <= 0 {
		output = avgPower
	}
	if output <= 0 {
		return 0
	}
	return output / avgHR
}

// Decoupling measures the drift in the output:HR ratio between the
// first and second half of a session, as a percentage. Positive values
// mean the second half cost more heart beats per unit of output,
// fatigue or heat stress. Both halves must share one output measure:
// power is used only when it covers both halves, otherwise the whole
// session falls back to the speed:HR ratio, so a power meter that dies
// mid-session never compares watts against meters per second.
// Returns 0 when no single measure covers both halves.
func Decoupling(samples []buffer.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}

	mid := len(samples) / 2
	firstPower, firstSpeed := halfRatios(samples[:mid])
	secondPower, secondSpeed := halfRatios(samples[mid:])

	first, second := firstPower, secondPower
	if first == 0 || second == 0 {
		first, second = firstSpeed, secondSpeed
	}
	if first == 0 || second == 0 {
		return 0
	}

	return ((first / second) - 1) * 100
}

// halfRatios computes the power:HR and speed:HR ratios for a portion
// of the session. Either ratio is 0 when its reading is absent.
func halfRatios(samples []buffer.Sample) (powerRatio, speedRatio float64) {
	var powerSum, powerHR float64
	var powerCount int
	var speedSum, speedHR float64
	var speedCount int

	for _, s := range samples {
		if s.HeartRate == nil || *s.HeartRate <= 0 {
			continue
		}
		hr := float64(*s.HeartRate)
		if s.Power != nil && *s.Power > 0 {
			powerSum += float64(*s.Power)
			powerHR += hr
			powerCount++
		}
		if s.Speed != nil && *s.Speed > 0.5 {
			speedSum += *s.Speed
			speedHR += hr
			speedCount++
		}
	}

	if powerCount > 0 {
		powerRatio = (powerSum / float64(powerCount)) / (powerHR / float64(powerCount))
	}
	if speedCount > 0 {
		speedRatio = (speedSum / float64(speedCount)) / (speedHR / float64(speedCount))
	}
	return powerRatio, speedRatio
}
