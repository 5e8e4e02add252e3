package analysis

import (
	"sort"
	"time"
)

// DailyLoad represents training load for a single day
type DailyLoad struct {
	Date time.Time
	TSS  float64
}

// FitnessMetrics represents CTL/ATL/TSB for a day
type FitnessMetrics struct {
	Date time.Time
	CTL  float64 // Chronic Training Load (42-day EMA) - "Fitness"
	ATL  float64 // Acute Training Load (7-day EMA) - "Fatigue"
	TSB  float64 // Training Stress Balance (CTL - ATL) - "Form"
}

// FitnessTrend computes CTL/ATL/TSB from a daily TSS history. Days
// between the first and last load with no activity contribute zero
// TSS; rest decays fitness, it does not pause it.
func FitnessTrend(dailyLoads []DailyLoad) []FitnessMetrics {
	if len(dailyLoads) == 0 {
		return nil
	}

	sort.Slice(dailyLoads, func(i, j int) bool {
		return dailyLoads[i].Date.Before(dailyLoads[j].Date)
	})

	// EMA decay constants
	ctlDecay := 2.0 / (42.0 + 1.0) // 42-day time constant
	atlDecay := 2.0 / (7.0 + 1.0)  // 7-day time constant

	startDate := dailyLoads[0].Date.Truncate(24 * time.Hour)
	endDate := dailyLoads[len(dailyLoads)-1].Date.Truncate(24 * time.Hour)

	// Sum multiple activities on the same day.
	loadMap := make(map[string]float64)
	for _, dl := range dailyLoads {
		loadMap[dl.Date.Format("2006-01-02")] += dl.TSS
	}

	var metrics []FitnessMetrics
	var ctl, atl float64

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		tss := loadMap[d.Format("2006-01-02")] // 0 if no activity

		ctl = ctl + ctlDecay*(tss-ctl)
		atl = atl + atlDecay*(tss-atl)

		metrics = append(metrics, FitnessMetrics{
			Date: d,
			CTL:  ctl,
			ATL:  atl,
			TSB:  ctl - atl,
		})
	}

	return metrics
}

// CurrentFitness returns the most recent CTL/ATL/TSB values.
func CurrentFitness(dailyLoads []DailyLoad) FitnessMetrics {
	metrics := FitnessTrend(dailyLoads)
	if len(metrics) == 0 {
		return FitnessMetrics{}
	}
	return metrics[len(metrics)-1]
}

// FormDescription puts a TSB value into words for the session summary.
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "very fresh, possibly losing fitness"
	case tsb > 10:
		return "fresh, ready for a hard effort"
	case tsb > 0:
		return "neutral"
	case tsb > -10:
		return "slightly fatigued"
	case tsb > -25:
		return "carrying productive fatigue"
	default:
		return "very fatigued, needs rest"
	}
}
