package analysis

// Zone counts for the two intensity models.
const (
	PowerZoneCount = 7
	HRZoneCount    = 5
)

// powerZoneUpper holds each power zone's upper bound as a fraction of
// FTP (Coggan's classic 7-zone model). The last zone is open-ended.
var powerZoneUpper = [PowerZoneCount - 1]float64{0.55, 0.75, 0.90, 1.05, 1.20, 1.50}

// hrZoneUpper holds each heart-rate zone's upper bound as a fraction of
// threshold HR. The last zone is open-ended.
var hrZoneUpper = [HRZoneCount - 1]float64{0.81, 0.89, 0.93, 0.99}

// PowerZone returns the 0-based power zone for a wattage given FTP, or
// -1 when FTP is not configured.
func PowerZone(watts float64, ftp int) int {
	if ftp <= 0 {
		return -1
	}
	frac := watts / float64(ftp)
	for i, upper := range powerZoneUpper {
		if frac < upper {
			return i
		}
	}
	return PowerZoneCount - 1
}

// HRZone returns the 0-based heart-rate zone for a reading given
// threshold HR, or -1 when the threshold is not configured.
func HRZone(bpm float64, thresholdHR int) int {
	if thresholdHR <= 0 {
		return -1
	}
	frac := bpm / float64(thresholdHR)
	for i, upper := range hrZoneUpper {
		if frac < upper {
			return i
		}
	}
	return HRZoneCount - 1
}
