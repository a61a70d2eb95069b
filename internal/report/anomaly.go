package report

import "skyhero/internal/domain"

// HighUsageFlag is the anomaly value reported for a single day above the
// per-device threshold.
const HighUsageFlag = 999

// SingleDayAnomaly flags a day whose usage exceeds thresholdGB.
func SingleDayAnomaly(totalBytes int64, thresholdGB float64) float64 {
	if domain.BytesToGB(totalBytes) > thresholdGB {
		return HighUsageFlag
	}
	return 0
}

// TrendAnomaly is the percentage deviation of the most recent day from the
// average over days loaded days.
func TrendAnomaly(daily []domain.DailyUsage, total int64, days int) float64 {
	if len(daily) <= 1 || total == 0 || days == 0 {
		return 0
	}
	avg := float64(total) / float64(days)
	if avg == 0 {
		return 0
	}
	recent := float64(daily[len(daily)-1].TotalBytes)
	return (recent - avg) / avg * 100
}
