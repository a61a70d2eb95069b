package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Logical period report names.
const (
	ReportCurrentMonth = "traffic_period_current_month.json"
	ReportLastSevenDay = "traffic_period_last-7-days.json"
	ReportAllTime      = "traffic_period_all-time.json"

	monthReportPrefix  = "traffic_month_"
	periodReportPrefix = "traffic_period_"
)

// PeriodReportName returns the default artifact name for [start, end].
func PeriodReportName(start, end string) string {
	return periodReportPrefix + start + "-" + end + ".json"
}

var reportLabel = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// LabeledReportName turns a user supplied label such as "holiday" into
// traffic_period_holiday.json. A label already carrying the prefix or the
// .json suffix is accepted as is.
func LabeledReportName(label string) (string, error) {
	l := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(label), periodReportPrefix), ".json")
	if !reportLabel.MatchString(l) {
		return "", fmt.Errorf("%q: %w", label, ErrInvalidName)
	}
	return periodReportPrefix + l + ".json", nil
}

// MonthReportName returns the artifact name for a YYYY-MM month.
func MonthReportName(month string) string {
	return monthReportPrefix + month + ".json"
}

// MonthFromReportName extracts YYYY-MM from a monthly report name.
func MonthFromReportName(name string) (string, bool) {
	if len(name) != len(monthReportPrefix)+len("2006-01")+len(".json") {
		return "", false
	}
	if name[:len(monthReportPrefix)] != monthReportPrefix || name[len(name)-5:] != ".json" {
		return "", false
	}
	return name[len(monthReportPrefix) : len(name)-5], true
}

// DailyUsage is one day's byte total for a device.
type DailyUsage struct {
	Date       string `json:"date"`
	TotalBytes int64  `json:"total_bytes"`
}

// DevicePeriodAggregate is one device's line in a PeriodReport.
type DevicePeriodAggregate struct {
	MAC                string       `json:"mac"`
	Name               string       `json:"name"`
	DLBytes            int64        `json:"dl_bytes"`
	ULBytes            int64        `json:"ul_bytes"`
	TotalBytes         int64        `json:"total_bytes"`
	Percentage         float64      `json:"percentage"`
	DailyTraffic       []DailyUsage `json:"daily_traffic"`
	TopApps            []AppUsage   `json:"topApps"`
	AvgDailyGB         float64      `json:"avg_daily_gb"`
	PeakDay            PeakDay      `json:"peak_day"`
	TrendBytes         []int64      `json:"trend_bytes"`
	RecentVsAvgPercent float64      `json:"recent_vs_avg_percent"`
}

// PeriodReport aggregates the daily snapshots of an inclusive date range.
type PeriodReport struct {
	SchemaVersion string                  `json:"schema_version,omitempty"`
	Start         string                  `json:"start,omitempty"`
	End           string                  `json:"end,omitempty"`
	Stats         StatsBytes              `json:"stats_bytes"`
	Devices       []DevicePeriodAggregate `json:"devices"`
	BarChart      BarChart                `json:"barChart"`
	TopApps       []AppUsage              `json:"topApps"`
}

// Device returns the aggregate for mac, if present.
func (r *PeriodReport) Device(mac string) (DevicePeriodAggregate, bool) {
	if r == nil {
		return DevicePeriodAggregate{}, false
	}
	for _, d := range r.Devices {
		if d.MAC == mac {
			return d, true
		}
	}
	return DevicePeriodAggregate{}, false
}
