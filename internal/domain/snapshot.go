package domain

// QuotaType classifies the usage ceiling shown next to a report.
type QuotaType string

const (
	QuotaDaily   QuotaType = "daily"
	QuotaWeekly  QuotaType = "weekly"
	QuotaMonthly QuotaType = "monthly"
)

// SchemaVersion tags persisted snapshot and report documents.
const SchemaVersion = "2.1"

// StatsBytes is the byte-denominated headline block of snapshots and reports.
type StatsBytes struct {
	DLBytes      int64     `json:"dl_bytes"`
	ULBytes      int64     `json:"ul_bytes"`
	TotalBytes   int64     `json:"total_bytes"`
	DevicesCount int       `json:"devices_count"`
	QuotaGB      float64   `json:"quotaGB"`
	QuotaType    QuotaType `json:"quotaType"`
}

// AppUsage is the byte total attributed to one application name.
type AppUsage struct {
	Name       string `json:"name"`
	TotalBytes int64  `json:"total_bytes"`
}

// PeakDay names the heaviest day in a window.
type PeakDay struct {
	Date string  `json:"date"`
	GB   float64 `json:"gb"`
}

// BarChart carries the chart series persisted alongside the stats. Hourly
// series are only present for single-day documents.
type BarChart struct {
	Title             string   `json:"title"`
	Labels            []string `json:"labels"`
	ValuesBytes       []int64  `json:"values_bytes"`
	HourlyValuesBytes []int64  `json:"hourly_values_bytes"`
	HourlyLabels      []string `json:"hourly_labels"`
}

// DeviceDailyAggregate is one device's line in a DailySnapshot.
type DeviceDailyAggregate struct {
	MAC                string     `json:"mac"`
	Name               string     `json:"name"`
	DLBytes            int64      `json:"dl_bytes"`
	ULBytes            int64      `json:"ul_bytes"`
	TotalBytes         int64      `json:"total_bytes"`
	Percentage         float64    `json:"percentage"`
	TopApps            []AppUsage `json:"topApps"`
	AvgDailyGB         float64    `json:"avg_daily_gb"`
	PeakDay            PeakDay    `json:"peak_day"`
	RecentVsAvgPercent float64    `json:"recent_vs_avg_percent"`
}

// DailySnapshot is the materialized aggregate of one calendar day. Once
// written it is authoritative until explicitly recomputed.
type DailySnapshot struct {
	SchemaVersion string                 `json:"schema_version,omitempty"`
	Stats         StatsBytes             `json:"stats_bytes"`
	BarChart      BarChart               `json:"barChart"`
	Devices       []DeviceDailyAggregate `json:"devices"`
	TopApps       []AppUsage             `json:"topApps"`
}

// Date returns the calendar day the snapshot covers, taken from the first
// bar chart label.
func (s *DailySnapshot) Date() string {
	if s == nil || len(s.BarChart.Labels) == 0 {
		return ""
	}
	return s.BarChart.Labels[0]
}

// DayTotalBytes returns the day's total from the bar chart, which is what the
// period aggregator charts.
func (s *DailySnapshot) DayTotalBytes() int64 {
	if s == nil || len(s.BarChart.ValuesBytes) == 0 {
		return 0
	}
	return s.BarChart.ValuesBytes[0]
}

// Device returns the aggregate for mac, if present.
func (s *DailySnapshot) Device(mac string) (DeviceDailyAggregate, bool) {
	if s == nil {
		return DeviceDailyAggregate{}, false
	}
	for _, d := range s.Devices {
		if d.MAC == mac {
			return d, true
		}
	}
	return DeviceDailyAggregate{}, false
}
