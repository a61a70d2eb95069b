package jsoncfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"skyhero/internal/domain"
)

const (
	// VersionLegacy marks documents that stored gigabyte floats under "stats".
	VersionLegacy = "2.0"
	// VersionLean marks documents that store raw byte integers under "stats_bytes".
	VersionLean = domain.SchemaVersion
)

// ErrUnknownSchema is returned for documents that match neither layout.
var ErrUnknownSchema = errors.New("unknown snapshot schema")

type probe struct {
	SchemaVersion string          `json:"schema_version"`
	StatsBytes    json.RawMessage `json:"stats_bytes"`
	Stats         json.RawMessage `json:"stats"`
}

// DetectVersion returns the schema version of a persisted document. An
// explicit schema_version tag wins; untagged documents are classified by
// which stats block they carry.
func DetectVersion(raw []byte) (string, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("jsoncfg: decode: %w", err)
	}
	switch {
	case p.SchemaVersion != "":
		return p.SchemaVersion, nil
	case len(p.StatsBytes) > 0:
		return VersionLean, nil
	case len(p.Stats) > 0:
		return VersionLegacy, nil
	default:
		return "", ErrUnknownSchema
	}
}

type legacyStats struct {
	DL             float64  `json:"dl"`
	UL             float64  `json:"ul"`
	Traffic        float64  `json:"traffic"`
	Devices        int      `json:"devices"`
	MonthlyQuotaGB *float64 `json:"monthlyQuotaGB"`
}

type legacyApp struct {
	Name       string   `json:"name"`
	TotalBytes *int64   `json:"total_bytes"`
	Total      *float64 `json:"total"`
}

type legacyDevice struct {
	MAC        string      `json:"mac"`
	Name       string      `json:"name"`
	DLBytes    *int64      `json:"dl_bytes"`
	ULBytes    *int64      `json:"ul_bytes"`
	TotalBytes *int64      `json:"total_bytes"`
	DL         *float64    `json:"dl"`
	UL         *float64    `json:"ul"`
	Total      *float64    `json:"total"`
	TopApps    []legacyApp `json:"topApps"`
}

type legacyChart struct {
	Title       string    `json:"title"`
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
	ValuesBytes []int64   `json:"values_bytes"`
}

type legacyDoc struct {
	Stats    legacyStats    `json:"stats"`
	Devices  []legacyDevice `json:"devices"`
	TopApps  []legacyApp    `json:"topApps"`
	BarChart legacyChart    `json:"barChart"`
}

// UpgradeDaily converts a legacy daily document for date into the lean
// layout. Lean documents are returned unchanged with upgraded=false.
func UpgradeDaily(raw []byte, date string) (out []byte, upgraded bool, err error) {
	version, err := DetectVersion(raw)
	if err != nil {
		return nil, false, err
	}
	if version != VersionLegacy {
		return raw, false, nil
	}
	var old legacyDoc
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, false, fmt.Errorf("jsoncfg: decode legacy daily: %w", err)
	}

	total := gbToBytes(old.Stats.Traffic)
	snap := domain.DailySnapshot{
		SchemaVersion: VersionLean,
		Stats: domain.StatsBytes{
			DLBytes:      gbToBytes(old.Stats.DL),
			ULBytes:      gbToBytes(old.Stats.UL),
			TotalBytes:   total,
			DevicesCount: old.Stats.Devices,
		},
		BarChart: domain.BarChart{
			Title:       "Daily Breakdown",
			Labels:      []string{date},
			ValuesBytes: []int64{total},
		},
		TopApps: convertApps(old.TopApps),
	}
	for _, d := range old.Devices {
		// daily devices already carried bytes in the legacy layout
		dev := domain.DeviceDailyAggregate{
			MAC:        d.MAC,
			Name:       d.Name,
			DLBytes:    deref(d.DLBytes),
			ULBytes:    deref(d.ULBytes),
			TotalBytes: deref(d.TotalBytes),
			TopApps:    convertApps(d.TopApps),
		}
		if total > 0 {
			dev.Percentage = float64(dev.TotalBytes) / float64(total) * 100
		}
		snap.Devices = append(snap.Devices, dev)
	}
	sort.SliceStable(snap.Devices, func(i, j int) bool {
		return snap.Devices[i].TotalBytes > snap.Devices[j].TotalBytes
	})

	out, err = json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// UpgradePeriod converts a legacy period document into the lean layout,
// keeping every field the lean layout knows about.
func UpgradePeriod(raw []byte) (out []byte, upgraded bool, err error) {
	version, err := DetectVersion(raw)
	if err != nil {
		return nil, false, err
	}
	if version != VersionLegacy {
		return raw, false, nil
	}
	var report domain.PeriodReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false, fmt.Errorf("jsoncfg: decode legacy period: %w", err)
	}
	var old legacyDoc
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, false, fmt.Errorf("jsoncfg: decode legacy period: %w", err)
	}

	report.SchemaVersion = VersionLean
	report.Stats = domain.StatsBytes{
		DLBytes:      gbToBytes(old.Stats.DL),
		ULBytes:      gbToBytes(old.Stats.UL),
		TotalBytes:   gbToBytes(old.Stats.Traffic),
		DevicesCount: old.Stats.Devices,
		QuotaGB:      500,
		QuotaType:    domain.QuotaMonthly,
	}
	if old.Stats.MonthlyQuotaGB != nil {
		report.Stats.QuotaGB = *old.Stats.MonthlyQuotaGB
	}

	for i := range report.Devices {
		if i >= len(old.Devices) {
			break
		}
		d := old.Devices[i]
		dev := &report.Devices[i]
		dev.DLBytes = bytesOrGB(d.DLBytes, d.DL)
		dev.ULBytes = bytesOrGB(d.ULBytes, d.UL)
		dev.TotalBytes = bytesOrGB(d.TotalBytes, d.Total)
		dev.TopApps = convertApps(d.TopApps)
	}
	report.TopApps = convertApps(old.TopApps)
	if report.BarChart.ValuesBytes == nil && old.BarChart.Values != nil {
		report.BarChart.ValuesBytes = make([]int64, len(old.BarChart.Values))
		for i, v := range old.BarChart.Values {
			report.BarChart.ValuesBytes[i] = gbToBytes(v)
		}
	}

	out, err = json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func convertApps(apps []legacyApp) []domain.AppUsage {
	out := make([]domain.AppUsage, 0, len(apps))
	for _, a := range apps {
		out = append(out, domain.AppUsage{Name: a.Name, TotalBytes: bytesOrGB(a.TotalBytes, a.Total)})
	}
	return out
}

func bytesOrGB(b *int64, gb *float64) int64 {
	if b != nil {
		return *b
	}
	if gb != nil {
		return gbToBytes(*gb)
	}
	return 0
}

// gbToBytes truncates toward zero, matching how legacy values were written.
func gbToBytes(gb float64) int64 {
	return int64(gb * domain.BytesPerGB)
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
