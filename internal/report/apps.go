package report

import (
	"sort"

	"skyhero/internal/domain"
)

// OtherSources is the bucket generic protocol labels are folded into.
const OtherSources = "Other Sources"

var genericApps = map[string]struct{}{
	"QUIC":                       {},
	"SSL/TLS":                    {},
	"General":                    {},
	"HTTP Protocol over TLS SSL": {},
}

// RenameApp folds generic protocol labels into OtherSources.
func RenameApp(name string) string {
	if _, ok := genericApps[name]; ok {
		return OtherSources
	}
	return name
}

// appTotals accumulates bytes per application name.
type appTotals map[string]int64

func (t appTotals) add(name string, bytes int64) {
	t[name] += bytes
}

// sorted returns the totals ordered by bytes, heaviest first, with ties
// broken by name. limit <= 0 keeps everything.
func (t appTotals) sorted(limit int) []domain.AppUsage {
	out := make([]domain.AppUsage, 0, len(t))
	for name, total := range t {
		out = append(out, domain.AppUsage{Name: name, TotalBytes: total})
	}
	SortApps(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortApps orders apps by total bytes descending, then by name.
func SortApps(apps []domain.AppUsage) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].TotalBytes != apps[j].TotalBytes {
			return apps[i].TotalBytes > apps[j].TotalBytes
		}
		return apps[i].Name < apps[j].Name
	})
}

// FoldApps merges per-application totals under their folded names.
func FoldApps(apps []domain.AppUsage) []domain.AppUsage {
	t := appTotals{}
	for _, a := range apps {
		t.add(RenameApp(a.Name), a.TotalBytes)
	}
	return t.sorted(0)
}
