package report

import (
	"time"

	"skyhero/internal/domain"
)

// QuotaConfig holds the usage ceilings shown next to each quota class.
type QuotaConfig struct {
	DailyGB   float64
	WeeklyGB  float64
	MonthlyGB float64
}

// Quota picks the ceiling for [start, end] from the calendar shape of the
// range: a range starting on the 1st is a month-to-date view, otherwise one
// day is daily, up to seven days weekly and anything longer monthly.
// Unparseable dates fall back to monthly.
func Quota(start, end string, cfg QuotaConfig) (float64, domain.QuotaType) {
	s, err := domain.ParseDate(start, time.UTC)
	if err != nil {
		return cfg.MonthlyGB, domain.QuotaMonthly
	}
	e, err := domain.ParseDate(end, time.UTC)
	if err != nil {
		return cfg.MonthlyGB, domain.QuotaMonthly
	}
	days := int(e.Sub(s).Hours()/24) + 1

	switch {
	case s.Day() == 1:
		return cfg.MonthlyGB, domain.QuotaMonthly
	case days == 1:
		return cfg.DailyGB, domain.QuotaDaily
	case days <= 7:
		return cfg.WeeklyGB, domain.QuotaWeekly
	default:
		return cfg.MonthlyGB, domain.QuotaMonthly
	}
}
