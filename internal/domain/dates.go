package domain

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the ISO calendar date used for snapshot names and ranges.
const DateLayout = "2006-01-02"

// BytesPerGB is the divisor for every gigabyte-denominated field.
const BytesPerGB = 1073741824

// BytesToGB converts bytes to gigabytes rounded to two decimals.
func BytesToGB(b int64) float64 {
	return Round2(float64(b) / BytesPerGB)
}

// AvgGB is total bytes spread over days, in gigabytes rounded once to two
// decimals. It is zero when days is not positive.
func AvgGB(total int64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return Round2(float64(total) / (BytesPerGB * float64(days)))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DayBounds returns the unix seconds of midnight on date and on the following
// day in loc. DST days are 23 or 25 hours long.
func DayBounds(date string, loc *time.Location) (int64, int64, error) {
	start, err := ParseDate(date, loc)
	if err != nil {
		return 0, 0, err
	}
	return start.Unix(), start.AddDate(0, 0, 1).Unix(), nil
}

// DateRange lists every date in [start, end]. An end before start yields an
// empty range.
func DateRange(start, end string) ([]string, error) {
	s, err := ParseDate(start, time.UTC)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end, time.UTC)
	if err != nil {
		return nil, err
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out, nil
}

// ShiftDate adds days to a YYYY-MM-DD date.
func ShiftDate(date string, days int) (string, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, days).Format(DateLayout), nil
}

// MonthEnd returns the last calendar day of the month containing date.
func MonthEnd(date string) (string, error) {
	d, err := ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Format(DateLayout), nil
}
