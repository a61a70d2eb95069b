package domain

import (
	"errors"
	"testing"
)

func TestLabeledReportName(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"holiday", "traffic_period_holiday.json"},
		{"last-7-days", ReportLastSevenDay},
		{"traffic_period_q2.json", "traffic_period_q2.json"},
		{" trip_2024 ", "traffic_period_trip_2024.json"},
	}
	for _, tc := range cases {
		got, err := LabeledReportName(tc.label)
		if err != nil || got != tc.want {
			t.Fatalf("LabeledReportName(%q) = %q, %v, want %q", tc.label, got, err, tc.want)
		}
	}

	for _, bad := range []string{"", "../settings", "a/b", ".json", "-x", "name.txt"} {
		if _, err := LabeledReportName(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("LabeledReportName(%q) err = %v, want ErrInvalidName", bad, err)
		}
	}
}
