package domain

import "testing"

func TestAvgGB(t *testing.T) {
	cases := []struct {
		name  string
		total int64
		days  int
		want  float64
	}{
		{"even split", 36 * BytesPerGB, 8, 4.5},
		{"rounded once", 155703301, 30, 0},
		{"small total over a week", 53687091, 7, 0.01},
		{"no days", BytesPerGB, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AvgGB(tc.total, tc.days); got != tc.want {
				t.Fatalf("AvgGB(%d, %d) = %v, want %v", tc.total, tc.days, got, tc.want)
			}
		})
	}
}
