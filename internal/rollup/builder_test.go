package rollup

import (
	"context"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/adapter/repo"
	"skyhero/internal/db"
	"skyhero/internal/domain"
	"skyhero/internal/infra"
	"skyhero/internal/report"
	"skyhero/internal/storage"
)

type staticNames map[string]string

func (s staticNames) ResolveName(_ context.Context, mac string) string {
	if n, ok := s[mac]; ok {
		return n
	}
	return "Device-" + mac[len(mac)-5:]
}

func newTestBuilder(t *testing.T, events []domain.TrafficEvent) (*Builder, *repo.SnapshotRepository) {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, filepath.Join(t.TempDir(), "traffic.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	eventRepo := repo.NewEventRepository(infra.NewSQLRunner(conn, zerolog.Nop()))
	if _, err := eventRepo.InsertIgnore(ctx, events); err != nil {
		t.Fatalf("seed events: %v", err)
	}

	daily, _ := storage.NewFileStore(t.TempDir())
	period, _ := storage.NewFileStore(t.TempDir())
	snapshots := repo.NewSnapshotRepository(daily, period)

	cfg := Config{
		Quota:       report.QuotaConfig{DailyGB: 50, WeeklyGB: 200, MonthlyGB: 500},
		HighUsageGB: 5,
		Location:    time.UTC,
	}
	return NewBuilder(eventRepo, snapshots, staticNames{"AA:BB:CC:00:00:01": "living-room-tv"}, cfg, zerolog.Nop()), snapshots
}

const june1 = int64(1717200000) // 2024-06-01T00:00:00Z

func TestBuildEndToEndScenario(t *testing.T) {
	b, snapshots := newTestBuilder(t, []domain.TrafficEvent{
		{MAC: "AA:BB:CC:00:00:01", AppName: "Netflix", CatName: "Video", Timestamp: june1 + 3600, RxBytes: 100, TxBytes: 50},
		{MAC: "AA:BB:CC:00:00:02", AppName: "QUIC", CatName: "Net", Timestamp: june1 + 7200, RxBytes: 10, TxBytes: 5},
		{MAC: "AA:BB:CC:00:00:02", AppName: "QUIC", CatName: "Net", Timestamp: june1 + 86400, RxBytes: 999, TxBytes: 999},
	})
	ctx := context.Background()

	snap, err := b.Build(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if snap.Stats.TotalBytes != 165 || snap.Stats.DLBytes != 110 || snap.Stats.ULBytes != 55 {
		t.Fatalf("stats = %+v", snap.Stats)
	}
	if snap.Stats.DevicesCount != 2 {
		t.Fatalf("devices_count = %d, want 2", snap.Stats.DevicesCount)
	}
	if snap.Stats.QuotaType != domain.QuotaMonthly || snap.Stats.QuotaGB != 500 {
		t.Fatalf("quota = %v %v, want monthly 500 (first of month)", snap.Stats.QuotaGB, snap.Stats.QuotaType)
	}

	d1 := snap.Devices[0]
	if d1.MAC != "AA:BB:CC:00:00:01" || d1.TotalBytes != 150 || d1.Name != "living-room-tv" {
		t.Fatalf("device 1 = %+v", d1)
	}
	if math.Abs(d1.Percentage-90.909) > 0.01 {
		t.Fatalf("device 1 percentage = %v, want ~90.9", d1.Percentage)
	}
	if want := []domain.AppUsage{{Name: "Netflix", TotalBytes: 150}}; !reflect.DeepEqual(d1.TopApps, want) {
		t.Fatalf("device 1 apps = %+v, want %+v", d1.TopApps, want)
	}
	d2 := snap.Devices[1]
	if want := []domain.AppUsage{{Name: report.OtherSources, TotalBytes: 15}}; !reflect.DeepEqual(d2.TopApps, want) {
		t.Fatalf("device 2 apps = %+v, want %+v", d2.TopApps, want)
	}
	if d2.Name != "Device-00:02" {
		t.Fatalf("device 2 name = %q", d2.Name)
	}

	foundRaw := false
	for _, a := range snap.TopApps {
		if a.Name == "QUIC" && a.TotalBytes == 15 {
			foundRaw = true
		}
		if a.Name == report.OtherSources {
			t.Fatalf("day-level apps must keep raw names: %+v", snap.TopApps)
		}
	}
	if !foundRaw {
		t.Fatalf("day top apps = %+v, want raw QUIC 15", snap.TopApps)
	}

	if len(snap.BarChart.HourlyValuesBytes) != 24 || snap.BarChart.HourlyValuesBytes[1] != 150 || snap.BarChart.HourlyValuesBytes[2] != 15 {
		t.Fatalf("hourly = %v", snap.BarChart.HourlyValuesBytes)
	}
	if snap.BarChart.HourlyLabels[0] != "1h" || snap.BarChart.HourlyLabels[23] != "24h" {
		t.Fatalf("hourly labels = %v", snap.BarChart.HourlyLabels)
	}
	if d1.PeakDay.Date != "2024-06-01" || d1.RecentVsAvgPercent != 0 {
		t.Fatalf("device 1 context = %+v / %v", d1.PeakDay, d1.RecentVsAvgPercent)
	}

	stored, err := snapshots.LoadDaily(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("LoadDaily: %v", err)
	}
	if !reflect.DeepEqual(stored.Stats, snap.Stats) {
		t.Fatalf("stored stats = %+v, want %+v", stored.Stats, snap.Stats)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b, _ := newTestBuilder(t, []domain.TrafficEvent{
		{MAC: "AA:BB:CC:00:00:01", AppName: "Netflix", Timestamp: june1 + 10, RxBytes: 7, TxBytes: 3},
		{MAC: "AA:BB:CC:00:00:03", AppName: "SSL/TLS", Timestamp: june1 + 20, RxBytes: 7, TxBytes: 3},
	})
	first, err := b.Build(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("Build again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild differs:\n%+v\n%+v", first, second)
	}
	// equal totals order by mac
	if first.Devices[0].MAC != "AA:BB:CC:00:00:01" {
		t.Fatalf("tie order = %s first", first.Devices[0].MAC)
	}
}

func TestBuildFlagsHeavyDevice(t *testing.T) {
	heavy := int64(6 * domain.BytesPerGB)
	b, _ := newTestBuilder(t, []domain.TrafficEvent{
		{MAC: "AA:BB:CC:00:00:09", AppName: "Steam", Timestamp: june1 + 5*86400, RxBytes: heavy},
	})
	snap, err := b.Build(context.Background(), "2024-06-06")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if snap.Devices[0].RecentVsAvgPercent != report.HighUsageFlag {
		t.Fatalf("anomaly = %v, want %v", snap.Devices[0].RecentVsAvgPercent, report.HighUsageFlag)
	}
	if snap.Stats.QuotaType != domain.QuotaDaily {
		t.Fatalf("quota type = %v, want daily", snap.Stats.QuotaType)
	}
}

func TestBuildRejectsBadDate(t *testing.T) {
	b, _ := newTestBuilder(t, nil)
	if _, err := b.Build(context.Background(), "2024-13-01"); err == nil {
		t.Fatal("Build with a bad date should fail")
	}
}

func TestHourlyClamps(t *testing.T) {
	got := hourly([]domain.HourBucket{{Hour: -1, TotalBytes: 1}, {Hour: 0, TotalBytes: 2}, {Hour: 24, TotalBytes: 4}, {Hour: 23, TotalBytes: 8}})
	if got[0] != 3 || got[23] != 12 {
		t.Fatalf("hourly = %v", got)
	}
}
