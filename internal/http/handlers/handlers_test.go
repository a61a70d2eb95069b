package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
	"skyhero/internal/storage"
)

type fakePipeline struct {
	mu       sync.Mutex
	months   []string
	apps     []domain.AppUsage
	buildErr error
	built    []string
	marker   *domain.RestoreMarker
}

func (f *fakePipeline) AvailableMonths(context.Context) ([]string, error) { return f.months, nil }

func (f *fakePipeline) DeviceApps(_ context.Context, mac, start, end string) ([]domain.AppUsage, error) {
	if start > end {
		return nil, domain.ErrInvalidDate
	}
	return f.apps, nil
}

func (f *fakePipeline) BuildPeriod(_ context.Context, start, end, name string) (*domain.PeriodReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, name)
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &domain.PeriodReport{Start: start, End: end}, nil
}

func (f *fakePipeline) RestoreMarker(context.Context) (domain.RestoreMarker, bool, error) {
	if f.marker == nil {
		return domain.RestoreMarker{}, false, nil
	}
	return *f.marker, true, nil
}

func (f *fakePipeline) ClearRestoreMarker(context.Context) (bool, error) {
	had := f.marker != nil
	f.marker = nil
	return had, nil
}

type fakeAuth struct{ password string }

func (f fakeAuth) PasswordEnabled(context.Context) (bool, error) { return f.password != "", nil }

func (f fakeAuth) CheckPassword(_ context.Context, pw string) error {
	if f.password == "" || pw == f.password {
		return nil
	}
	return domain.ErrUnauthorized
}

func newTestApp(t *testing.T, p *fakePipeline, auth Auth) *App {
	t.Helper()
	state, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("state store: %v", err)
	}
	return NewApp(p, auth, state, Dirs{}, nil, zerolog.Nop())
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAvailableMonthsEmptyIsArray(t *testing.T) {
	app := newTestApp(t, &fakePipeline{}, fakeAuth{})
	rr := httptest.NewRecorder()
	app.AvailableMonths(rr, httptest.NewRequest(http.MethodGet, "/get_available_months", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("months = %d %q, want 200 []", rr.Code, rr.Body.String())
	}
}

func TestDeviceApps(t *testing.T) {
	p := &fakePipeline{apps: []domain.AppUsage{{Name: "Netflix", TotalBytes: 100}}}
	app := newTestApp(t, p, fakeAuth{})

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{name: "missing mac", query: "start=2024-06-01&end=2024-06-02", code: http.StatusBadRequest},
		{name: "reversed range", query: "mac=AA&start=2024-06-02&end=2024-06-01", code: http.StatusBadRequest},
		{name: "ok", query: "mac=AA&start=2024-06-01&end=2024-06-02", code: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			app.DeviceApps(rr, httptest.NewRequest(http.MethodGet, "/get_device_apps?"+tc.query, nil))
			if rr.Code != tc.code {
				t.Fatalf("status = %d, want %d", rr.Code, tc.code)
			}
		})
	}

	rr := httptest.NewRecorder()
	app.DeviceApps(rr, httptest.NewRequest(http.MethodGet, "/get_device_apps?mac=AA&start=2024-06-01&end=2024-06-02", nil))
	var body struct {
		Apps []domain.AppUsage `json:"apps"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || len(body.Apps) != 1 || body.Apps[0].Name != "Netflix" {
		t.Fatalf("apps = %+v, %v", body, err)
	}

	p.apps = nil
	rr = httptest.NewRecorder()
	app.DeviceApps(rr, httptest.NewRequest(http.MethodGet, "/get_device_apps?mac=BB&start=2024-06-01&end=2024-06-02", nil))
	if got := strings.TrimSpace(rr.Body.String()); got != `{"apps":[]}` {
		t.Fatalf("empty body = %s, want {\"apps\":[]}", got)
	}
}

func TestRequestGenerator(t *testing.T) {
	p := &fakePipeline{}
	app := newTestApp(t, p, fakeAuth{})

	rr := httptest.NewRecorder()
	app.RequestGenerator(rr, httptest.NewRequest(http.MethodGet, "/request_generator?start=2024-06-01&end=2024-06-07", nil))
	if rr.Code != http.StatusOK || decode(t, rr)["success"] != true {
		t.Fatalf("generate = %d", rr.Code)
	}
	if len(p.built) != 1 || p.built[0] != "traffic_period_2024-06-01-2024-06-07.json" {
		t.Fatalf("built = %v", p.built)
	}

	p.buildErr = domain.ErrNoData
	rr = httptest.NewRecorder()
	app.RequestGenerator(rr, httptest.NewRequest(http.MethodGet, "/request_generator?start=2024-06-01&end=2024-06-07", nil))
	if rr.Code != http.StatusInternalServerError || decode(t, rr)["success"] != false {
		t.Fatalf("failed generate = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.RequestGenerator(rr, httptest.NewRequest(http.MethodGet, "/request_generator?start=2024-06-01", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing end = %d, want 400", rr.Code)
	}
}

func TestAuth(t *testing.T) {
	open := newTestApp(t, &fakePipeline{}, fakeAuth{})
	rr := httptest.NewRecorder()
	open.AuthStatus(rr, httptest.NewRequest(http.MethodGet, "/auth_status", nil))
	if decode(t, rr)["enabled"] != false {
		t.Fatal("auth enabled without a password")
	}
	rr = httptest.NewRecorder()
	open.AuthCheck(rr, httptest.NewRequest(http.MethodPost, "/auth_check", strings.NewReader("anything")))
	if decode(t, rr)["success"] != true {
		t.Fatal("open dashboard rejected a check")
	}

	locked := newTestApp(t, &fakePipeline{}, fakeAuth{password: "s3cret"})
	tests := []struct {
		body string
		want bool
	}{
		{body: "s3cret", want: true},
		{body: "wrong", want: false},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		locked.AuthCheck(rr, httptest.NewRequest(http.MethodPost, "/auth_check", strings.NewReader(tc.body)))
		if got := decode(t, rr)["success"]; got != tc.want {
			t.Fatalf("check %q = %v, want %v", tc.body, got, tc.want)
		}
	}
}

func TestRestoreStatus(t *testing.T) {
	p := &fakePipeline{marker: &domain.RestoreMarker{
		CorruptionTime: "2024-06-01 10:00:00",
		RestoreTime:    "2024-06-01 10:00:02",
		BackupFile:     "TrafficAnalyzer_2024-06-01_03.db.gz",
	}}
	app := newTestApp(t, p, fakeAuth{})

	rr := httptest.NewRecorder()
	app.RestoreStatus(rr, httptest.NewRequest(http.MethodGet, "/db_restore_status", nil))
	body := decode(t, rr)
	if body["restored"] != true || body["backup_file"] != "TrafficAnalyzer_2024-06-01_03.db.gz" {
		t.Fatalf("status = %v", body)
	}

	rr = httptest.NewRecorder()
	app.ClearRestoreStatus(rr, httptest.NewRequest(http.MethodPost, "/clear_db_restore_status", nil))
	if decode(t, rr)["message"] != "Restore status cleared." {
		t.Fatal("clear did not report removal")
	}
	rr = httptest.NewRecorder()
	app.RestoreStatus(rr, httptest.NewRequest(http.MethodGet, "/db_restore_status", nil))
	if decode(t, rr)["restored"] != false {
		t.Fatal("marker still reported after clear")
	}
}

func TestSavedGroups(t *testing.T) {
	app := newTestApp(t, &fakePipeline{}, fakeAuth{})
	post := func(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return rr
	}
	load := func() groupsDocument {
		rr := httptest.NewRecorder()
		app.LoadGroups(rr, httptest.NewRequest(http.MethodGet, "/load_groups", nil))
		var doc groupsDocument
		if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
			t.Fatalf("decode groups: %v", err)
		}
		return doc
	}

	if doc := load(); len(doc.Groups) != 0 {
		t.Fatalf("initial groups = %+v", doc)
	}
	if rr := post(app.SaveGroup, `{"name":"kids"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("save without devices = %d, want 400", rr.Code)
	}
	post(app.SaveGroup, `{"name":"kids","devices":["AA"]}`)
	post(app.SaveGroup, `{"name":"tv","devices":["CC"]}`)
	post(app.SaveGroup, `{"name":"kids","devices":["AA","BB"]}`)

	doc := load()
	if len(doc.Groups) != 2 || doc.Groups[0].Name != "kids" || string(doc.Groups[0].Devices) != `["AA","BB"]` {
		t.Fatalf("groups after upsert = %+v", doc)
	}

	if rr := post(app.DeleteGroup, `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("delete without name = %d, want 400", rr.Code)
	}
	post(app.DeleteGroup, `{"name":"kids"}`)
	doc = load()
	if len(doc.Groups) != 1 || doc.Groups[0].Name != "tv" {
		t.Fatalf("groups after delete = %+v", doc)
	}
}

func TestAuthCheckSettingsError(t *testing.T) {
	app := newTestApp(t, &fakePipeline{}, brokenAuth{})
	rr := httptest.NewRecorder()
	app.AuthCheck(rr, httptest.NewRequest(http.MethodPost, "/auth_check", strings.NewReader("x")))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

type brokenAuth struct{}

func (brokenAuth) PasswordEnabled(context.Context) (bool, error) { return false, errors.New("boom") }
func (brokenAuth) CheckPassword(context.Context, string) error   { return errors.New("boom") }
