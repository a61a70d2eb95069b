package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"skyhero/internal/domain"
)

// Pipeline is the slice of the pipeline service the dashboard reads and
// triggers.
type Pipeline interface {
	AvailableMonths(ctx context.Context) ([]string, error)
	DeviceApps(ctx context.Context, mac, start, end string) ([]domain.AppUsage, error)
	BuildPeriod(ctx context.Context, start, end, name string) (*domain.PeriodReport, error)
	RestoreMarker(ctx context.Context) (domain.RestoreMarker, bool, error)
	ClearRestoreMarker(ctx context.Context) (bool, error)
}

// Auth checks the optional dashboard password.
type Auth interface {
	PasswordEnabled(ctx context.Context) (bool, error)
	CheckPassword(ctx context.Context, password string) error
}

// Dirs locates the files served verbatim.
type Dirs struct {
	Data       string
	Daily      string
	Period     string
	WWW        string
	RestoreLog string
}

type App struct {
	Pipeline Pipeline
	Auth     Auth
	State    domain.ArtifactStore
	Dirs     Dirs
	Metrics  http.Handler
	Logger   zerolog.Logger

	reports singleflight.Group
	groups  sync.Mutex
}

func NewApp(pipeline Pipeline, auth Auth, state domain.ArtifactStore, dirs Dirs, metrics http.Handler, logger zerolog.Logger) *App {
	return &App{
		Pipeline: pipeline,
		Auth:     auth,
		State:    state,
		Dirs:     dirs,
		Metrics:  metrics,
		Logger:   logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": errCode, "message": msg}})
}

// fail answers endpoints whose clients read a success flag.
func (a *App) fail(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]any{"success": false, "error": msg})
}
