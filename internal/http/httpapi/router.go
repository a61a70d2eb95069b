package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"skyhero/internal/http/handlers"
	"skyhero/internal/middleware"
)

// Options tunes the router.
type Options struct {
	// AuthAttemptsPerMinute bounds password checks per client address.
	AuthAttemptsPerMinute int
}

func NewRouter(app *handlers.App, opts Options, logger zerolog.Logger) http.Handler {
	if opts.AuthAttemptsPerMinute <= 0 {
		opts.AuthAttemptsPerMinute = 10
	}
	limiter := middleware.NewLimiter(opts.AuthAttemptsPerMinute, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.Recoverer, middleware.Logger(logger))

	r.Get("/healthz", app.Health)
	r.Get("/metrics", app.MetricsHandler)

	r.Get("/get_available_months", app.AvailableMonths)
	r.Get("/get_device_apps", app.DeviceApps)
	r.Get("/request_generator", app.RequestGenerator)

	r.Get("/auth_status", app.AuthStatus)
	r.With(limiter.Handler).Post("/auth_check", app.AuthCheck)

	r.Get("/db_restore_status", app.RestoreStatus)
	r.Post("/clear_db_restore_status", app.ClearRestoreStatus)
	r.Get("/logs/db_restore_history.log", app.RestoreHistory)

	r.Post("/save_group", app.SaveGroup)
	r.Get("/load_groups", app.LoadGroups)
	r.Post("/delete_group", app.DeleteGroup)

	r.Get("/data/period_data/{file}", app.PeriodFile)
	r.Get("/data/daily_json/{file}", app.DailyFile)
	r.Get("/data/{file}", app.DataFile)

	r.Handle("/*", app.Static())

	return r
}
