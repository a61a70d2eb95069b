package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"skyhero/internal/domain"
)

func (a *App) AvailableMonths(w http.ResponseWriter, r *http.Request) {
	months, err := a.Pipeline.AvailableMonths(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list months failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list months")
		return
	}
	if months == nil {
		months = []string{}
	}
	a.json(w, http.StatusOK, months)
}

func (a *App) DeviceApps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mac, start, end := strings.TrimSpace(q.Get("mac")), q.Get("start"), q.Get("end")
	if mac == "" || start == "" || end == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "Missing required parameters")
		return
	}
	apps, err := a.Pipeline.DeviceApps(r.Context(), mac, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDate) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("mac", mac).Msg("http: device apps failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load device apps")
		return
	}
	if apps == nil {
		apps = []domain.AppUsage{}
	}
	a.json(w, http.StatusOK, map[string]any{"apps": apps})
}

// RequestGenerator builds the period report for [start, end]. Identical
// concurrent requests share one build.
func (a *App) RequestGenerator(w http.ResponseWriter, r *http.Request) {
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if start == "" || end == "" {
		a.fail(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	name := domain.PeriodReportName(start, end)
	_, err, shared := a.reports.Do(name, func() (any, error) {
		return a.Pipeline.BuildPeriod(context.WithoutCancel(r.Context()), start, end, name)
	})
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]any{"success": true, "message": "Report generated."})
	case errors.Is(err, domain.ErrInvalidDate):
		a.fail(w, http.StatusBadRequest, err.Error())
	default:
		a.Logger.Error().Err(err).Str("report", name).Bool("shared", shared).Msg("http: report generation failed")
		a.json(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Failed to generate report."})
	}
}
