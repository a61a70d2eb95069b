package handlers

import (
	"net/http"
)

// MetricsHandler exposes pipeline metrics, or 404 when none are wired.
func (a *App) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	a.Metrics.ServeHTTP(w, r)
}
