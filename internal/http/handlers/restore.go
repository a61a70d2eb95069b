package handlers

import (
	"net/http"
	"os"
)

func (a *App) RestoreStatus(w http.ResponseWriter, r *http.Request) {
	m, ok, err := a.Pipeline.RestoreMarker(r.Context())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("http: read restore marker failed")
	}
	if !ok {
		a.json(w, http.StatusOK, map[string]bool{"restored": false})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"restored":        true,
		"corruption_time": m.CorruptionTime,
		"restore_time":    m.RestoreTime,
		"backup_file":     m.BackupFile,
	})
}

func (a *App) ClearRestoreStatus(w http.ResponseWriter, r *http.Request) {
	cleared, err := a.Pipeline.ClearRestoreMarker(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: clear restore marker failed")
		a.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	msg := "No restore status to clear."
	if cleared {
		msg = "Restore status cleared."
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

func (a *App) RestoreHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(a.Dirs.RestoreLog); err != nil {
		http.Error(w, "Log file not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, a.Dirs.RestoreLog)
}
