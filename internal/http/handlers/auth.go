package handlers

import (
	"errors"
	"io"
	"net/http"

	"skyhero/internal/domain"
)

const maxPasswordBody = 1 << 10

func (a *App) AuthStatus(w http.ResponseWriter, r *http.Request) {
	enabled, err := a.Auth.PasswordEnabled(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: read auth settings failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read settings")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// AuthCheck compares the raw request body against the stored password.
func (a *App) AuthCheck(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPasswordBody))
	if err != nil {
		a.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	err = a.Auth.CheckPassword(r.Context(), string(body))
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, domain.ErrUnauthorized):
		a.fail(w, http.StatusOK, "Incorrect password")
	default:
		a.Logger.Error().Err(err).Msg("http: password check failed")
		a.fail(w, http.StatusInternalServerError, "failed to read settings")
	}
}
