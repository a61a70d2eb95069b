package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// privateFiles are never served from the data directory.
var privateFiles = map[string]bool{
	"settings.json": true,
}

func (a *App) PeriodFile(w http.ResponseWriter, r *http.Request) {
	a.serveFrom(w, r, a.Dirs.Period)
}

func (a *App) DailyFile(w http.ResponseWriter, r *http.Request) {
	a.serveFrom(w, r, a.Dirs.Daily)
}

func (a *App) DataFile(w http.ResponseWriter, r *http.Request) {
	if privateFiles[chi.URLParam(r, "file")] {
		http.NotFound(w, r)
		return
	}
	a.serveFrom(w, r, a.Dirs.Data)
}

func (a *App) serveFrom(w http.ResponseWriter, r *http.Request, dir string) {
	name := chi.URLParam(r, "file")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

// Static serves the dashboard assets.
func (a *App) Static() http.Handler {
	return http.FileServer(http.Dir(a.Dirs.WWW))
}
