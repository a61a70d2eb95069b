package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"skyhero/internal/domain"
)

// GroupsKey is the artifact holding saved device groups.
const GroupsKey = "saved_groups.json"

type deviceGroup struct {
	Name    string          `json:"name"`
	Devices json.RawMessage `json:"devices"`
}

type groupsDocument struct {
	Groups []deviceGroup `json:"groups"`
}

func (a *App) loadGroups(ctx context.Context) (groupsDocument, error) {
	doc := groupsDocument{Groups: []deviceGroup{}}
	raw, err := a.State.Get(ctx, GroupsKey)
	if errors.Is(err, domain.ErrNotFound) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, err
	}
	if doc.Groups == nil {
		doc.Groups = []deviceGroup{}
	}
	return doc, nil
}

func (a *App) saveGroups(ctx context.Context, doc groupsDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return a.State.Put(ctx, GroupsKey, raw)
}

func (a *App) LoadGroups(w http.ResponseWriter, r *http.Request) {
	a.groups.Lock()
	doc, err := a.loadGroups(r.Context())
	a.groups.Unlock()
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, doc)
}

// SaveGroup inserts a group or replaces the devices of the one with the
// same name.
func (a *App) SaveGroup(w http.ResponseWriter, r *http.Request) {
	var req deviceGroup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" || len(req.Devices) == 0 {
		a.fail(w, http.StatusBadRequest, "Missing name or devices")
		return
	}

	a.groups.Lock()
	defer a.groups.Unlock()
	doc, err := a.loadGroups(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	found := false
	for i := range doc.Groups {
		if doc.Groups[i].Name == req.Name {
			doc.Groups[i].Devices = req.Devices
			found = true
			break
		}
	}
	if !found {
		doc.Groups = append(doc.Groups, req)
	}
	if err := a.saveGroups(r.Context(), doc); err != nil {
		a.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *App) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == nil {
		a.fail(w, http.StatusBadRequest, "Missing name")
		return
	}

	a.groups.Lock()
	defer a.groups.Unlock()
	doc, err := a.loadGroups(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	kept := doc.Groups[:0]
	for _, g := range doc.Groups {
		if g.Name != *req.Name {
			kept = append(kept, g)
		}
	}
	doc.Groups = kept
	if err := a.saveGroups(r.Context(), doc); err != nil {
		a.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"success": true})
}
