package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homeapps/internal/hass"
)

// handleListApps returns every running app with its current status.
func (s *Server) handleListApps(w http.ResponseWriter, _ *http.Request) {
	apps := s.registry.Apps()
	writeJSON(w, http.StatusOK, map[string]any{
		"apps":  apps,
		"count": len(apps),
	})
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, ok := s.registry.App(name)
	if !ok {
		writeNotFound(w, "app not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleListEntities returns the mirrored entity states. The optional
// domain query parameter filters by entity domain.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.URL.Query().Get("domain"))

	all := s.runtime.Entities()
	entities := make([]hass.State, 0, len(all))
	for _, st := range all {
		if domain != "" && st.Domain() != domain {
			continue
		}
		entities = append(entities, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !strings.Contains(id, ".") {
		writeBadRequest(w, "entity id must be domain.object_id")
		return
	}
	st, ok := s.runtime.Entity(id)
	if !ok {
		writeNotFound(w, "entity not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
