package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/trigger"
)

// CyclerList is the response of GET /cyclers.
type CyclerList struct {
	Cyclers []cycle.Snapshot `json:"cyclers"`
	Count   int              `json:"count"`
}

// CyclerMetadata is the response of GET /cyclers/{id}/metadata.
type CyclerMetadata struct {
	ID        string                  `json:"id"`
	Attribute cycle.Attribute         `json:"attribute"`
	Values    []int32                 `json:"values"`
	Params    cycle.ParameterMetadata `json:"params"`
}

func (s *Server) handleListCyclers(w http.ResponseWriter, _ *http.Request) {
	ctrls := s.controllers.List()
	out := CyclerList{Cyclers: make([]cycle.Snapshot, 0, len(ctrls)), Count: len(ctrls)}
	for _, c := range ctrls {
		out.Cyclers = append(out.Cyclers, c.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCycler(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) handleCyclerMetadata(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	t := ctrl.Table()
	writeJSON(w, http.StatusOK, CyclerMetadata{
		ID:        t.ID(),
		Attribute: t.Attribute(),
		Values:    t.Values(),
		Params:    cycle.Metadata(),
	})
}

// handleTrigger accepts the same payloads as the MQTT trigger topic.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large or unreadable")
		return
	}
	step, err := trigger.ParseStep(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.trigger(w, ctrl, step)
}

func (s *Server) handleStep(step int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := s.lookup(w, r)
		if !ok {
			return
		}
		s.trigger(w, ctrl, step)
	}
}

func (s *Server) trigger(w http.ResponseWriter, ctrl *cycle.Controller, step int32) {
	snap := ctrl.Trigger(step)
	s.logger.Debug("http trigger", "cycler", snap.ID, "step", step, "index", snap.Index)
	if s.onTrigger != nil {
		s.onTrigger(snap)
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleFlush writes every pending save now.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.controllers.Flush(r.Context()); err != nil {
		s.logger.Error("flushing cycler state failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "flush failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*cycle.Controller, bool) {
	id := chi.URLParam(r, "id")
	ctrl, ok := s.controllers.Get(id)
	if !ok {
		writeNotFound(w, "cycler not found: "+id)
		return nil, false
	}
	return ctrl, true
}
