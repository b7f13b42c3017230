package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/attrcycle/internal/history"
)

// handleCyclerHistory pages through recorded events, newest first.
// Query parameters: kind, limit, offset.
func (s *Server) handleCyclerHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event history is disabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{Cycler: ctrl.Table().ID(), Kind: q.Get("kind")}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	res, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing cycle events failed", "cycler", filter.Cycler, "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
