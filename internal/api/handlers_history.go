package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/report"
)

// handleListHistory lists a user's predictions, newest first.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actingUser(w, r, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}

	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	preds, err := s.history.ListByUser(r.Context(), userID, limit)
	if err != nil {
		s.log.Error("list history", "user_id", userID, "error", err)
		jsonError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	items := make([]history.Item, len(preds))
	for i, p := range preds {
		items[i] = p.Summary()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"items":   items,
	})
}

// loadPrediction fetches the {id} prediction. Another user's prediction is
// reported as not found.
func (s *Server) loadPrediction(w http.ResponseWriter, r *http.Request) (*history.Prediction, bool) {
	p, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		jsonError(w, "prediction not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.log.Error("get prediction", "error", err)
		jsonError(w, "failed to load prediction", http.StatusInternalServerError)
		return nil, false
	}
	if !canAccess(r, p.UserID) {
		jsonError(w, "prediction not found", http.StatusNotFound)
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPrediction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleReport renders a stored prediction as HTML, or Markdown with ?format=md.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPrediction(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(report.Markdown(p))
		return
	}

	out, err := report.HTML(p)
	if err != nil {
		s.log.Error("render report", "id", p.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}
