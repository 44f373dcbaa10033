package api

import (
	"net/http"
)

func (s *Server) handlePredictStats(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil || s.predictor.Stats == nil {
		jsonError(w, "prediction stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       s.predictor.Stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
