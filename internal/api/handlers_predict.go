package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/predictor"
)

// decodeInput reads and validates a JSON feature set from the request body.
// It writes the error response itself and reports whether to continue.
func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (predictor.Input, bool) {
	var in predictor.Input
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return in, false
	}
	if err := in.Validate(); err != nil {
		s.predictError(w, err)
		return in, false
	}
	return in, true
}

// handlePredict scores one feature set without storing it.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	res, err := s.predictor.Predict(r.Context(), in.Features())
	if err != nil {
		s.predictError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreatePrediction scores a feature set and stores it in the user's history.
func (s *Server) handleCreatePrediction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actingUser(w, r, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	features := in.Features()
	res, err := s.predictor.Predict(r.Context(), features)
	if err != nil {
		s.predictError(w, err)
		return
	}

	p := &history.Prediction{
		UserID:         userID,
		Input:          features,
		Result:         res.Prediction,
		DecisionPath:   res.DecisionPath,
		Recommendation: res.Recommendation,
	}
	if err := s.history.Save(r.Context(), p); err != nil {
		s.log.Error("save prediction", "user_id", userID, "error", err)
		jsonError(w, "failed to store prediction", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
