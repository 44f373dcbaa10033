package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/dgallion1/aquasens/internal/decisionpath"
	"github.com/dgallion1/aquasens/internal/dtree"
	"github.com/dgallion1/aquasens/internal/encoder"
	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/predictor"
	"github.com/dgallion1/aquasens/internal/recommend"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// predictError maps a prediction failure onto a response.
func (s *Server) predictError(w http.ResponseWriter, err error) {
	var verr *predictor.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, decisionpath.ErrMalformedInput),
		errors.Is(err, encoder.ErrMissingFeature),
		errors.Is(err, encoder.ErrInvalidFeature),
		errors.Is(err, predictor.ErrInvalidFeature),
		errors.Is(err, dtree.ErrRowWidth):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, history.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, recommend.ErrUnknownClass):
		s.log.Error("model produced unknown class", "error", err)
		jsonError(w, "model error: "+err.Error(), http.StatusInternalServerError)
	default:
		s.log.Error("prediction failed", "error", err)
		jsonError(w, "prediction failed", http.StatusInternalServerError)
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.csv"
	}
	return name
}
