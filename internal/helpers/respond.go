package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type errorBody struct {
	Status int      `json:"status"`
	Error  []string `json:"error"`
}

// RespondWithError writes a JSON error body with the given status and codes.
func RespondWithError(w http.ResponseWriter, status int, codes []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Status: status, Error: codes}); err != nil {
		zap.L().Error("Failed to encode error response", zap.Error(err))
	}
}

// RespondWithJSON writes a JSON response body with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("Failed to encode response", zap.Error(err))
	}
}

// ParseUUIDs extracts the positional id0, id1, ... URL parameters as UUIDs.
// Responds with 400 and returns false on the first malformed value.
func ParseUUIDs(w http.ResponseWriter, r *http.Request) (uuid.UUIDs, bool) {
	var ids uuid.UUIDs
	for i := 0; ; i++ {
		param := chi.URLParam(r, fmt.Sprintf("id%d", i))
		if param == "" {
			break
		}
		id, err := uuid.Parse(param)
		if err != nil {
			RespondWithError(w, 400, []string{"INVALID_ID"})
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
