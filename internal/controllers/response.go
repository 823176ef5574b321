package controllers

import (
	"errors"
	json "github.com/goccy/go-json"
	"math"
	"net/http"
	"threadmark/internal/models"
	"threadmark/internal/providers"

	"github.com/spf13/cast"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const persistenceFailure = "failed to save progress"

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequest
	}
	return nil
}

// failPersistence logs a store error and reports the action as failed.
func failPersistence(w http.ResponseWriter, logger providers.Logger, action string, err error) {
	logger.Errorf(providers.TypePost, "%s failed: %v", action, err)
	http.Error(w, persistenceFailure, http.StatusInternalServerError)
}

// commentIDFrom accepts a whole JSON number or a rendered identifier such as
// "c_123". Fractional numbers are rejected rather than truncated.
func commentIDFrom(v any) (models.CommentID, bool) {
	switch x := v.(type) {
	case string:
		return models.ParseCommentID(x)
	case bool:
		return 0, false
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
	case float32:
		if float64(x) != math.Trunc(float64(x)) {
			return 0, false
		}
	}
	n, err := cast.ToUint64E(v)
	if err != nil || n == 0 {
		return 0, false
	}
	return models.CommentID(n), true
}
