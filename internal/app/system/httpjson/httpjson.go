// internal/app/system/httpjson/httpjson.go
// Package httpjson holds the JSON request/response helpers used by every
// API feature handler.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxBodyBytes caps decoded request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

// Write encodes v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Decode reads the request body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierr.E(apierr.Invalid, "invalid request body")
	}
	return nil
}

// Status maps an error to its HTTP status. Mongo "no documents" is folded
// into 404 so store lookups can bubble up unwrapped.
func Status(err error) int {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return http.StatusNotFound
	}
	switch apierr.KindOf(err) {
	case apierr.NotFound:
		return http.StatusNotFound
	case apierr.Unauthorized:
		return http.StatusUnauthorized
	case apierr.Forbidden:
		return http.StatusForbidden
	case apierr.Conflict:
		return http.StatusConflict
	case apierr.Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error response. Internal errors are
// logged with their real cause and reported with a generic message.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		msg = "internal error"
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		msg = "not found"
	}
	Write(w, status, errorBody{Error: msg})
}

// NotFound is the canonical "not found" response; also used where a
// Forbidden result must not reveal that the resource exists.
func NotFound(w http.ResponseWriter) {
	Write(w, http.StatusNotFound, errorBody{Error: "not found"})
}

// Forbidden is the canonical permission-denied response.
func Forbidden(w http.ResponseWriter) {
	Write(w, http.StatusForbidden, errorBody{Error: "forbidden"})
}

// Unauthorized is the canonical sign-in-required response.
func Unauthorized(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
}
