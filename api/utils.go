package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/export"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/validator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// respondJSON writes v as a JSON response with the given status
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// respondWithError logs an error and sends an HTTP error response as JSON
func respondWithError(w http.ResponseWriter, message string, err error, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logger.Error(message, "error", err, "status", statusCode)
	} else {
		logger.Warn(message, "error", err, "status", statusCode)
	}
	respondJSON(w, statusCode, errorResponse{Error: message})
}

// respondWithValidationError sends a validation error response as JSON
func respondWithValidationError(w http.ResponseWriter, message string, fields ...string) {
	logger.Warn("Validation error", "message", message)
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: message, Fields: fields})
}

// statusFor maps catalog errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalidBook),
		errors.Is(err, validator.ErrNotNumber),
		errors.Is(err, book.ErrInvalidStatus),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrIndexOutOfRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondWithCatalogError picks the status for err and writes it.
func respondWithCatalogError(w http.ResponseWriter, message string, err error) {
	switch status := statusFor(err); status {
	case http.StatusBadRequest:
		respondWithValidationError(w, err.Error(), validator.Fields(err)...)
	case http.StatusNotFound:
		respondWithError(w, err.Error(), err, status)
	default:
		respondWithError(w, message, err, status)
	}
}

// contentDisposition builds an attachment header for filename.
func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", strings.ReplaceAll(filename, `"`, ""))
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
