package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"toolcatalog/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse is the body of every error reply. Message is always present.
type ErrorResponse struct {
	Message   string              `json:"message"`
	Code      string              `json:"code"`
	Errors    []domain.FieldError `json:"errors,omitempty"`
	Details   map[string]any      `json:"details,omitempty"`
	Timestamp string              `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]any) {
	writeError(w, statusCode, ErrorResponse{
		Message: message,
		Details: details,
	})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, fields []domain.FieldError) {
	writeError(w, http.StatusBadRequest, ErrorResponse{
		Message: "validation failed",
		Errors:  fields,
	})
}

// RespondWithServiceError maps an error returned by the service layer to its HTTP status.
// Unexpected errors are logged and answered with a generic message.
func RespondWithServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		validationErr *domain.ValidationError
		uploadErr     *domain.UploadError
	)

	switch {
	case errors.As(err, &validationErr):
		RespondWithValidationErrors(w, validationErr.Fields)
	case errors.Is(err, domain.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConcurrentWrite):
		logger.Warn("Write aborted by a concurrent transaction", zap.Error(err))
		RespondWithErrorDetails(w, http.StatusConflict, domain.ErrConcurrentWrite.Error(), map[string]any{"retryable": true})
	case errors.Is(err, domain.ErrConflict):
		RespondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &uploadErr):
		logger.Error("Image upload failed", zap.Error(err))
		RespondWithError(w, http.StatusBadGateway, "image upload failed")
	default:
		logger.Error("Request failed", zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	response.Code = http.StatusText(statusCode)
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
