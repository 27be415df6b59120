package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"toolcatalog/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var catalogErrorStatuses = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
}

func TestProperty_ErrorBodiesShareOneShape(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every error body has message, code and an RFC3339 timestamp", prop.ForAll(
		func(statusIdx int, message string) bool {
			status := catalogErrorStatuses[statusIdx]

			w := httptest.NewRecorder()
			RespondWithError(w, status, message)

			if w.Code != status || w.Header().Get("Content-Type") != "application/json" {
				return false
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				return false
			}
			if body["message"] != message || body["code"] != http.StatusText(status) {
				return false
			}
			if _, hasFields := body["errors"]; hasFields {
				return false
			}
			ts, _ := body["timestamp"].(string)
			_, err := time.Parse(time.RFC3339, ts)
			return err == nil
		},
		gen.IntRange(0, len(catalogErrorStatuses)-1),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidationFieldsKeepOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("field errors are returned in the order reported", prop.ForAll(
		func(fields []string) bool {
			errs := make([]domain.FieldError, 0, len(fields))
			for i, f := range fields {
				errs = append(errs, domain.FieldError{Field: fmt.Sprintf("keywords[%d].%s", i, f), Message: "This field is required"})
			}

			w := httptest.NewRecorder()
			RespondWithValidationErrors(w, errs)

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if w.Code != http.StatusBadRequest || response.Message != "validation failed" {
				return false
			}
			if len(errs) == 0 {
				return len(response.Errors) == 0
			}
			return assert.ObjectsAreEqual(errs, response.Errors)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithErrorDetails(w, http.StatusNotFound, "category not found", map[string]any{"category": "SEO"})

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", response.Code)
	assert.Equal(t, map[string]any{"category": "SEO"}, response.Details)
}

func TestErrorHandlingMiddleware_ReraisesAbort(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products", nil))
	})
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", domain.NewValidationError("rating", "Value must be less than or equal to 10"), http.StatusBadRequest, "validation failed"},
		{"not found", fmt.Errorf("product %w", domain.ErrNotFound), http.StatusNotFound, "product not found"},
		{"conflict", fmt.Errorf("category %w", domain.ErrConflict), http.StatusConflict, "category already exists"},
		{"upload", &domain.UploadError{Err: errors.New("timeout")}, http.StatusBadGateway, "image upload failed"},
		{"storage", &domain.StorageError{Op: "list products", Err: errors.New("pq: password=secret")}, http.StatusInternalServerError, "internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.message, response.Message)
			assert.Equal(t, http.StatusText(tt.status), response.Code)
		})
	}
}

func TestRespondWithServiceError_ConcurrentWriteIsRetryable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	err := fmt.Errorf("%w: %w", domain.ErrConcurrentWrite, errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"))

	w := httptest.NewRecorder()
	RespondWithServiceError(w, err, zap.New(core))

	assert.Equal(t, http.StatusConflict, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "concurrent write, retry the request", response.Message)
	assert.Equal(t, map[string]any{"retryable": true}, response.Details)
	assert.NotContains(t, w.Body.String(), "SQLSTATE")
	assert.Equal(t, 1, logs.FilterMessage("Write aborted by a concurrent transaction").Len())
}

func TestRespondWithServiceError_ListsFields(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithServiceError(w, &domain.ValidationError{Fields: []domain.FieldError{
		{Field: "description", Message: "Must be at least 10 characters"},
		{Field: "reviewers[0].url", Message: "Must be an absolute http, https or ftp URL"},
	}}, zap.NewNop())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body["message"])
	assert.Len(t, body["errors"], 2)
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal server error", response.Message)
}
