package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/service"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/phrazzld/vidscribe/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{name: "nil error", err: nil, expectedStatus: http.StatusInternalServerError, expectedMsg: "An unexpected error occurred"},
		{name: "service not found", err: service.ErrNotFound, expectedStatus: http.StatusNotFound, expectedMsg: "Resource not found"},
		{name: "wrapped store not found", err: fmt.Errorf("get: %w", store.ErrResourceNotFound), expectedStatus: http.StatusNotFound, expectedMsg: "Resource not found"},
		{name: "unknown credential", err: fmt.Errorf("%w: k9", credential.ErrUnknownCredential), expectedStatus: http.StatusNotFound, expectedMsg: "Credential not found"},
		{name: "not restartable", err: fmt.Errorf("%w: record is pending", service.ErrNotRestartable), expectedStatus: http.StatusConflict, expectedMsg: "Resource is not in a restartable state"},
		{name: "store conflict", err: store.ErrConflict, expectedStatus: http.StatusConflict, expectedMsg: "Resource is not in a restartable state"},
		{name: "invalid kind", err: fmt.Errorf("%w: %q", domain.ErrInvalidKind, "video"), expectedStatus: http.StatusBadRequest, expectedMsg: "Invalid resource kind"},
		{name: "domain validation", err: fmt.Errorf("%w: language %q", domain.ErrValidation, "english!"), expectedStatus: http.StatusBadRequest, expectedMsg: `Invalid request: language "english!"`},
		{name: "empty body", err: shared.ErrEmptyBody, expectedStatus: http.StatusBadRequest, expectedMsg: "Request body is required"},
		{name: "invalid control", err: task.ErrInvalidControl, expectedStatus: http.StatusBadRequest, expectedMsg: "Invalid control message"},
		{name: "queue unavailable", err: fmt.Errorf("failed to enqueue: %w", task.ErrQueueUnavailable), expectedStatus: http.StatusServiceUnavailable, expectedMsg: "Work queue is unavailable, try again later"},
		{name: "runner stopped", err: task.ErrNotRunning, expectedStatus: http.StatusServiceUnavailable, expectedMsg: "Workers are not running"},
		{name: "unknown error", err: errors.New("pq: connection refused at 10.0.0.4:5432"), expectedStatus: http.StatusInternalServerError, expectedMsg: "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expectedStatus, MapErrorToStatusCode(tt.err))
			assert.Equal(t, tt.expectedMsg, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.ValidateRequest(&ResourceRequest{})
	assert.Equal(t, "Invalid language: required field", SanitizeValidationError(err))
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("anything")))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("server error uses the caller message", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		HandleAPIError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
			errors.New("redis: i/o timeout"), "Failed to get transcript")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to get transcript")
		assert.NotContains(t, rec.Body.String(), "redis")
	})

	t.Run("client error keeps the mapped message", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		HandleAPIError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
			service.ErrNotFound, "Failed to get transcript")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Resource not found")
	})
}
