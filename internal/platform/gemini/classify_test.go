package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	keyInvalid := []map[string]any{{
		"@type":  detailErrorInfo,
		"reason": reasonAPIKeyInvalid,
		"domain": "googleapis.com",
	}}
	perDay := []map[string]any{{
		"@type": detailQuotaFailure,
		"violations": []any{map[string]any{
			"quotaMetric": "generativelanguage.googleapis.com/generate_content_free_tier_requests",
			"quotaId":     "GenerateRequestsPerDayPerProjectPerModel-FreeTier",
		}},
	}}
	perMinute := []map[string]any{
		{
			"@type": detailQuotaFailure,
			"violations": []any{map[string]any{
				"quotaId": "GenerateRequestsPerMinutePerProjectPerModel-FreeTier",
			}},
		},
		{"@type": detailRetryInfo, "retryDelay": "21s"},
	}

	tests := []struct {
		name       string
		err        error
		class      credential.Class
		retryAfter time.Duration
	}{
		{name: "unauthorized", err: genai.APIError{Code: 401, Status: "UNAUTHENTICATED"}, class: credential.ClassInvalidCredential},
		{name: "invalid api key", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Details: keyInvalid}, class: credential.ClassInvalidCredential},
		{name: "bad request", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, class: credential.ClassBadRequest},
		{name: "unknown model", err: genai.APIError{Code: 404, Status: "NOT_FOUND"}, class: credential.ClassBadRequest},
		{name: "forbidden", err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, class: credential.ClassForbidden},
		{name: "daily quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Details: perDay}, class: credential.ClassQuotaExceeded},
		{name: "per minute limit", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Details: perMinute}, class: credential.ClassRateLimitExceeded, retryAfter: 21 * time.Second},
		{name: "bare 429", err: genai.APIError{Code: 429}, class: credential.ClassRateLimitExceeded},
		{name: "server error", err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}, class: credential.ClassServerError},
		{name: "wrapped api error", err: fmt.Errorf("generate: %w", genai.APIError{Code: 500}), class: credential.ClassServerError},
		{name: "timeout", err: context.DeadlineExceeded, class: credential.ClassUnknown},
		{name: "network", err: errors.New("connection reset by peer"), class: credential.ClassUnknown},
		{name: "odd status", err: genai.APIError{Code: 409}, class: credential.ClassUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)

			var ce *credential.CallError
			require.ErrorAs(t, got, &ce)
			assert.Equal(t, tc.class, ce.Class)
			assert.Equal(t, tc.retryAfter, ce.RetryAfter)
			assert.Equal(t, tc.err, ce.Err)
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Classify(nil))

	already := credential.NewCallError(credential.ClassBadRequest, errors.New("blocked"))
	assert.Same(t, already, Classify(already))
}
