package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/vidscribe/internal/credential"
	"google.golang.org/genai"
)

// google.rpc detail types carried in Gemini error bodies.
const (
	detailErrorInfo    = "type.googleapis.com/google.rpc.ErrorInfo"
	detailQuotaFailure = "type.googleapis.com/google.rpc.QuotaFailure"
	detailRetryInfo    = "type.googleapis.com/google.rpc.RetryInfo"

	reasonAPIKeyInvalid = "API_KEY_INVALID"
)

// Classify converts an error returned by the genai SDK into a
// *credential.CallError. It inspects the HTTP code and structured details
// only. A nil error stays nil and an already classified error is returned
// unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var ce *credential.CallError
	if errors.As(err, &ce) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return credential.NewCallError(credential.ClassUnknown, err)
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return credential.NewCallError(credential.ClassUnknown, err)
	}

	out := &credential.CallError{StatusCode: apiErr.Code, Err: err}
	switch {
	case apiErr.Code == http.StatusUnauthorized:
		out.Class = credential.ClassInvalidCredential
	case apiErr.Code == http.StatusBadRequest && hasReason(apiErr.Details, reasonAPIKeyInvalid):
		out.Class = credential.ClassInvalidCredential
	case apiErr.Code == http.StatusBadRequest, apiErr.Code == http.StatusNotFound:
		out.Class = credential.ClassBadRequest
	case apiErr.Code == http.StatusForbidden:
		out.Class = credential.ClassForbidden
	case apiErr.Code == http.StatusTooManyRequests:
		out.RetryAfter = retryDelay(apiErr.Details)
		if dailyQuotaExhausted(apiErr.Details) {
			out.Class = credential.ClassQuotaExceeded
		} else {
			out.Class = credential.ClassRateLimitExceeded
		}
	case apiErr.Code >= http.StatusInternalServerError:
		out.Class = credential.ClassServerError
	default:
		out.Class = credential.ClassUnknown
	}
	return out
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func detailsOfType(details []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, d := range details {
		if t, _ := d["@type"].(string); t == typ {
			out = append(out, d)
		}
	}
	return out
}

func hasReason(details []map[string]any, reason string) bool {
	for _, d := range detailsOfType(details, detailErrorInfo) {
		if r, _ := d["reason"].(string); r == reason {
			return true
		}
	}
	return false
}

// dailyQuotaExhausted reports whether a QuotaFailure names a per-day quota.
// Per-minute violations clear on their own and are rate limits.
func dailyQuotaExhausted(details []map[string]any) bool {
	for _, d := range detailsOfType(details, detailQuotaFailure) {
		violations, _ := d["violations"].([]any)
		for _, v := range violations {
			vm, _ := v.(map[string]any)
			if id, _ := vm["quotaId"].(string); strings.Contains(id, "PerDay") {
				return true
			}
		}
	}
	return false
}

func retryDelay(details []map[string]any) time.Duration {
	for _, d := range detailsOfType(details, detailRetryInfo) {
		raw, _ := d["retryDelay"].(string)
		if delay, err := time.ParseDuration(raw); err == nil && delay > 0 {
			return delay
		}
	}
	return 0
}
