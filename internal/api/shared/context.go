package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

// ContextKey is the type for request-scoped values set by this package.
type ContextKey string

const (
	// TraceIDKey holds the trace id of the current request.
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a generated trace id.
	TraceIDLength = 16
)

// Incoming ids are only echoed back when they look like ids.
var traceIDRe = regexp.MustCompile(`^[A-Za-z0-9._:/-]{1,128}$`)

// SetTraceID stores traceID in the context, generating one when the caller
// supplied none or supplied something unusable.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	if !traceIDRe.MatchString(traceID) {
		traceID = generateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id of the request, or "" when none is set.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
