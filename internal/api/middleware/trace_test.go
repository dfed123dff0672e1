package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestTrace(t *testing.T) {
	t.Parallel()
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		header  string
		chain   func(http.Handler) http.Handler
		want    string
		wantLen int
	}{
		{name: "generated", wantLen: 32},
		{name: "client header reused", header: "abc-123", want: "abc-123"},
		{name: "unusable header replaced", header: "bad id\n", wantLen: 32},
		{name: "chi request id preferred", header: "ignored", chain: chimw.RequestID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var seen string
			var hasLogger bool
			h := Trace(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = shared.GetTraceID(r.Context())
				hasLogger = logger.FromContextOrDefault(r.Context(), nil) != nil
				if tc.chain != nil {
					assert.Equal(t, chimw.GetReqID(r.Context()), seen)
				}
			}))
			if tc.chain != nil {
				h = tc.chain(h)
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(TraceHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.True(t, hasLogger)
			assert.Equal(t, seen, rec.Header().Get(TraceHeader))
			if tc.want != "" {
				assert.Equal(t, tc.want, seen)
			}
			if tc.wantLen != 0 {
				assert.Len(t, seen, tc.wantLen)
			}
			if tc.chain != nil {
				assert.NotEqual(t, "ignored", seen)
			}
		})
	}
}
