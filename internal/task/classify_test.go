package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/generation"
	"github.com/phrazzld/vidscribe/internal/transcript"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Failure
	}{
		{name: "pool exhausted", err: fmt.Errorf("translate: %w", credential.ErrPoolExhausted), want: FailurePoolExhausted},
		{name: "not ready", err: fmt.Errorf("%w: transcript is pending", ErrNotReady), want: FailureNotReady},
		{name: "marked permanent", err: Permanent(errors.New("bad input")), want: FailurePermanent},
		{name: "no captions", err: fmt.Errorf("fetch: %w", transcript.ErrUnavailable), want: FailurePermanent},
		{name: "oversized captions", err: fmt.Errorf("fetch: %w", transcript.ErrTooLarge), want: FailurePermanent},
		{name: "empty input", err: generation.ErrEmptyInput, want: FailurePermanent},
		{name: "bad request", err: credential.NewCallError(credential.ClassBadRequest, errors.New("400")), want: FailurePermanent},
		{name: "rate limited", err: credential.NewCallError(credential.ClassRateLimitExceeded, errors.New("429")), want: FailureTransient},
		{name: "server error", err: credential.NewCallError(credential.ClassServerError, errors.New("503")), want: FailureTransient},
		{name: "forbidden after rotation", err: credential.NewCallError(credential.ClassForbidden, errors.New("403")), want: FailureTransient},
		{name: "timeout", err: context.DeadlineExceeded, want: FailureTransient},
		{name: "plain error", err: errors.New("connection reset"), want: FailureTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestPermanent(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")

	err := Permanent(base)

	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}
