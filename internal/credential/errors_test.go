package credential

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		class           Class
		transient       bool
		permanent       bool
		credentialLevel bool
		retires         bool
	}{
		{ClassUnknown, true, false, false, false},
		{ClassRateLimitExceeded, true, false, true, false},
		{ClassQuotaExceeded, false, false, true, false},
		{ClassInvalidCredential, false, false, true, true},
		{ClassBadRequest, false, true, false, false},
		{ClassForbidden, false, false, true, true},
		{ClassServerError, true, false, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.class.String(), func(t *testing.T) {
			assert.Equal(t, tc.transient, tc.class.Transient())
			assert.Equal(t, tc.permanent, tc.class.Permanent())
			assert.Equal(t, tc.credentialLevel, tc.class.CredentialLevel())
			assert.Equal(t, tc.retires, tc.class.Retires())
		})
	}
}

func TestClassOf(t *testing.T) {
	t.Parallel()

	base := &CallError{Class: ClassQuotaExceeded, StatusCode: 429, Err: errors.New("quota")}
	wrapped := fmt.Errorf("summarize: %w", base)

	assert.Equal(t, ClassQuotaExceeded, ClassOf(wrapped))
	assert.Equal(t, ClassUnknown, ClassOf(context.DeadlineExceeded))
	assert.Equal(t, ClassUnknown, ClassOf(nil))
	assert.Equal(t, "QuotaExceeded: quota", base.Error())
	assert.Equal(t, "Class(42)", Class(42).String())
}
