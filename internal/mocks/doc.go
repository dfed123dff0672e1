// Package mocks provides in-memory fakes of the store, generation and
// transcript interfaces for tests in other packages.
//
// The fakes are safe for concurrent use and honor the same contracts as the
// real implementations where tests depend on them: MockResourceStore
// enforces one record per fingerprint and the expected-status check of
// UpdateIf, and MockDeadLetterStore writes the record and the dead letter
// together. Behavior is overridden through the Fn fields:
//
//	generator := &mocks.MockGenerationClient{
//	    SummarizeFn: func(ctx context.Context, text, language string) (string, error) {
//	        return "", errors.New("model overloaded")
//	    },
//	}
package mocks
