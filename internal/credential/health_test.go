package credential

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu     sync.Mutex
	errs   map[string]error
	probed []string
}

func (f *fakeProber) Probe(_ context.Context, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, secret)
	return f.errs[secret]
}

func (f *fakeProber) set(secret string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[secret] = err
}

func (f *fakeProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.probed)
}

func TestHealthChecker_CheckAll(t *testing.T) {
	t.Parallel()
	p, clock := newTestPool(t, PoolConfig{RateLimitCooldown: time.Minute})
	prober := &fakeProber{errs: map[string]error{
		secretB: NewCallError(ClassForbidden, errors.New("PERMISSION_DENIED")),
	}}
	hc := NewHealthChecker(p, prober, HealthCheckerConfig{Timeout: time.Second}, testLogger())

	p.Report("key-1", NewCallError(ClassRateLimitExceeded, errors.New("429")))
	hc.CheckAll(context.Background())

	// key-1 is still cooling down, so it is skipped and stays inactive.
	assert.Equal(t, 2, prober.count())
	assert.False(t, healthOf(t, p, "key-1").Active)
	assert.False(t, healthOf(t, p, "key-2").Active)
	assert.True(t, healthOf(t, p, "key-2").Retired)
	assert.True(t, healthOf(t, p, "key-3").Active)

	clock.Advance(time.Minute)
	hc.CheckAll(context.Background())

	assert.True(t, healthOf(t, p, "key-1").Active)
	assert.False(t, healthOf(t, p, "key-2").Active, "retired credentials are not probed")
	assert.Equal(t, 4, prober.count())
}

func TestHealthChecker_CheckAfterReset(t *testing.T) {
	t.Parallel()
	p, _ := newTestPool(t, DefaultPoolConfig())
	prober := &fakeProber{errs: map[string]error{}}
	hc := NewHealthChecker(p, prober, HealthCheckerConfig{}, testLogger())

	p.Report("key-2", NewCallError(ClassInvalidCredential, errors.New("API_KEY_INVALID")))

	err := hc.Check(context.Background(), "key-2")
	require.Error(t, err)
	assert.Zero(t, prober.count())

	require.NoError(t, p.Reset("key-2"))
	require.NoError(t, hc.Check(context.Background(), "key-2"))
	assert.True(t, healthOf(t, p, "key-2").Active)

	assert.ErrorIs(t, hc.Check(context.Background(), "key-7"), ErrUnknownCredential)
}

func TestHealthChecker_FailedProbeKeepsTransientActive(t *testing.T) {
	t.Parallel()
	p, _ := newTestPool(t, PoolConfig{ErrorThreshold: 3})
	prober := &fakeProber{errs: map[string]error{}}
	prober.set(secretC, NewCallError(ClassServerError, errors.New("503")))
	hc := NewHealthChecker(p, prober, HealthCheckerConfig{}, testLogger())

	hc.CheckAll(context.Background())

	h := healthOf(t, p, "key-3")
	assert.True(t, h.Active)
	assert.Equal(t, 1, h.ConsecutiveErrors)
	assert.False(t, h.LastCheckedAt.IsZero())
}

func TestHealthChecker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	p, _ := newTestPool(t, DefaultPoolConfig())
	prober := &fakeProber{errs: map[string]error{}}
	hc := NewHealthChecker(p, prober, HealthCheckerConfig{Interval: 10 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return prober.count() >= 6 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
