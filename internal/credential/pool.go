package credential

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/vidscribe/internal/platform/metrics"
	"github.com/phrazzld/vidscribe/internal/redact"
)

// PoolConfig tunes deactivation and quota accounting.
type PoolConfig struct {
	// ErrorThreshold is the number of consecutive non-credential failures
	// after which a credential is deactivated.
	ErrorThreshold int
	// QuotaLimit caps calls per credential per QuotaPeriod. Zero disables
	// local quota tracking.
	QuotaLimit        int
	QuotaPeriod       time.Duration
	RateLimitCooldown time.Duration
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ErrorThreshold:    3,
		QuotaPeriod:       24 * time.Hour,
		RateLimitCooldown: time.Minute,
	}
}

// Lease is a credential handed out for one call. Secret must not be logged.
type Lease struct {
	ID     string
	Secret string
}

// credential is the pool's private bookkeeping for one secret.
type credential struct {
	id     string
	hint   string
	secret string

	active            bool
	retired           bool
	consecutiveErrors int
	lastError         string
	lastClass         Class
	hasError          bool
	lastCheckedAt     time.Time
	lastUsedAt        time.Time
	responseTime      time.Duration
	quotaUsed         int
	quotaWindowStart  time.Time
	disabledUntil     time.Time
}

// Health is the redacted view of one credential.
type Health struct {
	ID                string        `json:"id"`
	Hint              string        `json:"hint"`
	Active            bool          `json:"is_active"`
	Retired           bool          `json:"retired"`
	ConsecutiveErrors int           `json:"error_count"`
	LastError         string        `json:"last_error,omitempty"`
	LastErrorClass    *Class        `json:"last_error_class,omitempty"`
	LastCheckedAt     time.Time     `json:"last_checked_at"`
	LastUsedAt        time.Time     `json:"last_used_at"`
	ResponseTime      time.Duration `json:"response_time_ns"`
	QuotaUsed         int           `json:"quota_used"`
	QuotaLimit        int           `json:"quota_limit"`
	QuotaRemaining    int           `json:"quota_remaining"`
	DisabledUntil     time.Time     `json:"disabled_until"`
}

// Pool owns the credentials. All reads and writes go through mu, so
// selection never observes a half-applied deactivation. Only the health
// path (RecordProbe) may set a credential active.
type Pool struct {
	mu     sync.Mutex
	creds  []*credential
	byID   map[string]*credential
	cfg    PoolConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPool creates a pool from configured secrets. All credentials start active.
func NewPool(secrets []string, cfg PoolConfig, logger *slog.Logger) (*Pool, error) {
	if len(secrets) == 0 {
		return nil, fmt.Errorf("%w: at least one credential is required", ErrInvalidPool)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidPool)
	}

	defaults := DefaultPoolConfig()
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = defaults.ErrorThreshold
	}
	if cfg.QuotaPeriod <= 0 {
		cfg.QuotaPeriod = defaults.QuotaPeriod
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = defaults.RateLimitCooldown
	}

	p := &Pool{
		byID:   make(map[string]*credential, len(secrets)),
		cfg:    cfg,
		logger: logger.With("component", "credential_pool"),
		now:    time.Now,
	}

	seen := make(map[string]struct{}, len(secrets))
	now := p.now()
	for i, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: credential %d is empty", ErrInvalidPool, i+1)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%w: credential %d is a duplicate", ErrInvalidPool, i+1)
		}
		seen[s] = struct{}{}

		c := &credential{
			id:               fmt.Sprintf("key-%d", i+1),
			hint:             redact.Hint(s),
			secret:           s,
			active:           true,
			quotaWindowStart: now,
		}
		p.creds = append(p.creds, c)
		p.byID[c.id] = c
	}

	metrics.CredentialsActive.Set(float64(len(p.creds)))
	return p, nil
}

// Acquire selects the active credential used least recently, breaking ties
// by quota consumed. It returns ErrPoolExhausted when none is usable.
func (p *Pool) Acquire() (Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Pick the least recently used active credential, breaking ties on quota
	now := p.now()
	var best *credential
	for _, c := range p.creds {
		p.rollQuotaWindowLocked(c, now)
		if !c.active {
			continue
		}
		// Take a credential out of rotation as soon as its local quota is spent
		if p.cfg.QuotaLimit > 0 && c.quotaUsed >= p.cfg.QuotaLimit {
			p.deactivateLocked(c, ClassQuotaExceeded, c.quotaWindowStart.Add(p.cfg.QuotaPeriod), "local quota reached")
			continue
		}
		if best == nil ||
			c.lastUsedAt.Before(best.lastUsedAt) ||
			(c.lastUsedAt.Equal(best.lastUsedAt) && c.quotaUsed < best.quotaUsed) {
			best = c
		}
	}

	if best == nil {
		metrics.PoolExhaustedTotal.Inc()
		p.logger.Warn("no active credential available", "pool_size", len(p.creds))
		return Lease{}, ErrPoolExhausted
	}

	// Charge the lease against the chosen credential
	best.lastUsedAt = now
	best.quotaUsed++
	return Lease{ID: best.id, Secret: best.secret}, nil
}

// Report records the outcome of a call made with the credential id. A nil
// err only clears the consecutive error count; it never reactivates.
func (p *Pool) Report(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		p.logger.Warn("outcome reported for unknown credential", "credential_id", id)
		return
	}
	if err == nil {
		c.consecutiveErrors = 0
		return
	}
	p.recordFailureLocked(c, err, "call")
}

// RecordProbe applies a health probe result. A successful probe is the only
// way an inactive credential becomes active again; retired credentials stay
// out until Reset.
func (p *Pool) RecordProbe(id string, responseTime time.Duration, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCredential, id)
	}

	c.lastCheckedAt = p.now()
	c.responseTime = responseTime

	if err != nil {
		p.recordFailureLocked(c, err, "probe")
		return nil
	}
	if c.retired {
		return nil
	}

	// A passing probe clears every trace of earlier failures
	wasActive := c.active
	c.active = true
	c.consecutiveErrors = 0
	c.disabledUntil = time.Time{}
	c.lastError = ""
	c.hasError = false
	if !wasActive {
		p.logger.Info("credential reactivated by health check",
			"credential_id", c.id,
			"response_time_ms", responseTime.Milliseconds())
		p.publishActiveLocked()
	}
	return nil
}

// ProbeCandidates returns the credentials the health checker should probe now:
// everything not retired and past any cooldown.
func (p *Pool) ProbeCandidates() []Lease {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var out []Lease
	for _, c := range p.creds {
		p.rollQuotaWindowLocked(c, now)
		if c.retired || now.Before(c.disabledUntil) {
			continue
		}
		out = append(out, Lease{ID: c.id, Secret: c.secret})
	}
	return out
}

// probeTarget returns one credential for an explicit check regardless of cooldown.
func (p *Pool) probeTarget(id string) (Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return Lease{}, fmt.Errorf("%w: %s", ErrUnknownCredential, id)
	}
	if c.retired {
		return Lease{}, fmt.Errorf("credential %s is retired and must be reset first", id)
	}
	return Lease{ID: c.id, Secret: c.secret}, nil
}

// Reset is the manual intervention for a retired credential. It clears the
// retirement and any cooldown but leaves the credential inactive until the
// next successful probe.
func (p *Pool) Reset(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCredential, id)
	}
	c.retired = false
	c.disabledUntil = time.Time{}
	c.consecutiveErrors = 0
	p.logger.Info("credential reset by operator", "credential_id", c.id, "active", c.active)
	return nil
}

// ActiveCount returns the number of credentials eligible for selection.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeCountLocked()
}

// Size returns the number of configured credentials.
func (p *Pool) Size() int {
	return len(p.creds)
}

// Snapshot returns the redacted health of every credential in configuration order.
func (p *Pool) Snapshot() []Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]Health, 0, len(p.creds))
	for _, c := range p.creds {
		p.rollQuotaWindowLocked(c, now)
		h := Health{
			ID:                c.id,
			Hint:              c.hint,
			Active:            c.active,
			Retired:           c.retired,
			ConsecutiveErrors: c.consecutiveErrors,
			LastError:         c.lastError,
			LastCheckedAt:     c.lastCheckedAt,
			LastUsedAt:        c.lastUsedAt,
			ResponseTime:      c.responseTime,
			QuotaUsed:         c.quotaUsed,
			QuotaLimit:        p.cfg.QuotaLimit,
			DisabledUntil:     c.disabledUntil,
		}
		if c.hasError {
			class := c.lastClass
			h.LastErrorClass = &class
		}
		if p.cfg.QuotaLimit > 0 {
			h.QuotaRemaining = max(p.cfg.QuotaLimit-c.quotaUsed, 0)
		}
		out = append(out, h)
	}
	return out
}

func (p *Pool) recordFailureLocked(c *credential, err error, source string) {
	class := ClassOf(err)
	now := p.now()

	// Record the failure with the secret scrubbed out of the message
	c.consecutiveErrors++
	c.lastError = redact.Error(err)
	c.lastClass = class
	c.hasError = true
	metrics.CredentialErrorsTotal.WithLabelValues(class.String()).Inc()

	// Decide how long the credential sits out
	switch {
	case class == ClassRateLimitExceeded:
		cooldown := retryAfterOf(err)
		if cooldown <= 0 {
			cooldown = p.cfg.RateLimitCooldown
		}
		p.deactivateLocked(c, class, now.Add(cooldown), source)
	case class == ClassQuotaExceeded:
		p.deactivateLocked(c, class, c.quotaWindowStart.Add(p.cfg.QuotaPeriod), source)
	case class.Retires():
		c.retired = true
		p.deactivateLocked(c, class, time.Time{}, source)
	case c.consecutiveErrors >= p.cfg.ErrorThreshold:
		p.deactivateLocked(c, class, time.Time{}, source)
	}
}

func (p *Pool) deactivateLocked(c *credential, class Class, until time.Time, source string) {
	if until.After(c.disabledUntil) {
		c.disabledUntil = until
	}
	if !c.active {
		return
	}
	c.active = false
	p.logger.Warn("credential deactivated",
		"credential_id", c.id,
		"class", class.String(),
		"source", source,
		"consecutive_errors", c.consecutiveErrors,
		"retired", c.retired,
		"disabled_until", c.disabledUntil)
	p.publishActiveLocked()
}

// rollQuotaWindowLocked starts a new quota window once the current one has
// elapsed. It never changes the active flag.
func (p *Pool) rollQuotaWindowLocked(c *credential, now time.Time) {
	if now.Sub(c.quotaWindowStart) >= p.cfg.QuotaPeriod {
		c.quotaWindowStart = now
		c.quotaUsed = 0
	}
}

func (p *Pool) activeCountLocked() int {
	n := 0
	for _, c := range p.creds {
		if c.active {
			n++
		}
	}
	return n
}

func (p *Pool) publishActiveLocked() {
	metrics.CredentialsActive.Set(float64(p.activeCountLocked()))
}
