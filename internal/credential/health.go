package credential

import (
	"context"
	"log/slog"
	"time"
)

// Prober issues the cheapest real call the provider accepts with secret.
// Errors should be classified (*CallError) so the pool can react to them.
type Prober interface {
	Probe(ctx context.Context, secret string) error
}

// HealthCheckerConfig holds probe scheduling settings.
type HealthCheckerConfig struct {
	// Interval between probe rounds. If zero, defaults to 5 minutes.
	Interval time.Duration
	// Timeout bounds each probe. If zero, defaults to 10 seconds.
	Timeout time.Duration
}

// HealthChecker periodically probes every credential the pool considers
// eligible. It is the only component that brings a credential back into
// rotation.
type HealthChecker struct {
	pool   *Pool
	prober Prober
	config HealthCheckerConfig
	logger *slog.Logger
}

// NewHealthChecker creates a HealthChecker for pool.
func NewHealthChecker(pool *Pool, prober Prober, config HealthCheckerConfig, logger *slog.Logger) *HealthChecker {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &HealthChecker{
		pool:   pool,
		prober: prober,
		config: config,
		logger: logger.With("component", "credential_health"),
	}
}

// Run probes all credentials immediately and then once per interval until
// ctx is cancelled.
func (h *HealthChecker) Run(ctx context.Context) {
	// Check once at startup so deactivated credentials do not wait a full interval
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CheckAll(ctx)
		}
	}
}

// CheckAll runs one probe round. Probes are sequential so a round never
// spends more than one call's worth of quota at a time.
func (h *HealthChecker) CheckAll(ctx context.Context) {
	candidates := h.pool.ProbeCandidates()
	for _, lease := range candidates {
		if ctx.Err() != nil {
			return
		}
		h.probe(ctx, lease)
	}
	h.logger.Debug("health check round finished",
		"probed", len(candidates),
		"active", h.pool.ActiveCount(),
		"pool_size", h.pool.Size())
}

// Check probes a single credential regardless of cooldown, typically right
// after an operator reset.
func (h *HealthChecker) Check(ctx context.Context, id string) error {
	lease, err := h.pool.probeTarget(id)
	if err != nil {
		return err
	}
	h.probe(ctx, lease)
	return nil
}

func (h *HealthChecker) probe(ctx context.Context, lease Lease) {
	probeCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	// Time the probe; response time is part of the credential's health
	start := time.Now()
	err := h.prober.Probe(probeCtx, lease.Secret)
	elapsed := time.Since(start)

	if err != nil {
		h.logger.Warn("credential probe failed",
			"credential_id", lease.ID,
			"class", ClassOf(err).String(),
			"response_time_ms", elapsed.Milliseconds())
	}

	// The pool decides whether the result reactivates or deactivates
	if recErr := h.pool.RecordProbe(lease.ID, elapsed, err); recErr != nil {
		h.logger.Error("failed to record probe result", "credential_id", lease.ID, "error", recErr)
	}
}
