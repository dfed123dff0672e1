package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/vidscribe/internal/cache"
	"github.com/phrazzld/vidscribe/internal/config"
	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/events"
	"github.com/phrazzld/vidscribe/internal/generation"
	"github.com/phrazzld/vidscribe/internal/notify"
	"github.com/phrazzld/vidscribe/internal/platform/gemini"
	"github.com/phrazzld/vidscribe/internal/platform/postgres"
	"github.com/phrazzld/vidscribe/internal/platform/youtube"
	"github.com/phrazzld/vidscribe/internal/service"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/phrazzld/vidscribe/internal/task"
	"github.com/phrazzld/vidscribe/internal/transcript"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Connections owned by the application, nil when not configured
	redis *redis.Client
	mqtt  *notify.MQTTPublisher

	pool          *credential.Pool
	healthChecker *credential.HealthChecker
	deadLetters   store.DeadLetterStore
	runner        *task.Runner
	resources     service.ResourceService
}

// components are the collaborators assemble wires together. newApplication
// builds the production set; tests pass fakes.
type components struct {
	resources   store.ResourceStore
	deadLetters store.DeadLetterStore
	cache       cache.ResourceCache
	guard       notify.Guard
	emitter     events.EventEmitter
	source      transcript.Source
	generator   generation.Client
	prober      credential.Prober
}

// newApplication creates the production application on top of an open
// database connection.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.cleanup()
		}
	}()

	c := components{
		resources:   postgres.NewPostgresResourceStore(db),
		deadLetters: postgres.NewPostgresDeadLetterStore(db),
	}

	if cfg.Redis.Enabled() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.cache = cache.NewRedisCache(app.redis, cfg.Redis.KeyPrefix, cfg.Redis.CacheTTL, logger)
		c.guard = notify.NewRedisGuard(app.redis, cfg.Redis.KeyPrefix, cfg.Redis.GuardTTL)
		logger.Info("redis cache and notification guard enabled", "addr", cfg.Redis.Addr)
	} else {
		c.guard = notify.NewLocalGuard(cfg.Redis.GuardTTL)
		logger.Warn("redis not configured, caching disabled and notification guard is process-local")
	}

	if cfg.MQTT.Enabled() {
		publisher, err := notify.ConnectMQTT(notify.MQTTOptions{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		app.mqtt = publisher
		c.emitter = events.Multi(publisher, newLoggingEmitter(logger))
	} else {
		c.emitter = newLoggingEmitter(logger)
	}

	pool, err := credential.NewPool(cfg.LLM.APIKeys, credential.PoolConfig{
		ErrorThreshold:    cfg.Credentials.ErrorThreshold,
		QuotaLimit:        cfg.Credentials.QuotaLimit,
		QuotaPeriod:       cfg.Credentials.QuotaPeriod,
		RateLimitCooldown: cfg.Credentials.RateLimitCooldown,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential pool: %w", err)
	}

	gen, err := gemini.NewClient(pool, gemini.Config{
		ModelName:   cfg.LLM.ModelName,
		CallTimeout: cfg.LLM.CallTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	c.generator = gen
	c.prober = gemini.NewProber(gen)

	c.source, err = youtube.NewFetcher(youtube.Config{
		BaseURL:           cfg.Transcript.BaseURL,
		Timeout:           cfg.Transcript.Timeout,
		RequestsPerSecond: cfg.Transcript.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transcript source: %w", err)
	}

	if err := app.assemble(pool, c); err != nil {
		return nil, err
	}
	ok = true
	logger.Info("application initialized successfully", "credentials", pool.Size())
	return app, nil
}

// assemble builds the queue, runner and services from c.
func (app *application) assemble(pool *credential.Pool, c components) error {
	cfg, logger := app.config, app.logger

	app.pool = pool
	app.deadLetters = c.deadLetters
	app.healthChecker = credential.NewHealthChecker(pool, c.prober, credential.HealthCheckerConfig{
		Interval: cfg.Credentials.HealthCheckInterval,
		Timeout:  cfg.Credentials.ProbeTimeout,
	}, logger)

	runner, err := task.NewRunner(task.Dependencies{
		Queue:       task.NewQueue(cfg.Task.QueueSize, logger),
		Resources:   c.resources,
		DeadLetters: c.deadLetters,
		Cache:       c.cache,
		Notifier:    notify.NewNotifier(c.guard, c.emitter, logger),
	}, task.RunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		MaxAttempts:            cfg.Task.MaxAttempts,
		BaseBackoff:            cfg.Task.BaseBackoff,
		MaxBackoff:             cfg.Task.MaxBackoff,
		JobTimeout:             cfg.Task.JobTimeout,
		StuckTaskAge:           cfg.Task.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Task.StuckCheckInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create task runner: %w", err)
	}
	runner.RegisterHandler(task.TypeTranscript, task.NewTranscriptHandler(c.source, c.generator, logger))
	runner.RegisterHandler(task.TypeSummary, task.NewSummaryHandler(c.resources, c.generator))
	app.runner = runner

	app.resources, err = service.NewResourceService(c.resources, c.cache, runner, logger)
	if err != nil {
		return fmt.Errorf("failed to create resource service: %w", err)
	}
	return nil
}

// Run starts the workers, the credential health checker and the HTTP
// server, and blocks until ctx is cancelled or one of them fails.
func (app *application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := app.runner.Start(gctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	g.Go(func() error {
		app.healthChecker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return app.startHTTPServer(gctx, app.setupRouter())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. In-flight
// items finish before the connections they write through are closed.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.mqtt != nil {
		app.mqtt.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}

// newLoggingEmitter logs every resource event at info.
func newLoggingEmitter(logger *slog.Logger) *events.InMemoryEventEmitter {
	emitter := events.NewInMemoryEventEmitter(logger)
	log := logger.With("component", "resource_events")
	emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, event *events.ResourceEvent) error {
		log.InfoContext(ctx, "resource event",
			"type", event.Type,
			"job_id", event.JobID,
			"record_id", event.RecordID,
			"status", event.Status)
		return nil
	}))
	return emitter
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status            string `json:"status"`
	Workers           int    `json:"workers"`
	ActiveCredentials int    `json:"active_credentials"`
}

func (app *application) health() (int, healthResponse) {
	resp := healthResponse{
		Status:            "ok",
		Workers:           app.runner.Workers(),
		ActiveCredentials: app.pool.ActiveCount(),
	}
	if resp.ActiveCredentials == 0 {
		resp.Status = "degraded"
		return http.StatusServiceUnavailable, resp
	}
	return http.StatusOK, resp
}
