package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard records that a terminal event for a job is about to be emitted.
type Guard interface {
	// TryMarkSent returns true exactly once per TTL window for jobID.
	TryMarkSent(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// RedisGuard implements Guard with SET NX EX.
type RedisGuard struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Guard = (*RedisGuard)(nil)

// NewRedisGuard creates a RedisGuard with keys under prefix.
func NewRedisGuard(client redis.Cmdable, prefix string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the marker key for jobID: {prefix}:notified:{jobID}.
func (g *RedisGuard) Key(jobID uuid.UUID) string {
	return fmt.Sprintf("%s:notified:%s", g.prefix, jobID)
}

// TryMarkSent implements Guard.
func (g *RedisGuard) TryMarkSent(ctx context.Context, jobID uuid.UUID) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.Key(jobID), time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("notification guard for job %s: %w", jobID, err)
	}
	return ok, nil
}

// LocalGuard implements Guard in process memory. It deduplicates only
// within one process and is used when Redis is not configured.
type LocalGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	markers map[uuid.UUID]time.Time
}

var _ Guard = (*LocalGuard)(nil)

// NewLocalGuard creates a LocalGuard.
func NewLocalGuard(ttl time.Duration) *LocalGuard {
	return &LocalGuard{ttl: ttl, now: time.Now, markers: make(map[uuid.UUID]time.Time)}
}

// TryMarkSent implements Guard.
func (g *LocalGuard) TryMarkSent(_ context.Context, jobID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, expires := range g.markers {
		if !now.Before(expires) {
			delete(g.markers, id)
		}
	}
	if _, ok := g.markers[jobID]; ok {
		return false, nil
	}
	g.markers[jobID] = now.Add(g.ttl)
	return true, nil
}
