package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis keys for worker lifecycle state.
const (
	// RedisKeyActiveVersion holds the version tag that last completed activation.
	RedisKeyActiveVersion = "offline:active_version"

	// RedisKeyPhase holds the current lifecycle phase.
	RedisKeyPhase = "offline:phase"

	// RedisKeyUpdatedAt holds the unix timestamp of the last phase change.
	RedisKeyUpdatedAt = "offline:updated_at"
)

// Phase is a worker lifecycle phase.
type Phase string

const (
	// PhaseInstalling means the precache step is in progress.
	PhaseInstalling Phase = "installing"

	// PhaseInstalled means the precache step completed.
	PhaseInstalled Phase = "installed"

	// PhaseActivating means the generation sweep is in progress.
	PhaseActivating Phase = "activating"

	// PhaseActive means the worker governs routing for all clients.
	PhaseActive Phase = "active"
)

// State is a snapshot of the worker lifecycle.
type State struct {
	ActiveVersion string
	Phase         Phase
	UpdatedAt     time.Time
}

// Tracker persists lifecycle state in Redis so concurrent gateway
// instances observe the same installed generation.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new lifecycle state tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// State retrieves the current lifecycle state from Redis.
// Returns a zero-valued state if nothing has been recorded yet.
func (t *Tracker) State(ctx context.Context) (*State, error) {
	version, err := t.redis.Get(ctx, RedisKeyActiveVersion).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get active version: %w", err)
	}

	phase, err := t.redis.Get(ctx, RedisKeyPhase).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get phase: %w", err)
	}

	updatedAt, err := t.redis.Get(ctx, RedisKeyUpdatedAt).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get updated at: %w", err)
	}

	state := &State{
		ActiveVersion: version,
		Phase:         Phase(phase),
	}
	if updatedAt > 0 {
		state.UpdatedAt = time.Unix(updatedAt, 0)
	}
	return state, nil
}

// SetPhase records a lifecycle phase transition.
func (t *Tracker) SetPhase(ctx context.Context, phase Phase) error {
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyPhase, string(phase), 0)
	pipe.Set(ctx, RedisKeyUpdatedAt, time.Now().Unix(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store lifecycle phase: %w", err)
	}

	t.logger.Debug().
		Str("phase", string(phase)).
		Msg("Lifecycle phase updated")

	return nil
}

// SetActiveVersion records the version tag that now governs routing.
// Called by the sweeper once activation completes.
func (t *Tracker) SetActiveVersion(ctx context.Context, version string) error {
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyActiveVersion, version, 0)
	pipe.Set(ctx, RedisKeyPhase, string(PhaseActive), 0)
	pipe.Set(ctx, RedisKeyUpdatedAt, time.Now().Unix(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store active version: %w", err)
	}

	t.logger.Info().
		Str("version", version).
		Msg("Version activated")

	return nil
}
