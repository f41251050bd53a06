package lifecycle

import (
	"context"
	"fmt"
	"slices"

	"github.com/Sternrassler/offline-worker/pkg/partition"
	"github.com/rs/zerolog"
)

// ClientClaimer takes control of all open client pages so a newly
// activated version governs in-flight sessions without a reload.
type ClientClaimer interface {
	ClaimAll(ctx context.Context) error
}

// Sweeper deletes stale cache generations during the activate phase.
// Only the partitions of the current version survive.
type Sweeper struct {
	store   *partition.Store
	tracker *Tracker
	clients ClientClaimer
	version string
	logger  zerolog.Logger
}

// NewSweeper creates a generation sweeper. clients may be nil when no
// client registry is attached (e.g. in library use).
func NewSweeper(store *partition.Store, tracker *Tracker, clients ClientClaimer, version string, logger zerolog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("partition store is required")
	}
	if version == "" {
		return nil, fmt.Errorf("version tag is required")
	}

	return &Sweeper{
		store:   store,
		tracker: tracker,
		clients: clients,
		version: version,
		logger:  logger,
	}, nil
}

// Run registers the sweep on the waiter. Activation is not finished until
// the waiter drains: all stale partitions are deleted, then all open
// clients are claimed. Re-running under the same version deletes nothing.
func (s *Sweeper) Run(ctx context.Context, w *Waiter) {
	w.Add(func() error {
		return s.sweep(ctx)
	})
}

// sweep drops every partition that does not belong to the current version.
func (s *Sweeper) sweep(ctx context.Context) error {
	if s.tracker != nil {
		if err := s.tracker.SetPhase(ctx, PhaseActivating); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record activating phase")
		}
	}

	names, err := s.store.Names(ctx)
	if err != nil {
		activationsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("list partitions: %w", err)
	}

	current := partition.CurrentNames(s.version)

	// All deletions must complete before the activation transition ends,
	// so they run on their own waiter and we join it here.
	drops := NewWaiter()
	swept := 0
	for _, name := range names {
		if slices.Contains(current, name) {
			continue
		}
		swept++
		drops.Add(func() error {
			s.logger.Info().
				Str("partition", name).
				Str("version", s.version).
				Msg("Dropping stale partition")
			return s.store.Drop(ctx, name)
		})
	}

	if err := drops.Wait(); err != nil {
		activationsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("sweep generations: %w", err)
	}
	sweptPartitions.Add(float64(swept))

	// Claim in-flight sessions immediately, no page reload required.
	if s.clients != nil {
		if err := s.clients.ClaimAll(ctx); err != nil {
			activationsTotal.WithLabelValues("failure").Inc()
			return fmt.Errorf("claim clients: %w", err)
		}
	}

	if s.tracker != nil {
		if err := s.tracker.SetActiveVersion(ctx, s.version); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record active version")
		}
	}

	activationsTotal.WithLabelValues("success").Inc()
	s.logger.Info().
		Str("version", s.version).
		Int("swept", swept).
		Msg("Generation sweep complete")

	return nil
}
