package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/offline-worker/pkg/partition"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultPrecacheConcurrency bounds parallel manifest fetches during install.
const DefaultPrecacheConcurrency = 4

// InstallerConfig holds the precache installer configuration.
type InstallerConfig struct {
	// Version is the deployment generation being installed.
	Version string

	// Origin is the app's own origin all manifest paths are fetched from.
	Origin *url.URL

	// Manifest is the ordered list of paths the static partition must
	// contain after install.
	Manifest []string

	// HTTPClient performs the manifest fetches (default http.DefaultClient).
	HTTPClient *http.Client

	// Concurrency bounds parallel fetches (default DefaultPrecacheConcurrency).
	Concurrency int
}

// Installer populates the static partition during the install phase.
// It runs exactly once per worker lifecycle.
type Installer struct {
	store   *partition.Store
	tracker *Tracker
	config  InstallerConfig
	logger  zerolog.Logger
}

// NewInstaller creates a precache installer.
func NewInstaller(store *partition.Store, tracker *Tracker, cfg InstallerConfig, logger zerolog.Logger) (*Installer, error) {
	if store == nil {
		return nil, fmt.Errorf("partition store is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("version tag is required")
	}
	if cfg.Origin == nil {
		return nil, fmt.Errorf("origin is required")
	}
	if len(cfg.Manifest) == 0 {
		return nil, fmt.Errorf("precache manifest cannot be empty")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultPrecacheConcurrency
	}

	return &Installer{
		store:   store,
		tracker: tracker,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Run registers the precache step on the waiter. The install phase is not
// finished until the waiter drains; any failed manifest fetch fails the
// whole step. A partial precache is never treated as success because a
// missing shell asset makes offline mode unusable.
func (i *Installer) Run(ctx context.Context, w *Waiter) {
	w.Add(func() error {
		return i.precache(ctx)
	})
}

// precache opens the static partition and stores every manifest entry.
func (i *Installer) precache(ctx context.Context) error {
	start := time.Now()

	if i.tracker != nil {
		if err := i.tracker.SetPhase(ctx, PhaseInstalling); err != nil {
			i.logger.Warn().Err(err).Msg("Failed to record installing phase")
		}
	}

	static, err := i.store.Open(ctx, partition.Name(partition.RoleStatic, i.config.Version))
	if err != nil {
		installsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("open static partition: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.config.Concurrency)

	for _, path := range i.config.Manifest {
		g.Go(func() error {
			return i.precacheOne(gctx, static, path)
		})
	}

	if err := g.Wait(); err != nil {
		installsTotal.WithLabelValues("failure").Inc()
		i.logger.Error().
			Err(err).
			Str("version", i.config.Version).
			Msg("Precache install failed")
		return fmt.Errorf("precache install: %w", err)
	}

	if i.tracker != nil {
		if err := i.tracker.SetPhase(ctx, PhaseInstalled); err != nil {
			i.logger.Warn().Err(err).Msg("Failed to record installed phase")
		}
	}

	installsTotal.WithLabelValues("success").Inc()
	precacheDuration.Observe(time.Since(start).Seconds())

	i.logger.Info().
		Str("version", i.config.Version).
		Int("entries", len(i.config.Manifest)).
		Dur("duration", time.Since(start)).
		Msg("Precache install complete")

	return nil
}

// precacheOne fetches a single manifest path and stores the snapshot.
func (i *Installer) precacheOne(ctx context.Context, static *partition.Partition, path string) error {
	fetchURL := i.config.Origin.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create precache request for %s: %w", path, err)
	}

	resp, err := i.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("precache fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("precache fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	entry, err := partition.SnapshotResponse(resp)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}

	if err := static.Put(ctx, partition.Key{Method: http.MethodGet, URL: path}, entry); err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}

	precacheEntries.Inc()
	i.logger.Debug().
		Str("path", path).
		Int("bytes", len(entry.Data)).
		Msg("Precached manifest entry")

	return nil
}
