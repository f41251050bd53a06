// Package worker wires the offline cache pipeline together: it intercepts
// HTTP traffic, classifies each request, and serves it through the
// matching retrieval strategy against the current cache generation.
package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/Sternrassler/offline-worker/pkg/classify"
	"github.com/Sternrassler/offline-worker/pkg/lifecycle"
	"github.com/Sternrassler/offline-worker/pkg/partition"
	"github.com/Sternrassler/offline-worker/pkg/strategy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for intercepted traffic.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_requests_total",
		Help: "Total intercepted requests by class and status",
	}, []string{"class", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_request_duration_seconds",
		Help:    "Intercepted request duration in seconds by class",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"class"})
)

// Config holds the worker configuration.
type Config struct {
	// Redis client backing partitions and lifecycle state
	Redis *redis.Client

	// Version is the deployment generation (build-time constant).
	// Changing it on redeploy is the sole cache invalidation trigger.
	Version string

	// Origin is the app's own origin
	Origin *url.URL

	// Manifest is the precache manifest
	Manifest []string

	// StaticPrefix is the static-asset path prefix (e.g. "/assets/")
	StaticPrefix string

	// OfflinePath is the offline fallback page; must appear in Manifest
	OfflinePath string

	// HTTPClient performs origin fetches (default http.DefaultClient)
	HTTPClient *http.Client

	// Clients is claimed on activation; may be nil
	Clients lifecycle.ClientClaimer
}

// DefaultConfig returns a configuration with the conventional manifest
// layout: root document, offline page, and the asset prefix.
func DefaultConfig(redisClient *redis.Client, version string, origin *url.URL) Config {
	return Config{
		Redis:        redisClient,
		Version:      version,
		Origin:       origin,
		StaticPrefix: "/assets/",
		OfflinePath:  "/offline.html",
		Manifest: []string{
			"/",
			"/index.html",
			"/offline.html",
			"/favicon.ico",
		},
	}
}

// Worker is the offline caching worker: one instance per gateway process.
type Worker struct {
	config     Config
	store      *partition.Store
	classifier *classify.Classifier
	executor   *strategy.Executor
	installer  *lifecycle.Installer
	sweeper    *lifecycle.Sweeper
	tracker    *lifecycle.Tracker
	httpClient *http.Client
	logger     zerolog.Logger

	// background collects stale-while-revalidate refreshes across all
	// fetch events so shutdown and tests can join them.
	background *lifecycle.Waiter
}

// New creates a worker for a version tag and origin.
func New(cfg Config) (*Worker, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
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
	if cfg.OfflinePath == "" {
		return nil, fmt.Errorf("offline fallback path is required")
	}
	if !slices.Contains(cfg.Manifest, cfg.OfflinePath) {
		return nil, fmt.Errorf("offline fallback %q must be part of the precache manifest", cfg.OfflinePath)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	logger := log.With().Str("component", "worker").Str("version", cfg.Version).Logger()

	store := partition.NewStore(cfg.Redis)
	tracker := lifecycle.NewTracker(cfg.Redis, logger)

	ctx := context.Background()
	static, err := store.Open(ctx, partition.Name(partition.RoleStatic, cfg.Version))
	if err != nil {
		return nil, fmt.Errorf("open static partition: %w", err)
	}
	runtime, err := store.Open(ctx, partition.Name(partition.RoleRuntime, cfg.Version))
	if err != nil {
		return nil, fmt.Errorf("open runtime partition: %w", err)
	}

	executor, err := strategy.NewExecutor(strategy.Config{
		Static:      static,
		Runtime:     runtime,
		Origin:      cfg.Origin,
		OfflinePath: cfg.OfflinePath,
		HTTPClient:  cfg.HTTPClient,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create strategy executor: %w", err)
	}

	installer, err := lifecycle.NewInstaller(store, tracker, lifecycle.InstallerConfig{
		Version:    cfg.Version,
		Origin:     cfg.Origin,
		Manifest:   cfg.Manifest,
		HTTPClient: cfg.HTTPClient,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create installer: %w", err)
	}

	sweeper, err := lifecycle.NewSweeper(store, tracker, cfg.Clients, cfg.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("create sweeper: %w", err)
	}

	return &Worker{
		config:     cfg,
		store:      store,
		classifier: classify.New(cfg.Origin, cfg.StaticPrefix, cfg.Manifest),
		executor:   executor,
		installer:  installer,
		sweeper:    sweeper,
		tracker:    tracker,
		httpClient: cfg.HTTPClient,
		logger:     logger,
		background: lifecycle.NewWaiter(),
	}, nil
}

// Install runs the precache step and blocks until it completes. The
// install phase is not finished until every manifest entry is stored;
// any failure fails the whole step.
func (w *Worker) Install(ctx context.Context) error {
	waiter := lifecycle.NewWaiter()
	w.installer.Run(ctx, waiter)
	return waiter.Wait()
}

// Activate sweeps stale generations and claims open clients, blocking
// until both complete.
func (w *Worker) Activate(ctx context.Context) error {
	waiter := lifecycle.NewWaiter()
	w.sweeper.Run(ctx, waiter)
	return waiter.Wait()
}

// Start installs and, on success, immediately activates. Activation is
// not deferred until old clients close: a freshly installed version takes
// over right away.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	if err := w.Activate(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// Drain joins all in-flight background revalidations.
func (w *Worker) Drain() error {
	return w.background.Wait()
}

// Tracker exposes the lifecycle state tracker (for health endpoints).
func (w *Worker) Tracker() *lifecycle.Tracker {
	return w.tracker
}

// ServeHTTP intercepts a request, classifies it, and serves it through
// the matching strategy. Exactly one response is written per request.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	class := w.classifier.Classify(req)
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	}()

	ctx := req.Context()

	var resp *http.Response
	var err error

	switch class {
	case classify.ClassBypass:
		// Mutation traffic passes straight through; no partition is
		// read or written.
		resp, err = w.passthrough(ctx, req)
	case classify.ClassStatic:
		resp, err = w.executor.CacheFirst(ctx, req)
	case classify.ClassNavigation:
		resp, err = w.executor.NetworkFirst(ctx, req)
	case classify.ClassDynamic:
		resp, err = w.executor.StaleWhileRevalidate(ctx, req, w.background)
	}

	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("class", string(class)).
			Str("url", req.URL.String()).
			Msg("Request failed with no response")
		requestsTotal.WithLabelValues(string(class), "error").Inc()
		http.Error(rw, "upstream unreachable", http.StatusBadGateway)
		return
	}

	requestsTotal.WithLabelValues(string(class), fmt.Sprintf("%d", resp.StatusCode)).Inc()
	writeResponse(rw, resp)
}

// passthrough forwards a request to the origin unchanged, including
// method and body. Used for all non-GET traffic.
func (w *Worker) passthrough(ctx context.Context, req *http.Request) (*http.Response, error) {
	outURL := *req.URL
	outURL.Scheme = w.config.Origin.Scheme
	outURL.Host = w.config.Origin.Host

	out, err := http.NewRequestWithContext(ctx, req.Method, outURL.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("create passthrough request: %w", err)
	}
	out.Header = req.Header.Clone()
	out.ContentLength = req.ContentLength

	resp, err := w.httpClient.Do(out)
	if err != nil {
		return nil, fmt.Errorf("passthrough fetch: %w", err)
	}
	return resp, nil
}

// writeResponse copies a strategy response to the HTTP client.
func writeResponse(rw http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			rw.Header().Add(key, value)
		}
	}
	rw.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(rw, resp.Body); err != nil {
		// The client went away; nothing to recover
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}
