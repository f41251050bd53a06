// Package strategy implements the three retrieval strategies of the
// offline worker: cache-first for static assets, network-first with
// offline fallback for navigations, and stale-while-revalidate for
// dynamic traffic.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/offline-worker/pkg/lifecycle"
	"github.com/Sternrassler/offline-worker/pkg/partition"
	"github.com/rs/zerolog"
)

// ErrNoFallback is returned when a navigation fails and neither the
// runtime partition nor the precached offline page can serve it. This is
// only reachable when install never completed.
var ErrNoFallback = errors.New("no offline fallback available")

// Config holds the executor configuration.
type Config struct {
	// Static is the current static partition (precached app shell).
	Static *partition.Partition

	// Runtime is the current runtime partition (grows via traffic).
	Runtime *partition.Partition

	// Origin is the app's own origin live fetches are sent to.
	Origin *url.URL

	// OfflinePath is the precached page served when a navigation has no
	// other fallback. It must be part of the precache manifest.
	OfflinePath string

	// HTTPClient performs live fetches (default http.DefaultClient).
	// No artificial timeout is applied; a hung fetch stalls its strategy.
	HTTPClient *http.Client
}

// Executor runs retrieval strategies against the current cache generation.
type Executor struct {
	static      *partition.Partition
	runtime     *partition.Partition
	origin      *url.URL
	offlinePath string
	client      *http.Client
	logger      zerolog.Logger
}

// NewExecutor creates a strategy executor.
func NewExecutor(cfg Config, logger zerolog.Logger) (*Executor, error) {
	if cfg.Static == nil || cfg.Runtime == nil {
		return nil, fmt.Errorf("static and runtime partitions are required")
	}
	if cfg.Origin == nil {
		return nil, fmt.Errorf("origin is required")
	}
	if cfg.OfflinePath == "" {
		return nil, fmt.Errorf("offline fallback path is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Executor{
		static:      cfg.Static,
		runtime:     cfg.Runtime,
		origin:      cfg.Origin,
		offlinePath: cfg.OfflinePath,
		client:      cfg.HTTPClient,
		logger:      logger,
	}, nil
}

// CacheFirst serves static assets: on hit the precached copy is returned
// without any network call. On miss it falls through to a live fetch whose
// result is NOT stored; a precache miss indicates a deployment
// inconsistency and is not self-healed. Fetch failures propagate as-is.
func (e *Executor) CacheFirst(ctx context.Context, req *http.Request) (*http.Response, error) {
	key := partition.KeyForRequest(req)

	entry, err := e.static.Get(ctx, key)
	if err == nil {
		executionsTotal.WithLabelValues("cache_first", "hit").Inc()
		e.logger.Debug().
			Str("url", key.URL).
			Bool("cache_hit", true).
			Msg("Static asset served from precache")
		return entry.Response(), nil
	}
	if err != partition.ErrEntryMiss {
		e.logger.Warn().Err(err).Str("url", key.URL).Msg("Static partition read error")
	}

	executionsTotal.WithLabelValues("cache_first", "miss").Inc()
	e.logger.Warn().
		Str("url", key.URL).
		Msg("Precache miss, falling through to network")

	return e.fetch(ctx, req)
}

// NetworkFirst serves navigations: a live fetch is attempted first and its
// snapshot stored in the runtime partition. On transport failure the chain
// falls back to the runtime partition, then to the precached offline page.
// HTTP error statuses count as success; only transport errors trigger the
// fallback chain.
func (e *Executor) NetworkFirst(ctx context.Context, req *http.Request) (*http.Response, error) {
	key := partition.KeyForRequest(req)

	resp, fetchErr := e.fetch(ctx, req)
	if fetchErr == nil {
		executionsTotal.WithLabelValues("network_first", "network").Inc()

		// Snapshot before the caller consumes the body; stream and store
		// must not share a reader.
		entry, err := partition.SnapshotResponse(resp)
		if err != nil {
			e.logger.Warn().Err(err).Str("url", key.URL).Msg("Failed to snapshot navigation response")
			return resp, nil
		}
		if err := e.runtime.Put(ctx, key, entry); err != nil {
			e.logger.Warn().Err(err).Str("url", key.URL).Msg("Failed to store navigation response")
		}
		return resp, nil
	}

	e.logger.Warn().
		Err(fetchErr).
		Str("url", key.URL).
		Msg("Navigation fetch failed, trying fallback chain")

	if entry, err := e.runtime.Get(ctx, key); err == nil {
		executionsTotal.WithLabelValues("network_first", "fallback_runtime").Inc()
		fallbacksTotal.WithLabelValues("runtime").Inc()
		return entry.Response(), nil
	}

	offlineKey := partition.Key{Method: http.MethodGet, URL: e.offlinePath}
	if entry, err := e.static.Get(ctx, offlineKey); err == nil {
		executionsTotal.WithLabelValues("network_first", "fallback_offline").Inc()
		fallbacksTotal.WithLabelValues("offline").Inc()
		return entry.Response(), nil
	}

	executionsTotal.WithLabelValues("network_first", "error").Inc()
	return nil, fmt.Errorf("%w: %v", ErrNoFallback, fetchErr)
}

// StaleWhileRevalidate serves dynamic traffic: a cached copy is returned
// immediately while a background fetch refreshes the runtime partition.
// Freshness is eventual, not read-your-writes. On a cold cache the caller
// waits for the network fetch and receives its result or error; there is
// no further fallback. Background revalidation errors never surface.
func (e *Executor) StaleWhileRevalidate(ctx context.Context, req *http.Request, w *lifecycle.Waiter) (*http.Response, error) {
	key := partition.KeyForRequest(req)

	entry, err := e.runtime.Get(ctx, key)
	if err == nil {
		executionsTotal.WithLabelValues("swr", "hit").Inc()

		// The caller may abandon the response long before the refresh
		// lands, so the revalidation must not inherit cancellation.
		bgCtx := context.WithoutCancel(ctx)
		bgReq := req.Clone(bgCtx)
		w.Add(func() error {
			e.revalidate(bgCtx, bgReq, key)
			return nil
		})

		return entry.Response(), nil
	}
	if err != partition.ErrEntryMiss {
		e.logger.Warn().Err(err).Str("url", key.URL).Msg("Runtime partition read error")
	}

	resp, fetchErr := e.fetch(ctx, req)
	if fetchErr != nil {
		executionsTotal.WithLabelValues("swr", "error").Inc()
		return nil, fetchErr
	}
	executionsTotal.WithLabelValues("swr", "network").Inc()

	snapshot, err := partition.SnapshotResponse(resp)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", key.URL).Msg("Failed to snapshot dynamic response")
		return resp, nil
	}
	if err := e.runtime.Put(ctx, key, snapshot); err != nil {
		e.logger.Warn().Err(err).Str("url", key.URL).Msg("Failed to store dynamic response")
	}

	return resp, nil
}

// revalidate refreshes a runtime entry in the background. Every error is
// swallowed: the caller may already hold a stale response.
func (e *Executor) revalidate(ctx context.Context, req *http.Request, key partition.Key) {
	resp, err := e.fetch(ctx, req)
	if err != nil {
		revalidationsTotal.WithLabelValues("fetch_error").Inc()
		e.logger.Debug().Err(err).Str("url", key.URL).Msg("Background revalidation fetch failed")
		return
	}
	defer resp.Body.Close()

	entry, err := partition.SnapshotResponse(resp)
	if err != nil {
		revalidationsTotal.WithLabelValues("snapshot_error").Inc()
		e.logger.Debug().Err(err).Str("url", key.URL).Msg("Background revalidation snapshot failed")
		return
	}

	if err := e.runtime.Put(ctx, key, entry); err != nil {
		revalidationsTotal.WithLabelValues("store_error").Inc()
		e.logger.Debug().Err(err).Str("url", key.URL).Msg("Background revalidation store failed")
		return
	}

	revalidationsTotal.WithLabelValues("success").Inc()
	e.logger.Debug().Str("url", key.URL).Msg("Runtime entry revalidated")
}

// fetch performs a live network fetch against the origin, preserving the
// intercepted request's path, query, and headers.
func (e *Executor) fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	outURL := *req.URL
	outURL.Scheme = e.origin.Scheme
	outURL.Host = e.origin.Host

	out, err := http.NewRequestWithContext(ctx, req.Method, outURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create origin request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			out.Header.Add(k, v)
		}
	}

	resp, err := e.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("origin fetch: %w", err)
	}
	return resp, nil
}
