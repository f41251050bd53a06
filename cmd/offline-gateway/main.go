package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/offline-worker/pkg/lifecycle"
	"github.com/Sternrassler/offline-worker/pkg/logging"
	"github.com/Sternrassler/offline-worker/pkg/notify"
	"github.com/Sternrassler/offline-worker/pkg/worker"
	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type config struct {
	RedisURL     string   `env:"REDIS_URL" envDefault:"localhost:6379"`
	Port         string   `env:"PORT" envDefault:"8080"`
	Version      string   `env:"VERSION,required"`
	OriginURL    string   `env:"ORIGIN_URL,required"`
	StaticPrefix string   `env:"STATIC_PREFIX" envDefault:"/assets/"`
	OfflinePath  string   `env:"OFFLINE_PATH" envDefault:"/offline.html"`
	Manifest     []string `env:"PRECACHE_MANIFEST" envSeparator:","`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool     `env:"LOG_PRETTY" envDefault:"false"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	origin, err := url.Parse(cfg.OriginURL)
	if err != nil || origin.Host == "" {
		logger.Fatal().Err(err).Str("origin_url", cfg.OriginURL).Msg("Invalid origin URL")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")

	// Notification pipeline: pushes arrive over Redis pub/sub and are
	// rendered to the log when the gateway runs headless.
	registry := notify.NewMemoryRegistry(logging.NewLogger("clients"))
	responder, err := notify.NewResponder(notify.NewLogDisplayer(logging.NewLogger("notify")), registry, logging.NewLogger("notify"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create push responder")
	}
	subscriber, err := notify.NewSubscriber(redisClient, responder, logging.NewLogger("notify"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create push subscriber")
	}
	go func() {
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Push subscriber stopped")
		}
	}()

	workerCfg := worker.DefaultConfig(redisClient, cfg.Version, origin)
	workerCfg.StaticPrefix = cfg.StaticPrefix
	workerCfg.OfflinePath = cfg.OfflinePath
	workerCfg.Clients = registry
	if len(cfg.Manifest) > 0 {
		workerCfg.Manifest = cfg.Manifest
	}

	w, err := worker.New(workerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create worker")
	}

	// Install the new generation, then take over routing immediately.
	if err := w.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str("version", cfg.Version).Msg("Worker failed to start")
	}
	logger.Info().Str("version", cfg.Version).Str("origin", origin.String()).Msg("Worker active")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", readyHandler(redisClient, w))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", w)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting offline gateway")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	shutdown(server, w, logger)
}

// shutdown stops the HTTP server, then joins the background
// revalidations still in flight.
func shutdown(server *http.Server, w *worker.Worker, logger zerolog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := w.Drain(); err != nil {
		logger.Warn().Err(err).Msg("Background revalidations failed during drain")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready once Redis answers and the worker has
// completed activation for some version.
func readyHandler(redisClient *redis.Client, w *worker.Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(rw, "redis unavailable", http.StatusServiceUnavailable)
			return
		}

		state, err := w.Tracker().State(r.Context())
		if err != nil {
			http.Error(rw, "lifecycle state unavailable", http.StatusServiceUnavailable)
			return
		}
		if state.Phase != lifecycle.PhaseActive {
			http.Error(rw, "worker not active: "+strings.TrimSpace(string(state.Phase)), http.StatusServiceUnavailable)
			return
		}

		rw.WriteHeader(http.StatusOK)
		fmt.Fprintf(rw, "OK")
	}
}
