package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/offline-worker/internal/testutil"
	"github.com/Sternrassler/offline-worker/pkg/lifecycle"
	"github.com/Sternrassler/offline-worker/pkg/notify"
	"github.com/Sternrassler/offline-worker/pkg/partition"
	"github.com/Sternrassler/offline-worker/pkg/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newOrigin builds a mock origin serving the default precache manifest.
func newOrigin(t *testing.T) *testutil.MockOrigin {
	t.Helper()

	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	origin.SetPage("/", "<html>root</html>")
	origin.SetPage("/index.html", "<html>index</html>")
	origin.SetPage("/offline.html", "<html>offline</html>")
	origin.SetResponse("/favicon.ico", testutil.MockResponse{StatusCode: 200, Body: "icon"})
	return origin
}

func newWorker(t *testing.T, redisClient *redis.Client, origin *testutil.MockOrigin, version string) *worker.Worker {
	t.Helper()

	originURL, err := url.Parse(origin.URL())
	if err != nil {
		t.Fatalf("parse origin url: %v", err)
	}

	w, err := worker.New(worker.DefaultConfig(redisClient, version, originURL))
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}
	return w
}

func get(t *testing.T, w *worker.Worker, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	w.ServeHTTP(rec, req)
	return rec
}

// TestFullLifecycleFlow tests the complete flow: Install → Activate → Serve.
func TestFullLifecycleFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := newOrigin(t)
	w := newWorker(t, redisClient, origin, "v1")

	ctx := context.Background()

	t.Log("Install: precache the manifest")
	if err := w.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	state, err := w.Tracker().State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Phase != lifecycle.PhaseInstalled {
		t.Errorf("Phase after install = %s, want installed", state.Phase)
	}
	if state.ActiveVersion != "" {
		t.Errorf("ActiveVersion after install = %q, want empty until activation", state.ActiveVersion)
	}

	t.Log("Activate: sweep and take over")
	if err := w.Activate(ctx); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	state, err = w.Tracker().State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Phase != lifecycle.PhaseActive {
		t.Errorf("Phase after activate = %s, want active", state.Phase)
	}
	if state.ActiveVersion != "v1" {
		t.Errorf("ActiveVersion = %q, want v1", state.ActiveVersion)
	}

	t.Log("Serve: static from precache, no origin traffic")
	origin.Reset()
	rec := get(t, w, "/index.html", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Static status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "<html>index</html>" {
		t.Errorf("Static body = %q, want precached copy", rec.Body.String())
	}
	if origin.RequestCount() != 0 {
		t.Errorf("Origin requests = %d, want 0 for precached asset", origin.RequestCount())
	}
}

// TestUpgradeFlow tests that a new version replaces the old generation.
func TestUpgradeFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := newOrigin(t)
	ctx := context.Background()

	w1 := newWorker(t, redisClient, origin, "v1")
	if err := w1.Start(ctx); err != nil {
		t.Fatalf("v1 start failed: %v", err)
	}

	// Deploy a new build with changed content
	origin.SetPage("/index.html", "<html>index v2</html>")

	w2 := newWorker(t, redisClient, origin, "v2")
	if err := w2.Start(ctx); err != nil {
		t.Fatalf("v2 start failed: %v", err)
	}

	store := partition.NewStore(redisClient)
	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	want := []string{"runtime-v2", "static-v2"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("Partitions after upgrade = %v, want %v", names, want)
	}

	state, err := w2.Tracker().State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.ActiveVersion != "v2" {
		t.Errorf("ActiveVersion = %q, want v2", state.ActiveVersion)
	}

	// The new worker serves the new build from its own partition
	origin.Reset()
	rec := get(t, w2, "/index.html", nil)
	if rec.Body.String() != "<html>index v2</html>" {
		t.Errorf("Upgraded body = %q, want v2 content", rec.Body.String())
	}
}

// TestOfflineBrowsing tests serving with the origin fully unreachable.
func TestOfflineBrowsing(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := newOrigin(t)
	origin.SetPage("/api/items", `["cached"]`)

	w := newWorker(t, redisClient, origin, "v1")
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Warm the runtime partition with one dynamic fetch
	rec := get(t, w, "/api/items", nil)
	if rec.Body.String() != `["cached"]` {
		t.Fatalf("Warm-up body = %q, want network response", rec.Body.String())
	}

	// Origin goes away entirely
	origin.Close()

	t.Log("Static assets still come from the precache")
	rec = get(t, w, "/index.html", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>index</html>" {
		t.Errorf("Static offline = %d %q, want precached copy", rec.Code, rec.Body.String())
	}

	t.Log("Navigations fall back to the offline page")
	rec = get(t, w, "/articles/42", map[string]string{"Sec-Fetch-Mode": "navigate"})
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>offline</html>" {
		t.Errorf("Navigation offline = %d %q, want offline page", rec.Code, rec.Body.String())
	}

	t.Log("Warm dynamic routes serve the stale copy")
	rec = get(t, w, "/api/items", nil)
	if rec.Body.String() != `["cached"]` {
		t.Errorf("Dynamic offline = %q, want stale copy", rec.Body.String())
	}

	// Revalidations against the dead origin fail silently
	if err := w.Drain(); err != nil {
		t.Errorf("Drain = %v, revalidation failures must not surface", err)
	}
}

// TestFailedInstallKeepsOldGeneration tests that a broken build never
// replaces a working one.
func TestFailedInstallKeepsOldGeneration(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := newOrigin(t)
	ctx := context.Background()

	w1 := newWorker(t, redisClient, origin, "v1")
	if err := w1.Start(ctx); err != nil {
		t.Fatalf("v1 start failed: %v", err)
	}

	// v2's build is broken: one manifest entry 404s
	origin.SetResponse("/favicon.ico", testutil.MockResponse{StatusCode: 404, Body: "gone"})

	w2 := newWorker(t, redisClient, origin, "v2")
	if err := w2.Start(ctx); err == nil {
		t.Fatal("v2 start should fail when a manifest entry cannot be fetched")
	}

	state, err := w1.Tracker().State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.ActiveVersion != "v1" {
		t.Errorf("ActiveVersion = %q, want v1 still active", state.ActiveVersion)
	}

	// v1's partitions survive untouched
	store := partition.NewStore(redisClient)
	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	found := false
	for _, name := range names {
		if name == "static-v1" {
			found = true
		}
	}
	if !found {
		t.Errorf("Partitions = %v, want static-v1 preserved after failed install", names)
	}
}

// TestPushDelivery tests the push pipeline over Redis pub/sub.
func TestPushDelivery(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	registry := notify.NewMemoryRegistry(zerolog.Nop())
	displayer := notify.NewLogDisplayer(zerolog.Nop())
	responder, err := notify.NewResponder(displayer, registry, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResponder failed: %v", err)
	}
	subscriber, err := notify.NewSubscriber(redisClient, responder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSubscriber failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- subscriber.Run(ctx)
	}()

	// Wait for the subscription, then publish until a receiver is counted
	deadline := time.After(5 * time.Second)
	for {
		n, err := redisClient.Publish(ctx, notify.PushChannel, `{"title":"Deployed"}`).Result()
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("subscriber never subscribed to the push channel")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("subscriber did not stop on context cancellation")
	}
}
