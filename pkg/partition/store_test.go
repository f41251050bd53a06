package partition

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// For unit tests, we use a localhost instance and skip when unavailable.
// Integration tests use testcontainers-go with a real Redis container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewStore(client)
	if store == nil {
		t.Fatal("NewStore returned nil")
	}
	if store.redis != client {
		t.Error("Store redis client not set correctly")
	}
}

func TestNewStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil redis client")
		}
	}()
	NewStore(nil)
}

func TestStore_Open_RegistersName(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	p, err := store.Open(ctx, "static-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.Name() != "static-v1" {
		t.Errorf("Name() = %v, want static-v1", p.Name())
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 1 || names[0] != "static-v1" {
		t.Errorf("Names() = %v, want [static-v1]", names)
	}
}

func TestStore_Open_Idempotent(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Open(ctx, "runtime-v1"); err != nil {
			t.Fatalf("Open #%d failed: %v", i, err)
		}
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("Names() = %v, want a single registration", names)
	}
}

func TestStore_Open_EmptyName(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)

	if _, err := store.Open(context.Background(), ""); err == nil {
		t.Error("Open with empty name should return error")
	}
}

func TestStore_Names_Sorted(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	for _, name := range []string{"runtime-v1", "static-v1", "runtime-v2"} {
		if _, err := store.Open(ctx, name); err != nil {
			t.Fatalf("Open %s failed: %v", name, err)
		}
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}

	want := []string{"runtime-v1", "runtime-v2", "static-v1"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestPartition_PutAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	p, err := store.Open(ctx, "static-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	key := Key{Method: "GET", URL: "/index.html"}
	entry := &Entry{
		Data:       []byte("<html>shell</html>"),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		StoredAt:   time.Now(),
	}

	if err := p.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrieved, err := p.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode mismatch: got %d, want %d", retrieved.StatusCode, entry.StatusCode)
	}
	if retrieved.Headers.Get("Content-Type") != "text/html" {
		t.Error("Content-Type header not preserved")
	}
}

func TestPartition_Get_Miss(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	p, err := store.Open(ctx, "runtime-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	_, err = p.Get(ctx, Key{Method: "GET", URL: "/nonexistent"})
	if err != ErrEntryMiss {
		t.Errorf("Expected ErrEntryMiss, got %v", err)
	}
}

func TestPartition_Put_Overwrite(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	p, err := store.Open(ctx, "runtime-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	key := Key{Method: "GET", URL: "/api/items"}

	first := &Entry{Data: []byte("old"), StatusCode: 200, Headers: http.Header{}}
	second := &Entry{Data: []byte("new"), StatusCode: 200, Headers: http.Header{}}

	if err := p.Put(ctx, key, first); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := p.Put(ctx, key, second); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	retrieved, err := p.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(retrieved.Data) != "new" {
		t.Errorf("Data = %s, want last write to win", retrieved.Data)
	}
}

func TestPartition_Put_NilEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	p, err := store.Open(ctx, "runtime-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := p.Put(ctx, Key{Method: "GET", URL: "/x"}, nil); err == nil {
		t.Error("Put with nil entry should return error")
	}
}

func TestStore_Drop(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	p, err := store.Open(ctx, "static-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	entry := &Entry{Data: []byte("x"), StatusCode: 200, Headers: http.Header{}}
	for _, path := range []string{"/", "/app.css", "/app.js"} {
		if err := p.Put(ctx, Key{Method: "GET", URL: path}, entry); err != nil {
			t.Fatalf("Put %s failed: %v", path, err)
		}
	}

	if err := store.Drop(ctx, "static-v1"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	// Entries are gone
	count, err := p.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Len = %d after Drop, want 0", count)
	}

	// Name is unregistered
	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Names() = %v after Drop, want empty", names)
	}
}

func TestStore_Drop_Unknown(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)

	if err := store.Drop(context.Background(), "static-v99"); err != nil {
		t.Errorf("Drop of unknown partition should be a no-op, got %v", err)
	}
}

func TestStore_Drop_LeavesOtherPartitions(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	v1, err := store.Open(ctx, "static-v1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	v2, err := store.Open(ctx, "static-v2")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	entry := &Entry{Data: []byte("x"), StatusCode: 200, Headers: http.Header{}}
	key := Key{Method: "GET", URL: "/index.html"}
	if err := v1.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put v1 failed: %v", err)
	}
	if err := v2.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put v2 failed: %v", err)
	}

	if err := store.Drop(ctx, "static-v1"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	if _, err := v2.Get(ctx, key); err != nil {
		t.Errorf("static-v2 entry lost after dropping static-v1: %v", err)
	}
}
