package partition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrEntryMiss indicates the requested key was not found in the partition
	ErrEntryMiss = errors.New("partition entry miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid partition entry")
)

// registryKey is the Redis set holding every partition name ever opened.
// The sweeper enumerates this set to find stale generations.
const registryKey = "offline:partitions"

// Store coordinates cache partitions on a Redis backend. It owns the
// partition name registry; partitions are created on first Open and
// destroyed in bulk via Drop.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new partition store with a Redis backend.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis: redisClient,
	}
}

// Open returns the named partition, creating it if needed. Opening is
// idempotent: the name is registered once and repeated opens are cheap.
func (s *Store) Open(ctx context.Context, name string) (*Partition, error) {
	if name == "" {
		return nil, fmt.Errorf("partition name cannot be empty")
	}

	if err := s.redis.SAdd(ctx, registryKey, name).Err(); err != nil {
		storeErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("register partition %q: %w", name, err)
	}

	return &Partition{
		redis: s.redis,
		name:  name,
		role:  roleOf(name),
	}, nil
}

// Names returns every registered partition name, sorted.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, registryKey).Result()
	if err != nil {
		storeErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Drop deletes every entry of the named partition and removes it from the
// registry. Dropping an unknown partition is a no-op.
func (s *Store) Drop(ctx context.Context, name string) error {
	iter := s.redis.Scan(ctx, 0, name+":*", 100).Iterator()

	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.redis.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("delete partition keys: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				storeErrors.WithLabelValues("drop").Inc()
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		storeErrors.WithLabelValues("drop").Inc()
		return fmt.Errorf("scan partition %q: %w", name, err)
	}
	if err := flush(); err != nil {
		storeErrors.WithLabelValues("drop").Inc()
		return err
	}

	if err := s.redis.SRem(ctx, registryKey, name).Err(); err != nil {
		storeErrors.WithLabelValues("drop").Inc()
		return fmt.Errorf("unregister partition %q: %w", name, err)
	}

	partitionsDropped.Inc()
	return nil
}

// Partition is a named key/response store. Writes are last-writer-wins
// per key; entries never expire on their own.
type Partition struct {
	redis *redis.Client
	name  string
	role  string
}

// Name returns the partition name.
func (p *Partition) Name() string {
	return p.name
}

// Get retrieves a stored entry by key.
// Returns ErrEntryMiss if the key does not exist.
func (p *Partition) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := p.redis.Get(ctx, p.entryKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.WithLabelValues(p.role).Inc()
			return nil, ErrEntryMiss
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	cacheHits.WithLabelValues(p.role).Inc()
	entryBytes.WithLabelValues(p.role).Add(float64(len(data)))

	return &entry, nil
}

// Put stores an entry under a key, overwriting any previous value.
func (p *Partition) Put(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("partition entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal partition entry: %w", err)
	}

	if err := p.redis.Set(ctx, p.entryKey(key), data, 0).Err(); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	entryBytes.WithLabelValues(p.role).Add(float64(len(data)))
	return nil
}

// Len counts the entries currently stored in the partition.
func (p *Partition) Len(ctx context.Context) (int64, error) {
	var count int64
	iter := p.redis.Scan(ctx, 0, p.name+":*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan partition %q: %w", p.name, err)
	}
	return count, nil
}

// entryKey prefixes a cache key with the partition name.
func (p *Partition) entryKey(key Key) string {
	return p.name + ":" + key.String()
}
