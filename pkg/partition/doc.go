// Package partition provides versioned cache partitions with a Redis backend.
//
// A partition is a named key/response store. Two logical partitions exist
// per deployment version: a static partition holding the precached app
// shell and a runtime partition that grows via network traffic. Partition
// names follow the "{role}-{version}" scheme, so two deployments never
// share a partition and stale generations can be dropped in bulk.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create the partition store
//	store := partition.NewStore(redisClient)
//
//	// Open (or create) the current static partition
//	static, err := store.Open(ctx, partition.Name(partition.RoleStatic, "v1"))
//	if err != nil {
//		return err
//	}
//
//	// Store a response snapshot
//	entry, err := partition.SnapshotResponse(resp)
//	if err != nil {
//		return err
//	}
//	if err := static.Put(ctx, partition.Key{Method: "GET", URL: "/app.css"}, entry); err != nil {
//		return err
//	}
//
//	// Read it back
//	entry, err = static.Get(ctx, partition.Key{Method: "GET", URL: "/app.css"})
//	if err == partition.ErrEntryMiss {
//		// not cached
//	}
//
// # Generation Lifecycle
//
// The store keeps a registry of every partition name it has opened. On
// activation of a new version, the sweeper enumerates the registry via
// Names and deletes every partition whose name does not match the current
// generation via Drop. Entries themselves carry no TTL: swapping the
// version tag is the only invalidation mechanism.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - offline_cache_hits_total{role} - Cache hits by partition role
//   - offline_cache_misses_total{role} - Cache misses by partition role
//   - offline_cache_entry_bytes{role} - Bytes read/written per role
//   - offline_cache_errors_total{operation} - Store operation errors
package partition
