// Package retrievercache adds per-kind caching to a retriever.EntityRetriever.
//
// # Overview
//
// Retriever wraps a base retriever and keeps one cache partition per entity
// kind. Each partition is a cache.CacheService with its own capacity and TTL,
// either in memory (sturdyc) or in Redis.
//
// # Basic Usage
//
//	store, _ := retriever.New(factory)
//	services, _ := retrievercache.NewMemoryServices(retrievercache.DefaultPartitions())
//	cached, _ := retrievercache.New(store, services)
//
//	cfg, ok, err := cached.GetGuildConfigByID(ctx, guildID)
//
// # Caching Behavior
//
// Reads follow a read-through pattern:
//
//  1. Look the key up in the partition of the kind
//  2. On a hit, return a copy without touching the store
//  3. On a miss, call the base retriever
//  4. Store the entity only if it was found and no error occurred
//
// Save and Create replace the entry with the persisted value once the base
// call succeeds, so a read after a write in the same process sees the write.
// Delete removes the entry after the base call succeeds. A failed or
// cancelled call leaves the partition untouched.
//
// Entries expire after the partition TTL and the next read loads the current
// row. Wrap a context with WithFreshRead to force that reload early.
//
// # Keys
//
// Keys are built by a cache.KeySerializer under the snake_case name of the
// kind, e.g. "guild_config::771234567890123456" or
// "local_member::300000000000000001::771234567890123456".
//
// # Consistency
//
// Partitions are not invalidated across processes. When another process
// writes the same row this process may serve the old value until its entry
// expires.
package retrievercache
