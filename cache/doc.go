// Package cache provides cache partitions and key serialization for the
// caching entity retriever.
//
// # Overview
//
// A CacheService is one partition: a bounded set of entries sharing a size
// limit and a time-to-live. Two backends are available:
//
//   - NewCacheService: in-process, sharded, backed by sturdyc
//   - NewRedisService: out-of-process, values encoded through a Codec
//
// Values are stored as any. GetOrFetch and Get restore the static type and
// report ErrInvalidResultType when a partition holds something else.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	key := cache.NewDefaultKeySerializer().SerializeKey("guild_config", guildID)
//
//	cfg, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (*GuildConfig, error) {
//		c, ok, err := base.GetGuildConfigByID(ctx, guildID)
//		if err == nil && !ok {
//			return nil, cache.ErrNotFound
//		}
//		return c, err
//	})
//
// A fetch that fails, or returns ErrNotFound, leaves the partition
// untouched. Concurrent in-process misses on one key share a single fetch.
//
// # Expiry
//
// The TTL of an entry counts from its last write, so Set restarts it. Tests
// control time by passing sturdyc.NewTestClock as Config.Clock; redis
// partitions expire server side.
//
// # Keys
//
// The default serializer renders integers, strings, times and small
// collections without reflection, so keys are identical across processes
// and safe to share through redis. Anything else falls back to JSON.
package cache
