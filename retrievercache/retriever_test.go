package retrievercache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-entity-retriever/cache"
	"github.com/goliatone/go-entity-retriever/entity"
	"github.com/goliatone/go-entity-retriever/pkg/testsupport"
	"github.com/goliatone/go-entity-retriever/repository"
	"github.com/goliatone/go-entity-retriever/retriever"
	"github.com/goliatone/go-entity-retriever/retrievercache"
)

const (
	guildA = int64(771234567890123456)
	guildB = int64(771234567890123457)
	userA  = int64(300000000000000001)
)

type fixture struct {
	cached   *retrievercache.Retriever
	store    *retriever.Store
	exec     *testsupport.MemoryExecutor
	services retrievercache.Services
}

func newFixture(t *testing.T, partitions retrievercache.Partitions) *fixture {
	t.Helper()
	exec := testsupport.NewMemoryExecutor()
	store, err := retriever.New(repository.NewFactory(exec))
	require.NoError(t, err)

	services, err := retrievercache.NewMemoryServices(partitions)
	require.NoError(t, err)

	cached, err := retrievercache.New(store, services)
	require.NoError(t, err)
	return &fixture{cached: cached, store: store, exec: exec, services: services}
}

func (f *fixture) selects() int { return f.exec.Calls(repository.Select) }

func guildKey(id int64) string { return fmt.Sprintf("guild_config::%d", id) }

func TestRetriever_HitSkipsStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	created, err := f.store.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)
	f.exec.ResetCalls()

	first, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, first)
	assert.Equal(t, 1, f.selects())

	second, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, second)
	assert.Equal(t, 1, f.selects(), "second read must be served from the cache")
	assert.Equal(t, 1, f.exec.TotalCalls())
}

func TestRetriever_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	_, err := f.cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	got, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	got.Locale = "ru"
	got.Prefixes[0] = "!"

	again, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", again.Locale)
	assert.Equal(t, retriever.Prefixes{"$"}, again.Prefixes)
}

func TestRetriever_AbsentIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	got, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok, err = cache.Get[*retriever.GuildConfig](ctx, f.services.GuildConfig, guildKey(guildA))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.store.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	got, ok, err = f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, guildA, got.GuildID)
	assert.Equal(t, 2, f.selects())
}

func TestRetriever_FailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	_, err := f.store.CreateAdminConfig(ctx, guildA)
	require.NoError(t, err)

	boom := errors.New("connection reset", errors.CategoryExternal)
	f.exec.FailWith(repository.Select, boom)

	_, ok, err := f.cached.GetAdminConfigByID(ctx, guildA)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.IsCategory(err, errors.CategoryExternal))

	_, ok, err = cache.Get[*retriever.AdminConfig](ctx, f.services.AdminConfig, "admin_config::"+fmt.Sprint(guildA))
	require.NoError(t, err)
	assert.False(t, ok)

	f.exec.ClearFailures()
	got, ok, err := f.cached.GetAdminConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.MaxWarnCount)
}

func TestRetriever_SaveThenGetSeesWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	_, err := f.store.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	before, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)

	before.Locale = "ru"
	before.Timezone = "Europe/Moscow"
	require.NoError(t, f.cached.SaveGuildConfig(ctx, before))
	f.exec.ResetCalls()

	after, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, "ru", after.Locale)
	assert.Zero(t, f.selects())
}

func TestRetriever_FailedSaveKeepsEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	c, err := f.cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	f.exec.FailWith(repository.Update, errors.New("disk full", errors.CategoryExternal))
	changed := c.Clone()
	changed.Locale = "de"
	require.Error(t, f.cached.SaveGuildConfig(ctx, changed))

	got, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", got.Locale)
}

// rejectingWrites fails every Set and records the keys it dropped.
type rejectingWrites struct {
	cache.CacheService
	err     error
	deleted []string
}

func (r *rejectingWrites) Set(context.Context, string, any) error { return r.err }

func (r *rejectingWrites) Delete(ctx context.Context, key string) error {
	r.deleted = append(r.deleted, key)
	return r.CacheService.Delete(ctx, key)
}

func TestRetriever_FailedCacheWriteEvictsAndReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	c, err := f.cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	writeErr := errors.New("cache unavailable", errors.CategoryExternal)
	rejecting := &rejectingWrites{CacheService: f.services.GuildConfig, err: writeErr}
	services := f.services
	services.GuildConfig = rejecting
	cached, err := retrievercache.New(f.store, services)
	require.NoError(t, err)

	c.Locale = "de"
	err = cached.SaveGuildConfig(ctx, c)
	require.ErrorIs(t, err, writeErr)
	assert.Equal(t, []string{guildKey(guildA)}, rejecting.deleted)

	stored, ok, err := f.store.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "de", stored.Locale, "the row is written before the cache")

	_, ok, err = f.services.GuildConfig.Get(ctx, guildKey(guildA))
	require.NoError(t, err)
	assert.False(t, ok, "the stale entry is gone")

	created, err := cached.CreateGuildConfig(ctx, guildB)
	require.ErrorIs(t, err, writeErr)
	require.NotNil(t, created)
	assert.NotZero(t, created.ID)
}

func TestRetriever_CreatePopulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	created, err := f.cached.CreateAuditConfig(ctx, guildA)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	f.exec.ResetCalls()

	got, ok, err := f.cached.GetAuditConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, got)
	assert.Zero(t, f.selects())
}

func TestRetriever_DeleteEvicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	c, err := f.cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	_, ok, err := cache.Get[*retriever.GuildConfig](ctx, f.services.GuildConfig, guildKey(guildA))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.cached.DeleteGuildConfig(ctx, c))

	_, ok, err = cache.Get[*retriever.GuildConfig](ctx, f.services.GuildConfig, guildKey(guildA))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetriever_FailedDeleteKeepsEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	m, err := f.cached.CreateLocalMember(ctx, userA, guildA, "ada")
	require.NoError(t, err)

	f.exec.FailWith(repository.Delete, errors.New("timeout", errors.CategoryExternal))
	require.Error(t, f.cached.DeleteLocalMember(ctx, m))
	f.exec.ResetCalls()

	got, ok, err := f.cached.GetLocalMemberByID(ctx, userA, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ada", got.EffectiveName)
	assert.Zero(t, f.selects())
}

func TestRetriever_ExpiredEntryIsRefetched(t *testing.T) {
	ctx := context.Background()
	clock := sturdyc.NewTestClock(time.Now())
	partitions := retrievercache.DefaultPartitions().WithClock(clock)
	partitions.GuildConfig.TTL = time.Minute
	f := newFixture(t, partitions)

	c, err := f.store.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	_, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)

	// Another writer changes the row behind the cache.
	c.Locale = "fr"
	require.NoError(t, f.store.SaveGuildConfig(ctx, c))

	stale, _, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	assert.Equal(t, "en", stale.Locale)

	clock.Add(time.Minute + time.Second)

	fresh, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fr", fresh.Locale)
	assert.Equal(t, 2, f.selects())
}

func TestRetriever_FreshReadReplacesEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	c, err := f.cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	c.Locale = "pt"
	require.NoError(t, f.store.SaveGuildConfig(ctx, c))
	f.exec.ResetCalls()

	got, ok, err := f.cached.GetGuildConfigByID(retrievercache.WithFreshRead(ctx), guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pt", got.Locale)
	assert.Equal(t, 1, f.selects())

	got, ok, err = f.cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pt", got.Locale)
	assert.Equal(t, 1, f.selects())
}

func TestRetriever_FreshReadOfDeletedRowEvicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	c, err := f.cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteGuildConfig(ctx, c))

	_, ok, err := f.cached.GetGuildConfigByID(retrievercache.WithFreshRead(ctx), guildA)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.Get[*retriever.GuildConfig](ctx, f.services.GuildConfig, guildKey(guildA))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetriever_CancelledContextLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t, retrievercache.DefaultPartitions())

	c, err := f.cached.CreateGuildConfig(context.Background(), guildA)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = f.cached.GetGuildConfigByID(ctx, guildB)
	require.ErrorIs(t, err, context.Canceled)
	_, ok, err := cache.Get[*retriever.GuildConfig](context.Background(), f.services.GuildConfig, guildKey(guildB))
	require.NoError(t, err)
	assert.False(t, ok)

	changed := c.Clone()
	changed.Locale = "es"
	require.Error(t, f.cached.SaveGuildConfig(ctx, changed))

	got, ok, err := f.cached.GetGuildConfigByID(context.Background(), guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", got.Locale)
}

func TestRetriever_KeysPerKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	_, err := f.cached.CreateLocalMember(ctx, userA, guildA, "ada")
	require.NoError(t, err)
	_, err = f.cached.CreateLocalMember(ctx, userA, guildB, "ada (ru)")
	require.NoError(t, err)

	msg, err := f.cached.CreateMessageInfo(ctx, retriever.NewMessageInfo(guildA, 42, userA, "hello", time.Now()))
	require.NoError(t, err)

	m, ok, err := cache.Get[*retriever.LocalMember](ctx, f.services.LocalMember,
		fmt.Sprintf("local_member::%d::%d", userA, guildB))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ada (ru)", m.EffectiveName)

	cachedMsg, ok, err := cache.Get[*retriever.MessageInfo](ctx, f.services.MessageInfo, "message_info::42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msg.ID, cachedMsg.ID)
	assert.Equal(t, "hello", cachedMsg.Content())

	f.exec.ResetCalls()
	got, ok, err := f.cached.GetMessageInfoByID(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, userA, got.UserID())
	assert.Zero(t, f.selects())

	require.NoError(t, f.cached.DeleteMessageInfo(ctx, got))
	_, ok, err = f.cached.GetMessageInfoByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetriever_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, retrievercache.DefaultPartitions())

	_, err := f.store.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, ok, err := f.cached.GetGuildConfigByID(ctx, guildA)
			if err == nil && (!ok || c.GuildID != guildA) {
				err = fmt.Errorf("unexpected result %+v, %v", c, ok)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestNew_RequiresEveryPartition(t *testing.T) {
	f := newFixture(t, retrievercache.DefaultPartitions())

	services := f.services
	services.AuditConfig = nil
	_, err := retrievercache.New(f.store, services)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryBadInput))
	assert.True(t, entity.HasTextCode(err, retrievercache.TextCodeMissingPartition))

	_, err = retrievercache.New(nil, f.services)
	require.Error(t, err)
}

func TestPartitions_Validate(t *testing.T) {
	p := retrievercache.DefaultPartitions()
	require.NoError(t, p.Validate())

	p.LocalMember.Capacity = 0
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LocalMember partition")

	_, err = retrievercache.NewMemoryServices(p)
	require.Error(t, err)
}

func TestRetriever_RedisPartitions(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exec := testsupport.NewMemoryExecutor()
	factory := repository.NewFactory(exec)
	store, err := retriever.New(factory)
	require.NoError(t, err)

	services, err := retrievercache.NewRedisServices(client, factory.Registry(), "bot", retrievercache.DefaultPartitions(), nil)
	require.NoError(t, err)
	cached, err := retrievercache.New(store, services)
	require.NoError(t, err)

	created, err := cached.CreateGuildConfig(ctx, guildA)
	require.NoError(t, err)
	key := "bot:" + guildKey(guildA)
	require.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	exec.ResetCalls()
	got, ok, err := cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, got)
	assert.Zero(t, exec.Calls(repository.Select))

	msg, err := cached.CreateMessageInfo(ctx, retriever.NewMessageInfo(guildA, 7, userA, "hi", time.Unix(1700000000, 0)))
	require.NoError(t, err)
	gotMsg, ok, err := cached.GetMessageInfoByID(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msg.ID, gotMsg.ID)
	assert.True(t, msg.Timestamp().Equal(gotMsg.Timestamp()))

	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists(key))

	_, ok, err = cached.GetGuildConfigByID(ctx, guildA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, exec.Calls(repository.Select))
}
