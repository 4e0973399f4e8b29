package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

func testValue(url string, expires time.Time) embed.Expiring {
	e := embed.New()
	e.URL = url
	e.Title = "title for " + url
	return embed.Expiring{Expires: embed.At(expires), Embed: e}
}

// exerciseContract runs the shared backend behavior: get/put/del round
// trip, expiry at read time, idempotent delete.
func exerciseContract(t *testing.T, s Storage) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()
	key := "https://example.com/contract"

	_, err := s.Get(ctx, now, key)
	assert.ErrorIs(t, err, ErrNotFound)

	value := testValue(key, now.Add(time.Hour))
	require.NoError(t, s.Put(ctx, now, key, value))

	got, err := s.Get(ctx, now, key)
	require.NoError(t, err)
	assert.Equal(t, value.Embed.URL, got.Embed.URL)
	assert.Equal(t, value.Embed.Title, got.Embed.Title)

	// expired at read time
	_, err = s.Get(ctx, now.Add(2*time.Hour), key)
	assert.ErrorIs(t, err, ErrNotFound)

	// upsert with a fresh expiry revives it
	require.NoError(t, s.Put(ctx, now, key, testValue(key, now.Add(3*time.Hour))))
	_, err = s.Get(ctx, now.Add(2*time.Hour), key)
	require.NoError(t, err)

	require.NoError(t, s.Del(ctx, key))
	require.NoError(t, s.Del(ctx, key))
	_, err = s.Get(ctx, now, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend(t *testing.T) {
	s, err := newMemory(map[string]string{"cache_size": "16"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	exerciseContract(t, s)
}

func TestMemoryBackendEvicts(t *testing.T) {
	s, err := newMemory(map[string]string{"cache_size": "2"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	expires := now.Add(time.Hour)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, now, key, testValue(key, expires)))
	}

	_, err = s.Get(ctx, now, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, now, "c")
	assert.NoError(t, err)
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")

	s, err := newSQLite(map[string]string{"path": path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	exerciseContract(t, s)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")
	ctx := context.Background()
	now := time.Now()
	key := "https://example.com/persisted"

	s, err := newSQLite(map[string]string{"path": path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, now, key, testValue(key, now.Add(time.Hour))))
	require.NoError(t, s.Shutdown(ctx))

	s, err = newSQLite(map[string]string{"path": path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Shutdown(ctx)

	got, err := s.Get(ctx, now, key)
	require.NoError(t, err)
	assert.Equal(t, key, got.Embed.URL)
}

func TestSQLiteMissingPath(t *testing.T) {
	_, err := newSQLite(nil, zaptest.NewLogger(t))
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestRedisBackend(t *testing.T) {
	srv := miniredis.RunT(t)

	s, err := newRedis(map[string]string{"url": "redis://" + srv.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	exerciseContract(t, s)
}

func TestRedisSetsServerExpiry(t *testing.T) {
	srv := miniredis.RunT(t)

	s, err := newRedis(map[string]string{"url": "redis://" + srv.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	ctx := context.Background()
	now := time.Now()
	key := "https://example.com/ttl"

	require.NoError(t, s.Put(ctx, now, key, testValue(key, now.Add(time.Hour))))

	ttl := srv.TTL(key)
	assert.Greater(t, ttl, 55*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisMissingURL(t *testing.T) {
	_, err := newRedis(nil, zaptest.NewLogger(t))
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestBadgerBackend(t *testing.T) {
	s, err := newBadger(map[string]string{
		"path":                t.TempDir(),
		"compact_on_shutdown": "true",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	exerciseContract(t, s)
}

func TestFactory(t *testing.T) {
	log := zaptest.NewLogger(t)

	s, err := New(config.CacheTier{Backend: "memory", Options: map[string]string{}}, log)
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))

	_, err = New(config.CacheTier{Backend: "bogus"}, log)
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "bogus")
}
