package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// redis stores embeds under the raw URL with a PXAT expiry so Redis
// reclaims dead entries on its own. Get still double-checks the embedded
// expiry against the caller's clock.
type redis struct {
	client *goredis.Client
	log    *zap.Logger
}

func newRedis(opts map[string]string, log *zap.Logger) (*redis, error) {
	url, ok := opts["url"]
	if !ok || url == "" {
		return nil, config.MissingCacheField("redis.url")
	}

	redisOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, config.InvalidCacheField("redis.url", err)
	}

	return &redis{client: goredis.NewClient(redisOpts), log: log}, nil
}

func (r *redis) Get(ctx context.Context, now time.Time, key string) (embed.Expiring, error) {
	body, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return embed.Expiring{}, ErrNotFound
	}
	if err != nil {
		return embed.Expiring{}, fmt.Errorf("redis get: %w", err)
	}

	var value embed.Expiring
	if err := json.Unmarshal(body, &value); err != nil {
		return embed.Expiring{}, fmt.Errorf("redis decode: %w", err)
	}

	// Redis expiry is best-effort; the embedded timestamp is authoritative
	if expired(value, now) {
		return embed.Expiring{}, ErrNotFound
	}

	return value, nil
}

func (r *redis) Put(ctx context.Context, _ time.Time, key string, value embed.Expiring) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}

	err = r.client.Do(ctx, "SET", key, body, "PXAT", value.Expires.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (r *redis) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *redis) Shutdown(context.Context) error {
	return r.client.Close()
}
