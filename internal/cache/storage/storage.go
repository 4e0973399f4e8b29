// Package storage implements the persistent cache backends behind the
// tiered embed cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// ErrNotFound is returned by Get when no live entry exists for the key.
var ErrNotFound = errors.New("embed not found")

// Storage is the uniform contract over a single cache backend. Keys are
// raw request URLs. Implementations are safe for concurrent use.
type Storage interface {
	// Get returns the stored value iff it exists and has not expired at
	// now. Expired entries return ErrNotFound and may be deleted
	// opportunistically.
	Get(ctx context.Context, now time.Time, key string) (embed.Expiring, error)

	// Put upserts the value. Idempotent.
	Put(ctx context.Context, now time.Time, key string, value embed.Expiring) error

	// Del removes the key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Shutdown flushes, compacts and disconnects as appropriate.
	Shutdown(ctx context.Context) error
}

// New builds a backend from its config tier declaration.
func New(tier config.CacheTier, logger *zap.Logger) (Storage, error) {
	log := logger.Named(tier.Backend)

	switch tier.Backend {
	case "memory":
		return newMemory(tier.Options, log)
	case "sqlite":
		return newSQLite(tier.Options, log)
	case "redis":
		return newRedis(tier.Options, log)
	case "badger":
		return newBadger(tier.Options, log)
	default:
		return nil, config.InvalidCacheField(tier.Backend, fmt.Errorf("unknown backend"))
	}
}

// expired reports whether the stored value is past its expiry at now.
func expired(value embed.Expiring, now time.Time) bool {
	return now.After(value.Expires.Time)
}

// intOption parses an optional integer backend option.
func intOption(opts map[string]string, backend, name string, fallback int) (int, error) {
	raw, ok := opts[name]
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, config.InvalidCacheField(backend+"."+name, err)
	}
	return v, nil
}

// boolOption parses an optional boolean backend option.
func boolOption(opts map[string]string, backend, name string) (bool, error) {
	raw, ok := opts[name]
	if !ok {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, config.InvalidCacheField(backend+"."+name, err)
	}
	return v, nil
}
