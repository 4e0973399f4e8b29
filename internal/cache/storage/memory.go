package storage

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// memory is a bounded in-process LRU backend. Useful as the first tier in
// front of a persistent one, or alone in development.
type memory struct {
	entries *lru.Cache[string, embed.Expiring]
	log     *zap.Logger
}

func newMemory(opts map[string]string, log *zap.Logger) (*memory, error) {
	size, err := intOption(opts, "memory", "cache_size", config.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	entries, err := lru.New[string, embed.Expiring](size)
	if err != nil {
		return nil, config.InvalidCacheField("memory.cache_size", err)
	}

	return &memory{entries: entries, log: log}, nil
}

func (m *memory) Get(_ context.Context, now time.Time, key string) (embed.Expiring, error) {
	value, ok := m.entries.Get(key)
	if !ok {
		return embed.Expiring{}, ErrNotFound
	}
	if expired(value, now) {
		m.entries.Remove(key)
		return embed.Expiring{}, ErrNotFound
	}
	return value, nil
}

func (m *memory) Put(_ context.Context, _ time.Time, key string, value embed.Expiring) error {
	m.entries.Add(key, value)
	return nil
}

func (m *memory) Del(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

func (m *memory) Shutdown(context.Context) error {
	m.entries.Purge()
	return nil
}
