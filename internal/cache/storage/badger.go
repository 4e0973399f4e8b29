package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// keyPrefix namespaces embed rows inside the badger keyspace.
var keyPrefix = []byte("embeds/")

// badger is the embedded KV backend. Entries carry a badger TTL matching
// the embed expiry; Get still checks the embedded timestamp.
type badger struct {
	db                *badgerdb.DB
	compactOnShutdown bool
	log               *zap.Logger
}

func newBadger(opts map[string]string, log *zap.Logger) (*badger, error) {
	path, ok := opts["path"]
	if !ok || path == "" {
		return nil, config.MissingCacheField("badger.path")
	}

	compact, err := boolOption(opts, "badger", "compact_on_shutdown")
	if err != nil {
		return nil, err
	}

	dbOpts := badgerdb.DefaultOptions(path).
		WithLogger(nil).
		WithCompression(0)

	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, config.InvalidCacheField("badger.path", err)
	}

	return &badger{db: db, compactOnShutdown: compact, log: log}, nil
}

func badgerKey(key string) []byte {
	return append(append([]byte{}, keyPrefix...), key...)
}

func (b *badger) Get(_ context.Context, now time.Time, key string) (embed.Expiring, error) {
	var body []byte

	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return embed.Expiring{}, ErrNotFound
	}
	if err != nil {
		return embed.Expiring{}, fmt.Errorf("badger get: %w", err)
	}

	var value embed.Expiring
	if err := json.Unmarshal(body, &value); err != nil {
		return embed.Expiring{}, fmt.Errorf("badger decode: %w", err)
	}

	if expired(value, now) {
		return embed.Expiring{}, ErrNotFound
	}

	return value, nil
}

func (b *badger) Put(_ context.Context, now time.Time, key string, value embed.Expiring) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("badger encode: %w", err)
	}

	ttl := value.Expires.Sub(now)
	if ttl <= 0 {
		return nil
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.SetEntry(badgerdb.NewEntry(badgerKey(key), body).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (b *badger) Del(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return fmt.Errorf("badger del: %w", err)
	}
	return nil
}

func (b *badger) Shutdown(context.Context) error {
	if b.compactOnShutdown {
		if err := b.db.Flatten(2); err != nil {
			b.log.Warn("badger flatten failed", zap.Error(err))
		}
		// discard as much value-log garbage as possible before closing
		for {
			if err := b.db.RunValueLogGC(0.5); err != nil {
				break
			}
		}
	}
	return b.db.Close()
}
