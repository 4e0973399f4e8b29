package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS embeds (
	hash  BLOB PRIMARY KEY,
	url   TEXT NOT NULL,
	embed TEXT NOT NULL
)`

// sqlite persists embeds in a single-file database. Rows are keyed by the
// blake3 hash of the URL; the URL itself is kept for inspection. Expiry
// lives inside the JSON body and expired rows are purged at read time.
type sqlite struct {
	db  *sql.DB
	log *zap.Logger
}

func newSQLite(opts map[string]string, log *zap.Logger) (*sqlite, error) {
	path, ok := opts["path"]
	if !ok || path == "" {
		return nil, config.MissingCacheField("sqlite.path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, config.InvalidCacheField("sqlite.path", err)
	}

	maxConns, err := intOption(opts, "sqlite", "max_connections", 4)
	if err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, config.InvalidCacheField("sqlite.path", fmt.Errorf("creating schema: %w", err))
	}

	return &sqlite{db: db, log: log}, nil
}

func keyHash(key string) []byte {
	sum := blake3.Sum256([]byte(key))
	return sum[:]
}

func (s *sqlite) Get(ctx context.Context, now time.Time, key string) (embed.Expiring, error) {
	hash := keyHash(key)

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT embed FROM embeds WHERE hash = ?`, hash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return embed.Expiring{}, ErrNotFound
	}
	if err != nil {
		return embed.Expiring{}, fmt.Errorf("sqlite get: %w", err)
	}

	var value embed.Expiring
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		return embed.Expiring{}, fmt.Errorf("sqlite decode: %w", err)
	}

	if expired(value, now) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM embeds WHERE hash = ?`, hash); err != nil {
			s.log.Warn("failed to purge expired row", zap.String("key", key), zap.Error(err))
		}
		return embed.Expiring{}, ErrNotFound
	}

	return value, nil
}

func (s *sqlite) Put(ctx context.Context, _ time.Time, key string, value embed.Expiring) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite encode: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeds (hash, url, embed) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET url = excluded.url, embed = excluded.embed`,
		keyHash(key), key, string(body))
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *sqlite) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeds WHERE hash = ?`, keyHash(key)); err != nil {
		return fmt.Errorf("sqlite del: %w", err)
	}
	return nil
}

func (s *sqlite) Shutdown(context.Context) error {
	return s.db.Close()
}
