package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edgecomet/unfurl/internal/cache/storage"
	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/metrics"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// shutdownTimeout bounds how long each backend gets to flush on shutdown.
const shutdownTimeout = 10 * time.Second

// Tiered stacks storage backends in priority order. Reads walk the stack
// and promote hits upward; writes fan out to every tier. All backend
// failures are best-effort: logged, counted, never propagated.
type Tiered struct {
	backends []storage.Storage
	names    []string

	log       *zap.Logger
	collector *metrics.Collector
}

// NewTiered builds the stack from the config tier declarations, in
// declaration order.
func NewTiered(tiers []config.CacheTier, logger *zap.Logger, collector *metrics.Collector) (*Tiered, error) {
	t := &Tiered{log: logger.Named("tiered"), collector: collector}

	for _, tier := range tiers {
		backend, err := storage.New(tier, logger)
		if err != nil {
			// unwind the tiers already opened
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			t.Shutdown(shutdownCtx)
			cancel()
			return nil, err
		}
		t.backends = append(t.backends, backend)
		t.names = append(t.names, tier.Backend)
	}

	return t, nil
}

// Empty reports whether no persistent tier is configured.
func (t *Tiered) Empty() bool {
	return t == nil || len(t.backends) == 0
}

// Get walks the tiers in priority order. On a hit at tier i, the value is
// written back to every higher tier so the next lookup stops earlier.
func (t *Tiered) Get(ctx context.Context, now time.Time, key string) (embed.Expiring, bool) {
	if t.Empty() {
		return embed.Expiring{}, false
	}

	for i, backend := range t.backends {
		value, err := backend.Get(ctx, now, key)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				t.recordError(i, "get", key, err)
			}
			continue
		}

		for j := i - 1; j >= 0; j-- {
			if err := t.backends[j].Put(ctx, now, key, value); err != nil {
				t.recordError(j, "put", key, err)
			} else if t.collector != nil {
				t.collector.RecordPromotion()
			}
		}

		return value, true
	}

	return embed.Expiring{}, false
}

// Put fans the entry out to every tier: Ready values are written, Errored
// entries delete instead so persistent tiers never cache failures.
func (t *Tiered) Put(ctx context.Context, now time.Time, key string, entry Entry) {
	if t.Empty() {
		return
	}

	var g errgroup.Group
	for i, backend := range t.backends {
		g.Go(func() error {
			var err error
			op := "put"
			if entry.IsErrored() {
				op = "del"
				err = backend.Del(ctx, key)
			} else {
				err = backend.Put(ctx, now, key, entry.Value())
			}
			if err != nil {
				t.recordError(i, op, key, err)
			}
			return nil
		})
	}
	g.Wait()
}

// Shutdown fans out to every tier concurrently with a per-backend
// deadline.
func (t *Tiered) Shutdown(ctx context.Context) {
	if t.Empty() {
		return
	}

	var g errgroup.Group
	for i, backend := range t.backends {
		g.Go(func() error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := backend.Shutdown(shutdownCtx); err != nil {
				t.log.Error("backend shutdown failed",
					zap.String("backend", t.names[i]),
					zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()
}

func (t *Tiered) recordError(tier int, op, key string, err error) {
	t.log.Warn("cache backend error",
		zap.String("backend", t.names[tier]),
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
	if t.collector != nil {
		t.collector.RecordBackendError(t.names[tier], op)
	}
}
