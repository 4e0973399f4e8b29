package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/metrics"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// shardCount splits the pending/bucket locks so unrelated keys never
// contend. Power of two.
const shardCount = 64

// Outcome is the result of a coordinator lookup. Exactly one field is
// set:
//   - Hit: a live cached value, return it directly;
//   - Sub: another request is extracting this key, wait on it;
//   - Token: the caller won the miss and must extract, then Put.
type Outcome struct {
	Hit   *embed.Expiring
	Sub   *Subscription
	Token *Token
}

// Token is the coordination handle held by the unique miss winner. The
// winner must settle it with exactly one Put or Abort.
type Token struct {
	key string
	pub *Publisher
}

type shard struct {
	// mu is the bucket lock: it guards pending and serializes
	// read-modify-write of L1 entries for keys in this shard. Never held
	// across I/O; timestamps are sampled only after acquiring it.
	mu      sync.Mutex
	pending map[string]*Publisher
}

// Cache is the singleflight coordinator: an L1 LRU of resting entries
// plus a pending map of in-flight extractions, backed by the tiered
// persistent cache.
type Cache struct {
	shards [shardCount]shard
	l1     *lru.Cache[string, Entry]

	tiered *Tiered

	log       *zap.Logger
	collector *metrics.Collector
}

// New builds the coordinator. tiered may be empty; collector may be nil.
func New(cacheSize int, tiered *Tiered, logger *zap.Logger, collector *metrics.Collector) (*Cache, error) {
	l1, err := lru.New[string, Entry](cacheSize)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		l1:        l1,
		tiered:    tiered,
		log:       logger.Named("cache"),
		collector: collector,
	}
	for i := range c.shards {
		c.shards[i].pending = make(map[string]*Publisher)
	}
	return c, nil
}

func (c *Cache) shard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.shards[h.Sum32()&(shardCount-1)]
}

// Get resolves the key to one of Hit, Sub, or Token. A live negative
// cache entry is returned as the stored error.
func (c *Cache) Get(ctx context.Context, key string) (Outcome, error) {
	sh := c.shard(key)

	sh.mu.Lock()

	// subscribe to an in-flight extraction if one exists; a publisher
	// that already closed is stale and is dropped so this request can
	// re-evaluate the resting state
	if pub, ok := sh.pending[key]; ok {
		if !pub.IsClosed() {
			sub := pub.Subscribe()
			sh.mu.Unlock()
			if c.collector != nil {
				c.collector.RecordCacheWait()
			}
			return Outcome{Sub: sub}, nil
		}
		delete(sh.pending, key)
	}

	now := time.Now()

	if entry, ok := c.l1.Get(key); ok {
		if !entry.Expired(now) {
			sh.mu.Unlock()
			if entry.IsErrored() {
				if c.collector != nil {
					c.collector.RecordNegativeHit()
				}
				return Outcome{}, entry.Err
			}
			if c.collector != nil {
				c.collector.RecordCacheHit()
			}
			value := entry.Value()
			return Outcome{Hit: &value}, nil
		}
		c.l1.Remove(key)
	}

	// this request owns the miss; expose the publisher before releasing
	// the bucket so racers subscribe instead of extracting
	pub := newPublisher()
	sh.pending[key] = pub
	sh.mu.Unlock()

	// a persistent tier may still hold a live value
	if value, ok := c.tiered.Get(ctx, now, key); ok {
		c.settle(ctx, sh, key, pub, NewReady(value), false)
		if c.collector != nil {
			c.collector.RecordCacheHit()
		}
		return Outcome{Hit: &value}, nil
	}

	if c.collector != nil {
		c.collector.RecordCacheMiss()
	}
	return Outcome{Token: &Token{key: key, pub: pub}}, nil
}

// Put settles a miss with the extraction result and returns the entry
// actually published, which may be a newer value another request stored
// in the meantime: a resting Ready is only replaced by a Ready that
// expires later, and never by an Errored.
func (c *Cache) Put(ctx context.Context, token *Token, entry Entry) Entry {
	return c.settle(ctx, c.shard(token.key), token.key, token.pub, entry, true)
}

// Abort releases a token without a value, e.g. when the handler panics.
// Waiting subscribers observe the closed publisher and retry.
func (c *Cache) Abort(token *Token) {
	sh := c.shard(token.key)
	sh.mu.Lock()
	if sh.pending[token.key] == token.pub {
		delete(sh.pending, token.key)
	}
	sh.mu.Unlock()
	token.pub.Close()
}

func (c *Cache) settle(ctx context.Context, sh *shard, key string, pub *Publisher, entry Entry, writeTiered bool) Entry {
	sh.mu.Lock()
	now := time.Now()

	final := entry
	propagate := true
	if existing, ok := c.l1.Get(key); ok && !existing.Expired(now) && !existing.IsErrored() {
		if entry.IsErrored() || !entry.Expires.After(existing.Expires) {
			final = existing
			propagate = false
		}
	}
	if propagate {
		c.l1.Add(key, entry)
	}
	sh.mu.Unlock()

	if propagate && writeTiered {
		// the write-through must survive the requester going away
		c.tiered.Put(context.WithoutCancel(ctx), now, key, entry)
	}

	pub.Publish(final)

	sh.mu.Lock()
	if sh.pending[key] == pub {
		delete(sh.pending, key)
	}
	sh.mu.Unlock()

	return final
}

// Shutdown propagates to the persistent tiers.
func (c *Cache) Shutdown(ctx context.Context) {
	c.tiered.Shutdown(ctx)
}
