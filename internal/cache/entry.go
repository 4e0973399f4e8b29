// Package cache implements the request-coalescing embed cache: a sharded
// singleflight coordinator over an in-memory LRU, backed by an ordered
// list of persistent storage tiers.
package cache

import (
	"time"

	"github.com/edgecomet/unfurl/pkg/embed"
)

// ErrorTTL is how long a failed extraction is negatively cached.
const ErrorTTL = time.Minute

// Entry is a resting per-key cache state: either Ready (a successful
// embed) or Errored (a negative cache of a failed extraction). Both carry
// their expiry.
type Entry struct {
	Expires time.Time

	// Embed is set for Ready entries.
	Embed *embed.EmbedV1

	// Err is set for Errored entries.
	Err error
}

// NewReady wraps a successful extraction result.
func NewReady(value embed.Expiring) Entry {
	return Entry{Expires: value.Expires.Time, Embed: value.Embed}
}

// NewErrored wraps a failed extraction with the negative-cache TTL.
func NewErrored(err error, now time.Time) Entry {
	return Entry{Expires: now.Add(ErrorTTL), Err: err}
}

// IsErrored reports whether the entry is a negative cache entry.
func (e Entry) IsErrored() bool { return e.Err != nil }

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool { return now.After(e.Expires) }

// Value returns the Ready payload in wire form.
func (e Entry) Value() embed.Expiring {
	return embed.Expiring{Expires: embed.At(e.Expires), Embed: e.Embed}
}
