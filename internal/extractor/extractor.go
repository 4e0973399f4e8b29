// Package extractor defines the extractor contract and the shared state
// every extractor runs against.
package extractor

import (
	"context"
	"net/url"

	"github.com/edgecomet/unfurl/pkg/embed"
)

// Params are the per-request knobs forwarded to extractors.
type Params struct {
	// Lang is the requested content language, from the l query
	// parameter.
	Lang string
}

// Extractor turns a URL into an embed. Implementations are matched in
// registration order; the generic extractor matches everything and is
// registered last.
type Extractor interface {
	// Name identifies the extractor in logs and metrics.
	Name() string

	// Matches reports whether this extractor should handle the URL.
	Matches(u *url.URL) bool

	// Setup runs once at startup, e.g. to log in to a service. Most
	// extractors have nothing to do.
	Setup(ctx context.Context, state *State) error

	// Extract fetches and builds the embed along with its expiry.
	Extract(ctx context.Context, state *State, u *url.URL, params Params) (embed.Expiring, error)
}
