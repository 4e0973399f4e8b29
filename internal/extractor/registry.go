package extractor

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// Registry is the ordered extractor chain. It is immutable after
// construction; the last entry is expected to match every URL.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds the chain from the given extractors in order,
// skipping nil entries (unconfigured extractors).
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make([]Extractor, 0, len(extractors))}
	for _, x := range extractors {
		if x != nil {
			r.extractors = append(r.extractors, x)
		}
	}
	return r
}

// Setup runs every extractor's one-shot initialization. Any failure is
// fatal at startup.
func (r *Registry) Setup(ctx context.Context, state *State) error {
	for _, x := range r.extractors {
		if err := x.Setup(ctx, state); err != nil {
			return err
		}
		state.Log.Debug("extractor ready", zap.String("extractor", x.Name()))
	}
	return nil
}

// Find returns the first extractor claiming the URL, or nil when none
// does.
func (r *Registry) Find(u *url.URL) Extractor {
	for _, x := range r.extractors {
		if x.Matches(u) {
			return x
		}
	}
	return nil
}

// Len reports how many extractors are registered.
func (r *Registry) Len() int { return len(r.extractors) }
