// Package sites holds the dedicated per-site extractors. Each one knows
// a single service's API or page structure and produces richer embeds
// than the generic scraper would; anything they cannot claim falls
// through to the generic extractor.
package sites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/generic"
)

// fourHours is the shared cache lifetime for API-backed extractions.
const fourHours = int64(60 * 60 * 4)

// All builds the extractor chain in dispatch order. Extractors whose
// required configuration is absent are left out; the generic extractor
// closes the chain and matches everything.
func All(cfg *config.Config) ([]extractor.Extractor, error) {
	builders := []func(*config.Config) (extractor.Extractor, error){
		NewE621,
		NewWikipedia,
		NewDeviantArt,
		NewImgur,
		NewInkbunny,
		NewFurAffinity,
		NewBluesky,
	}

	var out []extractor.Extractor
	for _, build := range builders {
		x, err := build(cfg)
		if err != nil {
			return nil, err
		}
		if x != nil {
			out = append(out, x)
		}
	}
	return append(out, generic.New()), nil
}

// missingField reports a required key absent from an extractors.* table.
func missingField(name string) error {
	return config.MissingExtractorField(name)
}

// pageURL rebuilds the canonical page address from the request URL,
// shedding query strings and fragments.
func pageURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

func rgb(c uint32) *uint32 { return &c }

func intp(n int) *int { return &n }

// getJSON fetches and decodes a JSON API response. decorate, when
// non-nil, may add auth headers before the request is sent.
func getJSON(ctx context.Context, state *extractor.State, rawURL string, decorate func(*http.Request), v any) error {
	req, err := state.NewRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := state.Fetch(req, 1)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxXMLSize)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
