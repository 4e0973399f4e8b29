// Package generic implements the catch-all extractor: standard meta
// tags, oEmbed discovery, syndication feeds, and direct media URLs.
package generic

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/parser"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// DefaultMaxAge is the cache lifetime when the page suggests none, and
// also the floor for pages that suggest less.
const DefaultMaxAge = 15 * time.Minute

// MaxMaxAge caps how long a page may ask to be cached.
const MaxMaxAge = 30 * 24 * time.Hour

// Generic handles every URL no dedicated extractor claimed.
type Generic struct{}

func New() *Generic { return &Generic{} }

func (*Generic) Name() string             { return "generic" }
func (*Generic) Matches(*url.URL) bool    { return true }
func (*Generic) Setup(context.Context, *extractor.State) error { return nil }

func (g *Generic) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	e, maxAge, err := ExtractRaw(ctx, state, u, params)
	if err != nil {
		return embed.Expiring{}, err
	}
	return Finalize(state, e, maxAge), nil
}

// ExtractRaw runs the full generic pipeline but leaves finalization
// (cleanup, signing, expiry stamping) to the caller so site extractors
// can build on the scraped profile.
func ExtractRaw(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (*embed.EmbedV1, *int64, error) {
	if !strings.HasPrefix(u.Scheme, "http") {
		return nil, nil, extractor.ErrInvalidURL
	}

	domain := state.Config.CleanDomain(u.Hostname())
	site := state.Config.FindSite(domain)

	req, err := state.NewRequest(ctx, http.MethodGet, u.String())
	if err != nil {
		return nil, nil, extractor.ErrInvalidURL
	}
	extractor.ApplySite(req, site)
	if params.Lang != "" {
		req.Header.Set("Accept-Language", params.Lang+";q=0.5")
	}

	resp, err := state.Fetch(req, 2)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	e := embed.New()
	e.URL = u.String()

	var (
		oembed *parser.OEmbed
		maxAge *int64
	)

	if rating := resp.Header.Get("Rating"); rating != "" {
		parser.ParseRating(e, rating)
	}

	// an oEmbed endpoint may be advertised in the Link header before we
	// even look at the body
	if links := parser.ParseLinkHeader(resp.Header.Get("Link")); len(links) > 0 {
		oembed = fetchOEmbed(ctx, state, &links[0], domain)
	}

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)

	switch {
	case mime == "text/html":
		body, err := extractor.ReadBody(resp, state.Config.Limits.MaxHTMLSize)
		if err != nil {
			return nil, nil, err
		}

		extra := parser.ParseMetaToEmbed(e, parser.ParseMeta(body))
		maxAge = extra.MaxAge

		if extra.Link != nil && oembed == nil {
			oembed = fetchOEmbed(ctx, state, extra.Link, domain)
		}

		if extra.Manifest != "" {
			if manifestURL, err := u.Parse(extra.Manifest); err == nil {
				if err := tryFetchManifest(ctx, state, manifestURL.String(), params, e); err != nil {
					state.Log.Debug("manifest fetch failed",
						zap.String("url", manifestURL.String()), zap.Error(err))
				}
			}
		}

		if site != nil && !site.Fields.IsEmpty() {
			scrapeFields(body, e, site.Fields)
		}

	case isFeedMime(mime):
		body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxXMLSize)
		if err == nil {
			if feed, err := parser.NewFeedParser().ParseString(string(body)); err == nil {
				age := parser.FeedToEmbed(e, feed)
				maxAge = &age
			}
		}

	default:
		media := embed.NewMedia(u.String())
		media.Mime = mime

		switch {
		case strings.HasPrefix(mime, "image"):
			if body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxMediaSize); err == nil {
				if w, h, ok := sniffImageSize(body); ok {
					media.Width, media.Height = &w, &h
				}
			}
			e.Type = embed.TypeImage
			e.Images = append(e.Images, *media)
		case strings.HasPrefix(mime, "video"):
			e.Type = embed.TypeVideo
			e.Video = media
		case strings.HasPrefix(mime, "audio"):
			e.Type = embed.TypeAudio
			e.Audio = media
		}
	}

	if oembed != nil {
		extra := parser.ParseOEmbedToEmbed(e, oembed)
		maxAge = extra.MaxAge
	}

	parser.ResolveRelative(u, e)

	if state.Config.ResolveMedia {
		ResolveMedia(ctx, state, site, e)
	}

	if !state.Config.AllowHTML.Matches(domain) {
		e.Object = nil

		// an oEmbed "video" that is really an iframe is still HTML
		if e.Video != nil && strings.HasPrefix(e.Video.Mime, "text/html") {
			e.Video = nil
		}
	}

	if site != nil && site.Color != nil {
		e.Color = site.Color.RGB()
	}

	return e, maxAge, nil
}

// Finalize cleans the embed up, signs its media, and stamps the expiry.
func Finalize(state *extractor.State, e *embed.EmbedV1, maxAge *int64) embed.Expiring {
	parser.FixEmbed(e)

	if len(state.SigningKey) > 0 {
		e.VisitMedia(func(m *embed.BasicMedia) {
			m.Signature = state.Sign(m.URL)
		})
	}

	e.Timestamp = embed.Now()

	age := int64(DefaultMaxAge / time.Second)
	if maxAge != nil {
		age = *maxAge
	}
	age = min(max(age, int64(DefaultMaxAge/time.Second)), int64(MaxMaxAge/time.Second))

	return embed.Expiring{
		Expires: embed.At(e.Timestamp.Add(time.Duration(age) * time.Second)),
		Embed:   e,
	}
}

func isFeedMime(mime string) bool {
	switch mime {
	case "application/rss+xml", "application/feed+json", "application/atom+xml", "application/xml":
		return true
	}
	return false
}

// fetchOEmbed resolves a discovered oEmbed endpoint. Failures are soft:
// the scraped profile stands on its own.
func fetchOEmbed(ctx context.Context, state *extractor.State, link *parser.OEmbedLink, domain string) *parser.OEmbed {
	if domain != "" && state.Config.SkipOembed.Matches(domain) {
		return nil
	}

	req, err := state.NewRequest(ctx, http.MethodGet, link.URL)
	if err != nil {
		return nil
	}

	resp, err := state.Fetch(req, 1)
	if err != nil {
		state.Log.Debug("oEmbed fetch failed", zap.String("url", link.URL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxXMLSize)
	if err != nil {
		return nil
	}

	var o *parser.OEmbed
	if link.Format == parser.OEmbedXML {
		o, err = parser.ParseOEmbedXML(body)
	} else {
		o, err = parser.ParseOEmbed(body)
	}
	if err != nil {
		state.Log.Debug("oEmbed decode failed", zap.String("url", link.URL), zap.Error(err))
		return nil
	}
	return o
}
