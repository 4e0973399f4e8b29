package sites

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/generic"
	"github.com/edgecomet/unfurl/internal/extractor/parser"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// Wikipedia resolves article pages through the REST page-summary API.
// Non-article paths fall through to the generic extractor.
type Wikipedia struct {
	// api overrides the per-wiki REST origin in tests. Empty means the
	// article's own host.
	api string
}

// NewWikipedia needs no configuration.
func NewWikipedia(*config.Config) (extractor.Extractor, error) {
	return &Wikipedia{}, nil
}

func (*Wikipedia) Name() string { return "wikipedia" }

func (*Wikipedia) Matches(u *url.URL) bool {
	host := u.Hostname()
	if host != "wikipedia.org" && !strings.HasSuffix(host, ".wikipedia.org") {
		return false
	}
	return articleTitle(u.Path) != ""
}

func (*Wikipedia) Setup(context.Context, *extractor.State) error { return nil }

// articleTitle extracts the title segment from a /wiki/{title} path.
func articleTitle(path string) string {
	title := strings.TrimPrefix(path, "/wiki/")
	if title == path || title == "" || strings.ContainsRune(title, '/') {
		return ""
	}
	return title
}

type wikiImage struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (w *wikiImage) media() *embed.Media {
	if w == nil || w.Source == "" {
		return nil
	}
	m := embed.NewMedia(w.Source)
	m.Mime = parser.GuessMime(w.Source)
	if w.Width > 0 && w.Height > 0 {
		m.Width, m.Height = intp(w.Width), intp(w.Height)
	}
	return m
}

type wikiSummary struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Extract       string     `json:"extract"`
	Thumbnail     *wikiImage `json:"thumbnail"`
	OriginalImage *wikiImage `json:"originalimage"`

	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (x *Wikipedia) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	title := articleTitle(u.Path)
	if title == "" {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	origin := x.api
	if origin == "" {
		origin = "https://" + u.Host
	}

	var summary wikiSummary
	if err := getJSON(ctx, state, origin+"/api/rest_v1/page/summary/"+title, func(req *http.Request) {
		if params.Lang != "" {
			req.Header.Set("Accept-Language", params.Lang+";q=0.5")
		}
	}, &summary); err != nil {
		return embed.Expiring{}, err
	}

	e := embed.New()
	e.URL = pageURL(u)
	e.Title = summary.Title
	e.Description = summary.Extract
	if e.Description == "" {
		e.Description = summary.Description
	}
	e.Color = rgb(0xffffff)

	if canonical := summary.ContentURLs.Desktop.Page; canonical != "" {
		e.Canonical = canonical
	}

	if img := summary.OriginalImage.media(); img != nil {
		e.Images = append(e.Images, *img)
	}
	if thumb := summary.Thumbnail.media(); thumb != nil {
		e.Thumb = thumb
	}

	e.Provider.Name = "Wikipedia"
	e.Provider.URL = "https://www.wikipedia.org"
	e.Provider.Icon = embed.NewMedia("https://www.wikipedia.org/static/apple-touch/wikipedia.png")

	age := fourHours
	return generic.Finalize(state, e, &age), nil
}
