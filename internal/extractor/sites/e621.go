package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/generic"
	"github.com/edgecomet/unfurl/internal/extractor/parser"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// E621 resolves e621/e926 post pages through the posts.json API, which
// requires an authenticated account.
type E621 struct {
	login  string
	apiKey string

	// api is the API origin, overridable in tests.
	api string
}

// NewE621 builds the extractor when an [extractors.e621] (or .e926)
// table with login and api_key is configured.
func NewE621(cfg *config.Config) (extractor.Extractor, error) {
	opts, ok := cfg.Extractor("e621")
	if !ok {
		opts, ok = cfg.Extractor("e926")
	}
	if !ok {
		return nil, nil
	}

	login := opts["login"]
	if login == "" {
		return nil, missingField("e621.login")
	}
	apiKey := opts["api_key"]
	if apiKey == "" {
		return nil, missingField("e621.api_key")
	}

	return &E621{login: login, apiKey: apiKey, api: "https://e621.net"}, nil
}

func (*E621) Name() string { return "e621" }

func (*E621) Matches(u *url.URL) bool {
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "e621.net", "e926.net":
		return strings.HasPrefix(u.Path, "/posts/")
	}
	return false
}

func (*E621) Setup(context.Context, *extractor.State) error { return nil }

type e621Tags struct {
	General []string `json:"general"`
	Artist  []string `json:"artist"`
}

type e621File struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ext    string `json:"ext"`
	URL    string `json:"url"`
}

type e621Alternate struct {
	Type   string    `json:"type"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	URLs   []*string `json:"urls"`
}

type e621Sample struct {
	Has        bool                     `json:"has"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	URL        string                   `json:"url"`
	Alternates map[string]e621Alternate `json:"alternates"`
}

type e621Post struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Rating      string     `json:"rating"`
	File        e621File   `json:"file"`
	Preview     e621File   `json:"preview"`
	Sample      e621Sample `json:"sample"`
	Tags        e621Tags   `json:"tags"`
}

type e621Posts struct {
	Posts []e621Post `json:"posts"`
}

// graphicTags flags content the rating field alone does not capture.
var graphicTags = parser.NewTagChecker("gore", "snuff", "necrophilia")

// metaArtistTags appear under tags.artist without naming an artist.
var metaArtistTags = map[string]bool{
	"avoid_posting":    true,
	"conditional_dnp":  true,
	"epilepsy_warning": true,
	"sound_warning":    true,
	"third-party_edit": true,
}

// sampleQualities is the preference order for alternate renditions.
var sampleQualities = [...]string{"original", "1080p", "720p", "480p", "360p", "240p"}

func (x *E621) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	safeOnly := host == "e926.net"

	id := strings.TrimPrefix(u.Path, "/posts/")
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	if id == "" || strings.ContainsFunc(id, func(r rune) bool { return r < '0' || r > '9' }) {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	query := url.Values{
		"login":   {x.login},
		"api_key": {x.apiKey},
		"limit":   {"1"},
		"tags":    {"id:" + id},
	}

	var posts e621Posts
	if err := getJSON(ctx, state, x.api+"/posts.json?"+query.Encode(), nil, &posts); err != nil {
		return embed.Expiring{}, err
	}
	if len(posts.Posts) == 0 {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}
	post := posts.Posts[0]

	if safeOnly && post.Rating != "s" {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	// clients choke on the full-size originals, so fall back to the
	// sample rendition past 2048px
	file := post.File
	if (file.Width > 2048 || file.Height > 2048) && post.Sample.URL != "" {
		file = e621File{
			Width:  post.Sample.Width,
			Height: post.Sample.Height,
			URL:    post.Sample.URL,
			Ext:    file.Ext,
		}
	}
	if file.URL == "" {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	e := embed.New()
	e.URL = u.Scheme + "://" + u.Host + "/posts/" + id
	e.Color = rgb(0x00549e)

	if post.Rating != "s" {
		e.Flags |= embed.FlagAdult
	}
	for _, tag := range post.Tags.General {
		if graphicTags.Contains(tag) {
			e.Flags |= embed.FlagGraphic
			break
		}
	}

	media := embed.NewMedia(file.URL)
	media.Mime = parser.GuessMime(file.URL)
	if media.Mime == "" && file.Ext != "" {
		media.Mime = parser.GuessMime("x." + file.Ext)
	}
	if file.Width > 0 && file.Height > 0 {
		media.Width, media.Height = intp(file.Width), intp(file.Height)
	}

	switch {
	case strings.HasPrefix(media.Mime, "image"):
		e.Images = append(e.Images, *media)
	case strings.HasPrefix(media.Mime, "video"):
		if media.Mime != "video/mp4" {
			if alt := sampleAlternate(&post.Sample); alt != nil {
				media.Alternates = append(media.Alternates, *alt)
			}
		}
		e.Video = media
	case strings.HasPrefix(media.Mime, "audio"):
		e.Audio = media
	case post.Preview.URL != "":
		thumb := embed.NewMedia(post.Preview.URL)
		thumb.Mime = parser.GuessMime(post.Preview.URL)
		if post.Preview.Width > 0 && post.Preview.Height > 0 {
			thumb.Width, thumb.Height = intp(post.Preview.Width), intp(post.Preview.Height)
		}
		e.Thumb = thumb
	default:
		return embed.Expiring{}, extractor.ErrInvalidMimeType
	}

	site := "e621"
	if safeOnly {
		site = "e926"
	}

	artists := postArtists(&post)
	e.Title = postTitle(id, artists) + " - " + site
	if len(artists) > 0 {
		e.Author = &embed.Author{Name: parser.FormatList(artists)}
	}
	e.Description = parser.CollapseNewlines(post.Description)

	e.Provider.Name = site
	e.Provider.URL = u.Scheme + "://" + u.Host
	e.Provider.Icon = embed.NewMedia(u.Scheme + "://" + u.Host + "/apple-touch-icon.png")

	age := fourHours
	return generic.Finalize(state, e, &age), nil
}

// sampleAlternate picks the best non-webm alternate rendition, walking
// qualities from the original down.
func sampleAlternate(sample *e621Sample) *embed.BasicMedia {
	for _, quality := range sampleQualities {
		alt, ok := sample.Alternates[quality]
		if !ok {
			continue
		}
		for _, altURL := range alt.URLs {
			if altURL == nil || *altURL == "" || strings.HasSuffix(*altURL, ".webm") {
				continue
			}
			out := &embed.BasicMedia{URL: *altURL, Mime: parser.GuessMime(*altURL)}
			if alt.Width > 0 && alt.Height > 0 {
				out.Width, out.Height = intp(alt.Width), intp(alt.Height)
			}
			return out
		}
	}
	return nil
}

func postArtists(post *e621Post) []string {
	var artists []string
	for _, artist := range post.Tags.Artist {
		if !metaArtistTags[artist] {
			artists = append(artists, artist)
		}
	}
	return artists
}

func postTitle(id string, artists []string) string {
	if len(artists) == 0 {
		return "#" + id
	}
	return fmt.Sprintf("#%s by %s", id, parser.FormatList(artists))
}
