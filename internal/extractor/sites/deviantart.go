package sites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/generic"
	"github.com/edgecomet/unfurl/internal/extractor/parser"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// DeviantArt resolves art pages through the public oEmbed backend, which
// returns richer data than the page's own meta tags.
type DeviantArt struct {
	// api is the oEmbed origin, overridable in tests.
	api string
}

// NewDeviantArt needs no configuration.
func NewDeviantArt(*config.Config) (extractor.Extractor, error) {
	return &DeviantArt{api: "https://backend.deviantart.com"}, nil
}

func (*DeviantArt) Name() string { return "deviantart" }

func (*DeviantArt) Matches(u *url.URL) bool {
	host := u.Hostname()
	if host != "deviantart.com" && !strings.HasSuffix(host, ".deviantart.com") {
		return false
	}
	return strings.Contains(u.Path, "/art/")
}

func (*DeviantArt) Setup(context.Context, *extractor.State) error { return nil }

func (x *DeviantArt) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	endpoint := x.api + "/oembed?url=" + url.QueryEscape(pageURL(u))

	req, err := state.NewRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return embed.Expiring{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := state.Fetch(req, 1)
	if err != nil {
		return embed.Expiring{}, err
	}
	defer resp.Body.Close()

	body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxXMLSize)
	if err != nil {
		return embed.Expiring{}, err
	}

	o, err := parser.ParseOEmbed(body)
	if err != nil {
		return embed.Expiring{}, err
	}

	// the rating lives outside the standard oEmbed shape
	var extra struct {
		Rating string `json:"safety"`
	}
	json.Unmarshal(body, &extra)

	e := embed.New()
	e.URL = pageURL(u)

	fields := parser.ParseOEmbedToEmbed(e, o)
	if strings.EqualFold(extra.Rating, "adult") {
		e.Flags |= embed.FlagAdult
	}

	e.Color = rgb(0x05cc47)
	if e.Provider.Name == "" {
		e.Provider.Name = "DeviantArt"
	}
	if e.Provider.URL == "" {
		e.Provider.URL = "https://www.deviantart.com"
	}

	age := fourHours
	if fields.MaxAge != nil {
		age = max(*fields.MaxAge, fourHours)
	}
	return generic.Finalize(state, e, &age), nil
}
