package generic

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/parser"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// webAppManifest is the subset of the W3C web app manifest the service
// can turn into provider metadata.
type webAppManifest struct {
	Name          string                    `json:"name"`
	NameLocalized map[string]localizedValue `json:"name_localized"`

	ShortName          string                    `json:"short_name"`
	ShortNameLocalized map[string]localizedValue `json:"short_name_localized"`

	Description          string                    `json:"description"`
	DescriptionLocalized map[string]localizedValue `json:"description_localized"`

	Icons []manifestIcon `json:"icons"`

	ThemeColor      string `json:"theme_color"`
	BackgroundColor string `json:"background_color"`
}

type localizedValue struct {
	Value string `json:"value"`
}

type manifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Mime    string `json:"type"`
	Purpose string `json:"purpose"`
}

// localized picks the best entry for the requested language, falling
// back to the manifest default.
func localized(entries map[string]localizedValue, lang, fallback string) string {
	if len(entries) == 0 || lang == "" {
		return fallback
	}

	tags := make([]language.Tag, 0, len(entries))
	keys := make([]string, 0, len(entries))
	for key := range entries {
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		keys = append(keys, key)
	}
	if len(tags) == 0 {
		return fallback
	}

	matcher := language.NewMatcher(tags)
	want, err := language.Parse(lang)
	if err != nil {
		return fallback
	}

	_, idx, conf := matcher.Match(want)
	if conf == language.No {
		return fallback
	}
	return entries[keys[idx]].Value
}

// tryFetchManifest fills gaps in the embed from the page's web app
// manifest: color, description, provider name and icon.
func tryFetchManifest(ctx context.Context, state *extractor.State, manifestURL string, params extractor.Params, e *embed.EmbedV1) error {
	req, err := state.NewRequest(ctx, http.MethodGet, manifestURL)
	if err != nil {
		return err
	}

	resp, err := state.Fetch(req, 2)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxXMLSize)
	if err != nil {
		return err
	}

	var manifest webAppManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return err
	}

	if e.Color == nil {
		color := manifest.ThemeColor
		if color == "" {
			color = manifest.BackgroundColor
		}
		if color != "" {
			e.Color = parser.ParseColor(color)
		}
	}

	if e.Description == "" {
		e.Description = localized(manifest.DescriptionLocalized, params.Lang, manifest.Description)
	}

	if e.Provider.Name == "" {
		name := localized(manifest.NameLocalized, params.Lang, manifest.Name)
		if name == "" {
			name = localized(manifest.ShortNameLocalized, params.Lang, manifest.ShortName)
		}
		e.Provider.Name = name
	}

	if e.Provider.Icon == nil && len(manifest.Icons) > 0 {
		icon := manifest.Icons[0]
		media := embed.NewMedia(icon.Src)
		media.Mime = icon.Mime

		for _, size := range strings.Split(icon.Sizes, " ") {
			ws, hs, ok := strings.Cut(size, "x")
			if !ok {
				continue
			}
			if w, err := strconv.Atoi(ws); err == nil {
				media.Width = &w
			}
			if h, err := strconv.Atoi(hs); err == nil {
				media.Height = &h
			}

			// a reasonably sized icon is good enough
			if media.HasDims() && (*media.Width <= 512 || *media.Height <= 512) {
				break
			}
		}

		e.Provider.Icon = media
	}

	return nil
}
