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
	"github.com/edgecomet/unfurl/pkg/embed"
)

// Imgur resolves image, album and gallery pages through the v3 API.
type Imgur struct {
	clientID string

	// api is the API origin, overridable in tests.
	api string
}

// NewImgur builds the extractor when an [extractors.imgur] table with a
// client_id is configured.
func NewImgur(cfg *config.Config) (extractor.Extractor, error) {
	opts, ok := cfg.Extractor("imgur")
	if !ok {
		return nil, nil
	}

	clientID := opts["client_id"]
	if clientID == "" {
		return nil, missingField("imgur.client_id")
	}

	return &Imgur{clientID: clientID, api: "https://api.imgur.com"}, nil
}

func (*Imgur) Name() string { return "imgur" }

// imgurBadPaths are known path segments that cannot be embedded.
var imgurBadPaths = map[string]bool{
	"user": true, "upload": true, "signin": true, "emerald": true,
	"vidgif": true, "memegen": true, "apps": true, "search": true,
}

// imgurID splits an imgur path into the asset id and the API route
// serving it. Post titles and file extensions are shed from the id.
func imgurID(path string) (id, api string, ok bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	switch segments[0] {
	case "gallery", "a":
		if len(segments) < 2 || segments[1] == "" {
			return "", "", false
		}
		id = segments[1]
		api = "gallery/album"
		if segments[0] == "a" {
			api = "album"
		}
	case "":
		return "", "", false
	default:
		if imgurBadPaths[segments[0]] {
			return "", "", false
		}
		id, api = segments[0], "image"
	}

	// strip a file extension if present
	id, _, _ = strings.Cut(id, ".")

	// urls contain post titles now; the id is the last dash segment
	if i := strings.LastIndexByte(id, '-'); i >= 0 {
		id = id[i+1:]
	}

	if id == "" {
		return "", "", false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return "", "", false
		}
	}
	return id, api, true
}

func (*Imgur) Matches(u *url.URL) bool {
	switch u.Hostname() {
	case "imgur.com", "i.imgur.com", "www.imgur.com":
		_, _, ok := imgurID(u.Path)
		return ok
	}
	return false
}

func (*Imgur) Setup(context.Context, *extractor.State) error { return nil }

type imgurImage struct {
	ID     string `json:"id"`
	Mime   string `json:"type"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
	Link   string `json:"link"`
	MP4    string `json:"mp4"`
}

type imgurData struct {
	imgurImage

	IsAlbum     bool         `json:"is_album"`
	IsGallery   bool         `json:"is_gallery"`
	Images      []imgurImage `json:"images"`
	ImagesCount int          `json:"images_count"`
	Cover       string       `json:"cover"`

	Title       string `json:"title"`
	Description string `json:"description"`
	NSFW        *bool  `json:"nsfw"`

	AdConfig *struct {
		NSFWScore float64 `json:"nsfw_score"`
	} `json:"ad_config"`
}

type imgurResult struct {
	Success bool       `json:"success"`
	Data    *imgurData `json:"data"`
}

func (x *Imgur) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	id, api, ok := imgurID(u.Path)
	if !ok {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	var result imgurResult
	err := getJSON(ctx, state, fmt.Sprintf("%s/3/%s/%s", x.api, api, id), func(req *http.Request) {
		req.Header.Set("Authorization", "Client-ID "+x.clientID)
	}, &result)
	if err != nil {
		return embed.Expiring{}, err
	}
	if !result.Success || result.Data == nil {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}
	data := result.Data

	images := []imgurImage{data.imgurImage}
	if data.IsAlbum || data.IsGallery {
		images = data.Images
		if data.Cover != "" {
			for i := range images {
				if images[i].ID == data.Cover {
					images = images[i : i+1]
					break
				}
			}
		}
	}
	if len(images) == 0 || images[0].Link == "" {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	e := embed.New()

	numMedia := 0
	for i := range images {
		if numMedia >= state.Config.Limits.MaxImages {
			break
		}
		img := &images[i]

		media := embed.NewMedia(addNoRedirect(img.Link))
		media.Width, media.Height = img.Width, img.Height
		if strings.Contains(img.Mime, "/") {
			media.Mime = img.Mime
		}

		if strings.HasPrefix(media.Mime, "video") {
			// one video takes over the whole embed
			e.Images = nil

			if img.MP4 != "" && strings.HasSuffix(media.Mime, "webm") {
				alt := media.BasicMedia
				alt.URL = addNoRedirect(img.MP4)
				alt.Mime = "video/mp4"
				media.Alternates = append(media.Alternates, alt)
			}
			e.Video = media
			numMedia = 1
			break
		}

		e.Images = append(e.Images, *media)
		numMedia++
	}

	if data.NSFW != nil && *data.NSFW || data.AdConfig != nil && data.AdConfig.NSFWScore > 0.75 {
		e.Flags |= embed.FlagAdult
	}

	e.URL = pageURL(u)
	e.Title = data.Title
	e.Description = data.Description
	e.Color = rgb(0x85bf25)

	e.Provider.Name = "imgur"
	e.Provider.URL = "https://imgur.com"
	e.Provider.Icon = embed.NewMedia("https://s.imgur.com/images/favicon.png")

	if remaining := data.ImagesCount - numMedia; remaining > 0 {
		noun := "files"
		if remaining == 1 {
			noun = "file"
		}
		e.Footer = &embed.Footer{Text: fmt.Sprintf("and %d more %s", remaining, noun)}
	}

	age := fourHours
	return generic.Finalize(state, e, &age), nil
}

// addNoRedirect keeps imgur from bouncing direct media links to the
// page form.
func addNoRedirect(link string) string {
	if strings.HasSuffix(link, "?noredirect") {
		return link
	}
	return link + "?noredirect"
}
