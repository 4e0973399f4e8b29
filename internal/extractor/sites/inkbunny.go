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

// Inkbunny resolves submission pages through api_search.php, which
// requires a logged-in session id.
type Inkbunny struct {
	sid string

	// api is the API origin, overridable in tests.
	api string
}

// NewInkbunny builds the extractor when an [extractors.inkbunny] table
// with a sid is configured.
func NewInkbunny(cfg *config.Config) (extractor.Extractor, error) {
	opts, ok := cfg.Extractor("inkbunny")
	if !ok {
		return nil, nil
	}

	sid := opts["sid"]
	if sid == "" {
		return nil, missingField("inkbunny.sid")
	}

	return &Inkbunny{sid: sid, api: "https://inkbunny.net"}, nil
}

func (*Inkbunny) Name() string { return "inkbunny" }

func (*Inkbunny) Matches(u *url.URL) bool {
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "inkbunny.net":
		return submissionID(u.Path) != ""
	}
	return false
}

func (*Inkbunny) Setup(context.Context, *extractor.State) error { return nil }

// submissionID extracts the numeric id from a /s/{id} path; the segment
// may carry a trailing page suffix like 123456-p2-.
func submissionID(path string) string {
	id := strings.TrimPrefix(path, "/s/")
	if id == path {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			id = id[:i]
			break
		}
	}
	return id
}

type inkbunnyFile struct {
	FileURLFull string `json:"file_url_full"`
	FileURLPrev string `json:"file_url_preview"`
	MimeType    string `json:"mimetype"`
	Width       string `json:"full_size_x"`
	Height      string `json:"full_size_y"`
}

type inkbunnySubmission struct {
	Title    string `json:"title"`
	Username string `json:"username"`

	// RatingID is 0 for General; 1 Mature, 2 Adult.
	RatingID string `json:"rating_id"`

	FileURLFull string `json:"file_url_full"`
	MimeType    string `json:"mimetype"`
	Width       string `json:"full_size_x"`
	Height      string `json:"full_size_y"`

	Files []inkbunnyFile `json:"files"`
}

type inkbunnySearch struct {
	Submissions []inkbunnySubmission `json:"submissions"`
}

func (x *Inkbunny) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	id := submissionID(u.Path)
	if id == "" {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	query := url.Values{
		"sid":            {x.sid},
		"submission_ids": {id},
		"output_mode":    {"json"},
	}

	var search inkbunnySearch
	if err := getJSON(ctx, state, x.api+"/api_search.php?"+query.Encode(), nil, &search); err != nil {
		return embed.Expiring{}, err
	}
	if len(search.Submissions) == 0 {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}
	sub := search.Submissions[0]

	fileURL := sub.FileURLFull
	mime := sub.MimeType
	width, height := sub.Width, sub.Height
	if fileURL == "" && len(sub.Files) > 0 {
		file := sub.Files[0]
		fileURL = file.FileURLFull
		mime, width, height = file.MimeType, file.Width, file.Height
	}
	if fileURL == "" {
		return embed.Expiring{}, extractor.Failure(http.StatusNotFound)
	}

	e := embed.New()
	e.URL = u.Scheme + "://" + u.Host + "/s/" + id
	e.Title = sub.Title
	e.Color = rgb(0x73d216)

	if sub.RatingID != "" && sub.RatingID != "0" {
		e.Flags |= embed.FlagAdult
	}

	if sub.Username != "" {
		e.Author = &embed.Author{
			Name: sub.Username,
			URL:  "https://inkbunny.net/" + sub.Username,
		}
	}

	media := embed.NewMedia(fileURL)
	media.Mime = mime
	if media.Mime == "" {
		media.Mime = parser.GuessMime(fileURL)
	}
	if w := intAttr(width); w != nil {
		media.Width = w
	}
	if h := intAttr(height); h != nil {
		media.Height = h
	}

	switch {
	case strings.HasPrefix(media.Mime, "image"):
		e.Images = append(e.Images, *media)
	case strings.HasPrefix(media.Mime, "video"):
		e.Video = media
	case strings.HasPrefix(media.Mime, "audio"):
		e.Audio = media
	default:
		return embed.Expiring{}, extractor.ErrInvalidMimeType
	}

	e.Provider.Name = "Inkbunny"
	e.Provider.URL = "https://inkbunny.net"
	e.Provider.Icon = embed.NewMedia("https://inkbunny.net/images80/favicon.ico")

	age := fourHours
	return generic.Finalize(state, e, &age), nil
}

func intAttr(s string) *int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil
		}
		n = n*10 + int(s[i]-'0')
	}
	if s == "" || n == 0 {
		return nil
	}
	return &n
}
