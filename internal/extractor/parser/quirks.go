package parser

import (
	"mime"
	"net/url"
	"strings"

	"github.com/edgecomet/unfurl/pkg/embed"
)

// ResolveRelative rewrites every relative media URL against the page
// origin. Unresolvable URLs are emptied so normalization drops them.
func ResolveRelative(base *url.URL, e *embed.EmbedV1) {
	origin := base.Scheme + "://" + base.Host

	e.VisitMedia(func(m *embed.BasicMedia) {
		if strings.HasPrefix(m.URL, "https://") || strings.HasPrefix(m.URL, "http://") {
			return
		}
		if m.URL == "" {
			return
		}

		old := m.URL
		var resolved string

		switch {
		// broken templating sometimes renders "https://" as "undefined//"
		case strings.HasPrefix(old, "undefined//"):
			resolved = base.Scheme + "://" + strings.TrimPrefix(old, "undefined//")
		case strings.HasPrefix(old, "//"):
			resolved = base.Scheme + ":" + old
		case strings.HasPrefix(old, "."):
			// dot-relative paths resolve against the base path, with
			// dot segments removed
			if ref, err := url.Parse(old); err == nil {
				m.URL = base.ResolveReference(ref).String()
			} else {
				m.URL = ""
			}
			return
		case strings.HasPrefix(old, "/"):
			resolved = origin + old
		default:
			resolved = origin + "/" + old
		}

		if u, err := url.Parse(resolved); err == nil {
			m.URL = u.String()
		} else {
			m.URL = ""
		}
	})
}

// FixEmbed is the final cleanup pass: it drops invalid or redundant
// media, relegates tiny lone images to thumbnails, clamps text lengths,
// guesses missing mime types, and recomputes the embed type.
func FixEmbed(e *embed.EmbedV1) {
	// drop images introduced by bad embeds; only mime-confirmed images
	// survive
	kept := e.Images[:0]
	for _, img := range e.Images {
		if strings.HasPrefix(img.Mime, "image") {
			kept = append(kept, img)
		}
	}
	e.Images = kept
	if len(e.Images) == 0 {
		e.Images = nil
	}

	if e.Object != nil && e.Object.Mime != "" && !strings.HasPrefix(e.Object.Mime, "text/html") {
		e.Object = nil
	}

	for i := range e.Fields {
		if img := e.Fields[i].Img; img != nil && img.Mime != "" && !strings.HasPrefix(img.Mime, "image") {
			e.Fields[i].Img = nil
		}
	}

	if e.Canonical != "" && e.Canonical == e.URL {
		e.Canonical = ""
	}

	if e.Title != "" && e.Title == e.Description {
		e.Description = ""
	}

	if e.Thumb != nil {
		for i := range e.Images {
			if e.Images[i].URL == e.Thumb.URL {
				e.Thumb = nil
				break
			}
		}
	}

	if e.Author.IsEmpty() {
		e.Author = nil
	}

	fields := e.Fields[:0]
	for _, f := range e.Fields {
		if !f.IsEmpty() {
			fields = append(fields, f)
		}
	}
	e.Fields = fields
	if len(e.Fields) == 0 {
		e.Fields = nil
	}

	switch {
	case len(e.Images) == 1:
		img := &e.Images[0]
		// a single tiny image works better as a thumbnail
		if img.HasDims() && *img.Width <= 320 && *img.Height <= 320 {
			thumb := e.Images[0]
			e.Thumb = &thumb
			e.Images = nil
			if e.Type == embed.TypeImage {
				e.Type = embed.TypeLink
			}
		}
	case len(e.Images) == 0 && e.Type == embed.TypeImage:
		e.Type = embed.TypeLink
	}

	// alt-text identical to the description is noise
	if e.Description != "" {
		desc := e.Description
		e.VisitMedia(func(m *embed.BasicMedia) {
			if m.Description == desc {
				m.Description = ""
			}
		})
	}

	e.NormalizeMedia()

	// slots that ended up URL-less (e.g. a width meta tag without the
	// matching url tag) are dead weight
	if e.Object != nil && e.Object.URL == "" {
		e.Object = nil
	}
	if e.Audio != nil && e.Audio.URL == "" {
		e.Audio = nil
	}
	if e.Video != nil && e.Video.URL == "" {
		e.Video = nil
	}
	if e.Thumb != nil && e.Thumb.URL == "" {
		e.Thumb = nil
	}

	e.VisitMedia(func(m *embed.BasicMedia) {
		m.Description = TrimText(m.Description, 512)

		if m.Mime == "" {
			if mt := mimeFromURL(m.URL); mt != "" {
				m.Mime = mt
			}
		}
	})

	e.Title = TrimText(e.Title, 1024)
	e.Description = TrimText(e.Description, 2048)
	e.Provider.Name = TrimText(e.Provider.Name, 196)
	if e.Author != nil {
		e.Author.Name = TrimText(e.Author.Name, 196)
	}

	DetermineType(e)
}

// mediaExtMimes covers the media extensions the platform mime database
// cannot be relied on to know.
var mediaExtMimes = map[string]string{
	".avif": "image/avif",
	".bmp":  "image/bmp",
	".flac": "audio/flac",
	".gif":  "image/gif",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".m4a":  "audio/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".wav":  "audio/wav",
	".webm": "video/webm",
	".webp": "image/webp",
}

// GuessMime infers a mime type from the URL's file extension, or ""
// when the extension is absent or unrecognized.
func GuessMime(rawURL string) string {
	return mimeFromURL(rawURL)
}

func mimeFromURL(rawURL string) string {
	dot := strings.LastIndexByte(rawURL, '.')
	if dot < 0 {
		return ""
	}
	ext := rawURL[dot:]
	if strings.ContainsAny(ext, "/?#") {
		return ""
	}

	if mt, ok := mediaExtMimes[strings.ToLower(ext)]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		mt, _, _ = strings.Cut(mt, ";")
		return mt
	}
	return ""
}
