package generic

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	// header-only dimension sniffing for the formats pages embed
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// ResolveMedia fills in missing media metadata by probing each URL:
// images get a partial GET to sniff dimensions, HTML objects a HEAD to
// confirm their mime type. Probes run concurrently and failures leave
// the media as scraped.
func ResolveMedia(ctx context.Context, state *extractor.State, site *config.Site, e *embed.EmbedV1) {
	var g errgroup.Group

	probe := func(m *embed.Media, headOnly bool) {
		g.Go(func() error {
			resolveOne(ctx, state, site, m, headOnly)
			return nil
		})
	}

	for i := range e.Images {
		probe(&e.Images[i], false)
	}
	if e.Thumb != nil {
		probe(e.Thumb, false)
	}
	if e.Object != nil {
		probe(e.Object, true)
	}
	if e.Footer != nil && e.Footer.Icon != nil {
		probe(e.Footer.Icon, false)
	}
	if e.Author != nil && e.Author.Icon != nil {
		probe(e.Author.Icon, false)
	}
	for i := range e.Fields {
		if e.Fields[i].Img != nil {
			probe(e.Fields[i].Img, true)
		}
	}

	g.Wait()
}

func resolveOne(ctx context.Context, state *extractor.State, site *config.Site, m *embed.Media, headOnly bool) {
	// dimensions already known
	if !headOnly && (m.Width != nil || m.Height != nil) {
		return
	}
	if m.URL == "" || strings.HasPrefix(m.URL, ".") {
		return
	}

	method := http.MethodGet
	if headOnly {
		method = http.MethodHead
	}

	req, err := state.NewRequest(ctx, method, m.URL)
	if err != nil {
		return
	}
	extractor.ApplySite(req, site)

	resp, err := state.Fetch(req, 2)
	if err != nil {
		return
	}
	defer extractor.DrainAndClose(resp)

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return
	}
	m.Mime = mime

	if !headOnly && strings.HasPrefix(mime, "image") {
		// the header prefix is enough to read out the dimensions
		body, err := extractor.ReadBytes(resp, state.Config.Limits.MaxMediaSize/2)
		if err != nil {
			return
		}
		if w, h, ok := sniffImageSize(body); ok {
			m.Width, m.Height = &w, &h
		}
	}
}

// sniffImageSize decodes just the image header; truncated bodies are
// fine as long as the header made it through.
func sniffImageSize(data []byte) (w, h int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
