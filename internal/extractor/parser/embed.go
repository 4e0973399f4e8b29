package parser

import (
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"

	"github.com/edgecomet/unfurl/pkg/embed"
)

// ExtraFields carries non-embed information discovered while scraping:
// a cache lifetime hint, a discovered oEmbed endpoint, and a web app
// manifest URL.
type ExtraFields struct {
	MaxAge   *int64
	Link     *OEmbedLink
	Manifest string
}

// ParseColor parses a CSS color expression into a 24-bit RGB value.
func ParseColor(s string) *uint32 {
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return nil
	}
	r, g, b, _ := c.RGBA255()
	v := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	return &v
}

func firstImage(e *embed.EmbedV1) *embed.Media {
	if len(e.Images) == 0 {
		e.Images = append(e.Images, embed.Media{})
	}
	return &e.Images[0]
}

func getAuthor(e *embed.EmbedV1) *embed.Author {
	if e.Author == nil {
		e.Author = &embed.Author{}
	}
	return e.Author
}

func getMedia(slot **embed.Media) *embed.Media {
	if *slot == nil {
		*slot = &embed.Media{}
	}
	return *slot
}

// authorScope reports whether the meta tag sits inside an itemscope
// describing a person, e.g. the schema YouTube uses for channel info.
func authorScope(scope *Scope) bool {
	if scope == nil {
		return false
	}
	return scope.ID == "author" || scope.Prop == "author" || strings.Contains(scope.Type, "Person")
}

func intAttr(s string) *int {
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	return nil
}

// ParseMetaToEmbed builds the initial embed profile from scraped HTML
// headers.
func ParseMetaToEmbed(e *embed.EmbedV1, headers []Header) ExtraFields {
	var extra ExtraFields

	type labelData struct {
		label string
		data  string
	}
	var misc [4]labelData

	iconMaxDim := 0

	for _, header := range headers {
		if meta := header.Meta; meta != nil {
			switch meta.Property {
			case "":
				if meta.Kind == PropertyTitle && e.Title == "" {
					e.Title = meta.Content
				}

			case "description", "og:description", "twitter:description":
				e.Description = CollapseNewlines(meta.Content)

			case "theme-color", "msapplication-TileColor":
				e.Color = ParseColor(meta.Content)

			case "og:site_name":
				e.Provider.Name = meta.Content

			case "og:url":
				e.Canonical = meta.Content

			case "title", "og:title", "twitter:title":
				e.Title = meta.Content

			case "name":
				if meta.Kind == PropertyItemProp && authorScope(meta.Scope) {
					getAuthor(e).Name = meta.Content
				}
			case "url":
				if meta.Kind == PropertyItemProp && authorScope(meta.Scope) {
					getAuthor(e).URL = meta.Content
				}
			case "dc:creator", "article:author", "book:author":
				getAuthor(e).Name = meta.Content

			// never let the twitter image overwrite og images
			case "twitter:image":
				if len(e.Images) == 0 || e.Images[0].URL == "" {
					firstImage(e).URL = meta.Content
				}

			case "og:image", "og:image:url", "og:image:secure_url":
				firstImage(e).URL = meta.Content
			case "og:video", "og:video:url", "og:video:secure_url":
				getMedia(&e.Video).URL = meta.Content
			case "og:audio", "og:audio:url", "og:audio:secure_url":
				getMedia(&e.Audio).URL = meta.Content

			case "og:image:width":
				firstImage(e).Width = intAttr(meta.Content)
			case "og:video:width":
				getMedia(&e.Video).Width = intAttr(meta.Content)
			case "music:duration":
				getMedia(&e.Audio).Width = intAttr(meta.Content)

			case "og:image:height":
				firstImage(e).Height = intAttr(meta.Content)
			case "og:video:height":
				getMedia(&e.Video).Height = intAttr(meta.Content)

			case "og:image:type":
				firstImage(e).Mime = meta.Content
			case "og:video:type":
				getMedia(&e.Video).Mime = meta.Content
			case "og:audio:type":
				getMedia(&e.Audio).Mime = meta.Content

			case "og:image:alt":
				firstImage(e).Description = meta.Content
			case "og:video:alt":
				getMedia(&e.Video).Description = meta.Content
			case "og:audio:alt":
				getMedia(&e.Audio).Description = meta.Content

			case "og:ttl":
				if n, err := strconv.ParseInt(meta.Content, 10, 64); err == nil {
					extra.MaxAge = &n
				}

			case "twitter:label1", "twitter:label2", "twitter:label3", "twitter:label4":
				misc[meta.Property[len(meta.Property)-1]-'1'].label = meta.Content
			case "twitter:data1", "twitter:data2", "twitter:data3", "twitter:data4":
				misc[meta.Property[len(meta.Property)-1]-'1'].data = meta.Content

			case "isFamilyFriendly":
				if meta.Content != "true" {
					e.Flags |= embed.FlagAdult
				}

			default:
				if strings.EqualFold(meta.Property, "rating") {
					ParseRating(e, meta.Content)
				}
			}
			continue
		}

		link := header.Link
		switch link.Rel {
		case RelIcon:
			if link.Sizes != nil {
				w, h := link.Sizes[0], link.Sizes[1]
				m := max(w, h)

				// prefer larger icons, up to a point
				if iconMaxDim >= m || (iconMaxDim != 0 && m > 256) {
					continue
				}
				iconMaxDim = m

				icon := getMedia(&e.Provider.Icon)
				if w > 0 {
					icon.Width = &w
				}
				if h > 0 {
					icon.Height = &h
				}
			} else if iconMaxDim > 0 {
				// a sized icon already won
				continue
			}

			getMedia(&e.Provider.Icon).URL = link.Href

		case RelCanonical:
			e.Canonical = link.Href

		case RelManifest:
			// without credentials a use-credentials manifest is unreachable
			if link.CrossOrigin != "use-credentials" {
				extra.Manifest = link.Href
			}

		case RelAlternate:
			if !strings.Contains(link.Type, "oembed") {
				continue
			}
			switch {
			case extra.Link == nil:
				format := OEmbedJSON
				if strings.Contains(link.Type, "xml") {
					format = OEmbedXML
				}
				extra.Link = &OEmbedLink{URL: link.Href, Title: link.Title, Format: format}
			case strings.Contains(link.Type, "json"):
				// JSON endpoints win over XML ones
				extra.Link = &OEmbedLink{URL: link.Href, Title: link.Title, Format: OEmbedJSON}
			}
		}
	}

	for _, m := range misc {
		if m.label != "" && m.data != "" && strings.EqualFold(m.label, "rating") {
			ParseRating(e, m.data)
		}
	}

	DetermineType(e)

	return extra
}

// ParseRating sets the adult flag when the rating value carries an adult
// marker. Additive across multiple rating tags.
func ParseRating(e *embed.EmbedV1, rating string) {
	if ContainsAdultRating(rating) {
		e.Flags |= embed.FlagAdult
	}
}

func mediaEmpty(m *embed.Media) bool {
	return m == nil || m.URL == ""
}

func hasImage(e *embed.EmbedV1) bool {
	for i := range e.Images {
		if e.Images[i].URL != "" {
			return true
		}
	}
	return false
}

// DetermineType recomputes the embed type from the populated media
// slots: images win over video, video over audio, audio over an HTML
// object. Article is never derived, only assigned.
func DetermineType(e *embed.EmbedV1) {
	switch {
	case hasImage(e):
		e.Type = embed.TypeImage
	case !mediaEmpty(e.Video):
		e.Type = embed.TypeVideo
	case !mediaEmpty(e.Audio):
		e.Type = embed.TypeAudio
	case !mediaEmpty(e.Object):
		e.Type = embed.TypeHTML
	case e.Type == embed.TypeArticle:
		// keep
	default:
		e.Type = embed.TypeLink
	}
}

// ParseOEmbedToEmbed layers an oEmbed response over the embed profile.
// oEmbed data generally wins over scraped meta tags, except for titles
// that are a bare prefix of the scraped one.
func ParseOEmbedToEmbed(e *embed.EmbedV1, o *OEmbed) ExtraFields {
	var extra ExtraFields

	// oEmbed content is not trustworthy enough to pass through raw
	o.DecodeHTMLEntities()

	switch o.Kind {
	case OEmbedPhoto:
		e.Type = embed.TypeImage
	case OEmbedVideo:
		e.Type = embed.TypeVideo
	case OEmbedRich:
		e.Type = embed.TypeHTML
	case OEmbedLinkType:
		e.Type = embed.TypeLink
	}

	if o.AuthorName != "" || o.AuthorURL != "" {
		author := getAuthor(e)
		if o.AuthorURL != "" {
			author.URL = o.AuthorURL
		}
		if o.AuthorName != "" {
			author.Name = o.AuthorName
		}
	}

	// QUIRK: some endpoints return a title that is just a truncation of
	// the meta tags title; keep the longer one
	if o.Title != "" && !strings.HasPrefix(e.Title, o.Title) {
		e.Title = o.Title
	}

	if o.ProviderName != "" {
		e.Provider.Name = o.ProviderName
	}
	if o.ProviderURL != "" {
		e.Provider.URL = o.ProviderURL
	}

	if e.Type == embed.TypeLink {
		DetermineType(e)
	}

	var media *embed.Media
	switch o.Kind {
	case OEmbedPhoto:
		e.Images = append(e.Images, embed.Media{})
		media = &e.Images[0]
	case OEmbedVideo:
		media = getMedia(&e.Video)
	default:
		media = getMedia(&e.Object)
	}

	mime := media.Mime
	overwrite := false

	if o.HTML != "" {
		if mime != "text/html" {
			if src := parseEmbedHTMLSrc(o.HTML); src != "" {
				media.URL = src
				mime = parseEmbedHTMLType(o.HTML)
				if mime == "" {
					mime = "text/html"
				}
				overwrite = true
			}
		}
	} else if o.URL != "" {
		media.URL = o.URL
		mime = ""
		overwrite = true
	}

	media.Mime = mime

	if overwrite {
		media.Width = o.Width.Int()
		media.Height = o.Height.Int()
	}

	if o.ThumbnailURL != "" {
		e.Thumb = &embed.Media{BasicMedia: embed.BasicMedia{
			URL:    o.ThumbnailURL,
			Width:  o.ThumbnailWidth.Int(),
			Height: o.ThumbnailHeight.Int(),
		}}
	}

	if o.CacheAge != nil {
		age := int64(*o.CacheAge)
		extra.MaxAge = &age
	}

	return extra
}

// parseEmbedHTMLSrc pulls the first absolute src URL out of an oEmbed
// html fragment, typically an iframe or embed element.
func parseEmbedHTMLSrc(html string) string {
	start := strings.Index(html, `src="http`)
	if start < 0 {
		return ""
	}
	start += len(`src="`)

	end := strings.IndexByte(html[start:], '"')
	if end < 0 {
		return ""
	}

	src := html[start : start+end]
	if !strings.Contains(src, "://") {
		return ""
	}
	return src
}

func parseEmbedHTMLType(html string) string {
	start := strings.Index(html, `type="`)
	if start < 0 {
		return ""
	}
	start += len(`type="`)

	end := strings.IndexByte(html[start:], '"')
	if end < 0 {
		return ""
	}

	ty := html[start : start+end]
	if !strings.ContainsRune(ty, '/') {
		return ""
	}
	return ty
}
