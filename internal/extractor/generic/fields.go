package generic

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// scrapeFields applies a site's fallback selectors to the document,
// filling only the embed parts regular metadata left empty.
func scrapeFields(body string, e *embed.EmbedV1, fields *config.FieldSelectors) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return
	}

	get := func(sel *config.Selector) (string, bool) {
		if sel == nil || sel.Query == "" {
			return "", false
		}
		node := doc.Find(sel.Query).First()
		if node.Length() == 0 {
			return "", false
		}
		if sel.Attribute != "" {
			return node.Attr(sel.Attribute)
		}
		text := strings.TrimSpace(node.Text())
		return text, text != ""
	}

	if e.Title == "" {
		if title, ok := get(fields.Title); ok {
			e.Title = title
		}
	}

	if e.Description == "" {
		if description, ok := get(fields.Description); ok {
			e.Description = description
		}
	}

	switch {
	case len(e.Images) == 0:
		if imageURL, ok := get(fields.ImageURL); ok {
			media := embed.NewMedia(imageURL)
			fillImage(&media.BasicMedia, fields, get)
			e.Images = append(e.Images, *media)
		}
	default:
		img := &e.Images[0]
		if img.Description == "" || img.Width == nil || img.Height == nil {
			fillImage(&img.BasicMedia, fields, get)
		}
	}

	if e.Author == nil {
		if name, ok := get(fields.AuthorName); ok {
			author := &embed.Author{Name: name}
			if authorURL, ok := get(fields.AuthorURL); ok {
				author.URL = authorURL
			}
			if iconURL, ok := get(fields.AuthorIcon); ok {
				author.Icon = embed.NewMedia(iconURL)
			}
			e.Author = author
		}
	} else {
		if e.Author.URL == "" {
			if authorURL, ok := get(fields.AuthorURL); ok {
				e.Author.URL = authorURL
			}
		}
		if e.Author.Icon == nil {
			if iconURL, ok := get(fields.AuthorIcon); ok {
				e.Author.Icon = embed.NewMedia(iconURL)
			}
		}
	}

	if e.Provider.Name == "" {
		if name, ok := get(fields.ProviderName); ok {
			e.Provider.Name = name
		}
	}
	if e.Provider.URL == "" {
		if providerURL, ok := get(fields.ProviderURL); ok {
			e.Provider.URL = providerURL
		}
	}
	if e.Provider.Icon == nil {
		if iconURL, ok := get(fields.ProviderIcon); ok {
			e.Provider.Icon = embed.NewMedia(iconURL)
		}
	}
}

func fillImage(img *embed.BasicMedia, fields *config.FieldSelectors, get func(*config.Selector) (string, bool)) {
	if img.Description == "" {
		if alt, ok := get(fields.ImageAlt); ok {
			img.Description = alt
		}
	}
	if img.Width == nil {
		if ws, ok := get(fields.ImageWidth); ok {
			if w, err := strconv.Atoi(ws); err == nil {
				img.Width = &w
			}
		}
	}
	if img.Height == nil {
		if hs, ok := get(fields.ImageHeight); ok {
			if h, err := strconv.Atoi(hs); err == nil {
				img.Height = &h
			}
		}
	}
}
