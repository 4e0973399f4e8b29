package parser

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// MetaProperty distinguishes how a meta header named its property.
type MetaProperty int

const (
	PropertyName MetaProperty = iota
	PropertyProperty
	PropertyDescription
	PropertyItemProp
	// PropertyTitle marks the synthetic header produced from the
	// document <title> element.
	PropertyTitle
)

// LinkRel is the recognized subset of link rel values.
type LinkRel int

const (
	RelNone LinkRel = iota
	RelAlternate
	RelCanonical
	RelExternal
	RelIcon
	RelLicense
	RelShortlink
	RelManifest
)

// Scope is the enclosing itemscope of a microdata meta tag, from a div
// or span carrying itemscope.
type Scope struct {
	ID   string
	Type string
	Prop string
}

// Meta is a single scraped meta header.
type Meta struct {
	Content  string
	Kind     MetaProperty
	Property string
	Scope    *Scope
}

// Link is a scraped <link> element.
type Link struct {
	Href        string
	Rel         LinkRel
	Type        string
	Title       string
	Sizes       *[2]int
	CrossOrigin string
}

// Header is either a Meta or a Link; exactly one field is non-nil.
type Header struct {
	Meta *Meta
	Link *Link
}

// ParseMeta scrapes meta, title, link, and itemscope headers from an
// HTML document. The input may be truncated mid-document; the tokenizer
// recovers what it can.
func ParseMeta(input string) []Header {
	var (
		headers []Header
		scope   *Scope
	)

	z := html.NewTokenizer(strings.NewReader(input))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return headers
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		name, hasAttr := z.TagName()

		switch string(name) {
		case "title":
			if z.Next() == html.TextToken {
				headers = append(headers, Header{Meta: &Meta{
					Content: strings.TrimSpace(string(z.Text())),
					Kind:    PropertyTitle,
					Scope:   scope,
				}})
			}

		case "meta":
			meta := Meta{Kind: PropertyProperty, Scope: scope}
			eachAttr(z, hasAttr, func(key, value string) {
				switch {
				case key == "content" || key == "href":
					meta.Content = value
				case key == "name":
					meta.Kind, meta.Property = PropertyName, value
				case key == "property":
					meta.Kind, meta.Property = PropertyProperty, value
				case key == "description":
					meta.Kind, meta.Property = PropertyDescription, value
				case strings.EqualFold(key, "itemprop"):
					meta.Kind, meta.Property = PropertyItemProp, value
				}
			})
			if meta.Content != "" && meta.Property != "" {
				headers = append(headers, Header{Meta: &meta})
			}

		case "link":
			var (
				link     Link
				itemprop string
				content  string
			)
			eachAttr(z, hasAttr, func(key, value string) {
				switch {
				case key == "href":
					link.Href = value
				case key == "type":
					link.Type = value
				case key == "title":
					link.Title = value
				case key == "crossorigin":
					link.CrossOrigin = value
				case key == "rel":
					link.Rel = parseRel(value)
				case key == "sizes":
					link.Sizes = parseSizes(value)
				case strings.EqualFold(key, "itemprop"):
					itemprop = value
				case key == "content":
					content = value
				}
			})
			switch {
			// some documents abuse <link itemprop> or <link content> as
			// meta tags; honor them as such
			case itemprop != "" && link.Href != "":
				headers = append(headers, Header{Meta: &Meta{
					Content:  link.Href,
					Kind:     PropertyItemProp,
					Property: itemprop,
					Scope:    scope,
				}})
			case content != "":
				// property-less, dropped below
			case link.Href != "":
				headers = append(headers, Header{Link: &link})
			}

		case "div", "span":
			var (
				next        Scope
				isItemscope bool
			)
			eachAttr(z, hasAttr, func(key, value string) {
				switch {
				case strings.EqualFold(key, "itemscope"):
					isItemscope = true
				case strings.EqualFold(key, "itemid"):
					next.ID = value
				case strings.EqualFold(key, "itemtype"):
					next.Type = value
				case strings.EqualFold(key, "itemprop"):
					next.Prop = value
				}
			})
			if isItemscope {
				s := next
				scope = &s
			}
		}
	}
}

func eachAttr(z *html.Tokenizer, hasAttr bool, fn func(key, value string)) {
	for hasAttr {
		key, value, more := z.TagAttr()
		fn(string(key), TrimQuotes(string(value)))
		hasAttr = more
	}
}

func parseRel(value string) LinkRel {
	switch value {
	case "alternate":
		return RelAlternate
	case "canonical":
		return RelCanonical
	case "external":
		return RelExternal
	case "license":
		return RelLicense
	case "shortlink":
		return RelShortlink
	case "manifest":
		return RelManifest
	case "icon", "shortcut icon", "apple-touch-icon":
		return RelIcon
	}
	return RelNone
}

func parseSizes(value string) *[2]int {
	var sizes [2]int
	for i, dim := range strings.SplitN(value, "x", 2) {
		if n, err := strconv.Atoi(dim); err == nil {
			sizes[i] = n
		}
	}
	return &sizes
}
