package parser

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
)

// OEmbedFormat is the wire format of an oEmbed endpoint.
type OEmbedFormat int

const (
	OEmbedJSON OEmbedFormat = 1
	OEmbedXML  OEmbedFormat = 2
)

// OEmbedLink is a discovered oEmbed endpoint, from either an HTTP Link
// header or a <link rel="alternate"> element.
type OEmbedLink struct {
	URL    string
	Title  string
	Format OEmbedFormat
}

// ParseLinkHeader extracts oEmbed endpoints from an RFC 8288 Link
// header. JSON endpoints sort before XML ones.
func ParseLinkHeader(header string) []OEmbedLink {
	var res []OEmbedLink

links:
	for _, raw := range strings.Split(header, ",") {
		parts := strings.Split(raw, ";")

		url := strings.TrimSpace(parts[0])
		if !strings.HasPrefix(url, "<http") || !strings.HasSuffix(url, ">") {
			continue
		}

		link := OEmbedLink{URL: url[1 : len(url)-1], Format: OEmbedJSON}

		for _, part := range parts[1:] {
			left, right, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue links
			}

			if left == "type" && strings.Contains(right, "xml") {
				link.Format = OEmbedXML
				continue
			}

			right = TrimQuotes(right)

			switch left {
			case "title":
				link.Title = right
			case "rel":
				if right != "alternate" {
					continue links
				}
			}
		}

		res = append(res, link)
	}

	sort.SliceStable(res, func(i, j int) bool { return res[i].Format < res[j].Format })

	return res
}

// OEmbedKind is the oEmbed resource type.
type OEmbedKind int

const (
	OEmbedUnknown OEmbedKind = iota
	OEmbedPhoto
	OEmbedVideo
	OEmbedLinkType
	OEmbedRich
)

func (k *OEmbedKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "photo":
		*k = OEmbedPhoto
	case "video":
		*k = OEmbedVideo
	case "link":
		*k = OEmbedLinkType
	case "rich":
		*k = OEmbedRich
	default:
		*k = OEmbedUnknown
	}
	return nil
}

// Int64 is an integer that endpoints serialize as either a number or a
// numeric string. Zero value means absent.
type Int64 struct {
	Value int64
	Set   bool
}

func (i *Int64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// some endpoints emit floats for pixel sizes
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		n = int64(f)
	}
	i.Value, i.Set = n, true
	return nil
}

// Int converts to the pointer form the embed model uses for dimensions.
func (i Int64) Int() *int {
	if !i.Set {
		return nil
	}
	n := int(i.Value)
	return &n
}

// oembedVersion accepts "1.0", 1, or 1.0 and rejects everything else.
type oembedVersion struct{}

func (oembedVersion) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(b), `"`) {
	case "1.0", "1":
		return nil
	}
	return fmt.Errorf("invalid oEmbed version: %s", b)
}

// OEmbed is a version 1.0 oEmbed response.
type OEmbed struct {
	Version oembedVersion `json:"version"`
	Kind    OEmbedKind    `json:"type"`

	Title        string `json:"title,omitempty"`
	AuthorName   string `json:"author_name,omitempty"`
	AuthorURL    string `json:"author_url,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	ProviderURL  string `json:"provider_url,omitempty"`

	CacheAge        *uint64 `json:"cache_age,omitempty"`
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	ThumbnailWidth  Int64   `json:"thumbnail_width,omitempty"`
	ThumbnailHeight Int64   `json:"thumbnail_height,omitempty"`

	URL    string `json:"url,omitempty"`
	HTML   string `json:"html,omitempty"`
	Width  Int64  `json:"width,omitempty"`
	Height Int64  `json:"height,omitempty"`
}

// ParseOEmbed decodes a JSON oEmbed response, validating the version.
func ParseOEmbed(body []byte) (*OEmbed, error) {
	var o OEmbed
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, err
	}
	if !o.IsValid() {
		return nil, errors.New("incomplete oEmbed response")
	}
	return &o, nil
}

// ParseOEmbedXML decodes the XML form some older endpoints still serve.
func ParseOEmbedXML(body []byte) (*OEmbed, error) {
	var raw struct {
		XMLName         xml.Name `xml:"oembed"`
		Version         string   `xml:"version"`
		Type            string   `xml:"type"`
		Title           string   `xml:"title"`
		AuthorName      string   `xml:"author_name"`
		AuthorURL       string   `xml:"author_url"`
		ProviderName    string   `xml:"provider_name"`
		ProviderURL     string   `xml:"provider_url"`
		CacheAge        *uint64  `xml:"cache_age"`
		ThumbnailURL    string   `xml:"thumbnail_url"`
		ThumbnailWidth  string   `xml:"thumbnail_width"`
		ThumbnailHeight string   `xml:"thumbnail_height"`
		URL             string   `xml:"url"`
		HTML            string   `xml:"html"`
		Width           string   `xml:"width"`
		Height          string   `xml:"height"`
	}
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	switch raw.Version {
	case "1.0", "1":
	default:
		return nil, fmt.Errorf("invalid oEmbed version: %q", raw.Version)
	}

	o := &OEmbed{
		Title:           raw.Title,
		AuthorName:      raw.AuthorName,
		AuthorURL:       raw.AuthorURL,
		ProviderName:    raw.ProviderName,
		ProviderURL:     raw.ProviderURL,
		CacheAge:        raw.CacheAge,
		ThumbnailURL:    raw.ThumbnailURL,
		ThumbnailWidth:  xmlInt(raw.ThumbnailWidth),
		ThumbnailHeight: xmlInt(raw.ThumbnailHeight),
		URL:             raw.URL,
		HTML:            raw.HTML,
		Width:           xmlInt(raw.Width),
		Height:          xmlInt(raw.Height),
	}

	switch raw.Type {
	case "photo":
		o.Kind = OEmbedPhoto
	case "video":
		o.Kind = OEmbedVideo
	case "link":
		o.Kind = OEmbedLinkType
	case "rich":
		o.Kind = OEmbedRich
	}

	if !o.IsValid() {
		return nil, errors.New("incomplete oEmbed response")
	}
	return o, nil
}

func xmlInt(s string) Int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return Int64{}
	}
	return Int64{Value: n, Set: true}
}

// IsValid checks the fields the declared type requires.
func (o *OEmbed) IsValid() bool {
	hasDims := o.Width.Set && o.Height.Set

	switch o.Kind {
	case OEmbedVideo, OEmbedRich:
		return o.HTML != "" && hasDims
	case OEmbedPhoto:
		return o.URL != "" && hasDims
	}
	return true
}

// DecodeHTMLEntities unescapes the text fields endpoints are known to
// double-encode.
func (o *OEmbed) DecodeHTMLEntities() {
	o.Title = html.UnescapeString(o.Title)
	o.AuthorName = html.UnescapeString(o.AuthorName)
	o.AuthorURL = html.UnescapeString(o.AuthorURL)
}
