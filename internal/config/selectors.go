package config

import "strings"

// Selector is a simplified CSS selector with an optional attribute to read
// instead of the element text, written as "div.title < content".
type Selector struct {
	Query     string
	Attribute string
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (s *Selector) UnmarshalText(text []byte) error {
	raw := string(text)

	query := raw
	attribute := ""

	// the attribute suffix is everything after the last '<', unless it
	// looks like part of a quoted selector
	if idx := strings.LastIndex(raw, "<"); idx != -1 {
		tail := raw[idx+1:]
		if !strings.ContainsAny(tail, `'"`) {
			query = raw[:idx]
			attribute = strings.TrimSpace(tail)
		}
	}

	s.Query = strings.TrimSpace(query)
	s.Attribute = attribute
	return nil
}

// FieldSelectors are per-site fallback selectors applied to the fetched
// document when regular metadata left the corresponding embed part empty.
type FieldSelectors struct {
	Title       *Selector `toml:"title"`
	Description *Selector `toml:"description"`

	ImageURL    *Selector `toml:"image_url"`
	ImageAlt    *Selector `toml:"image_alt"`
	ImageWidth  *Selector `toml:"image_width"`
	ImageHeight *Selector `toml:"image_height"`

	AuthorName *Selector `toml:"author_name"`
	AuthorURL  *Selector `toml:"author_url"`
	AuthorIcon *Selector `toml:"author_icon"`

	ProviderName *Selector `toml:"provider_name"`
	ProviderURL  *Selector `toml:"provider_url"`
	ProviderIcon *Selector `toml:"provider_icon"`
}

// IsEmpty reports whether no selector is configured.
func (f *FieldSelectors) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Title == nil && f.Description == nil &&
		f.ImageURL == nil && f.ImageAlt == nil &&
		f.ImageWidth == nil && f.ImageHeight == nil &&
		f.AuthorName == nil && f.AuthorURL == nil && f.AuthorIcon == nil &&
		f.ProviderName == nil && f.ProviderURL == nil && f.ProviderIcon == nil
}
