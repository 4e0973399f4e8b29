package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edgecomet/unfurl/pkg/pattern"
)

// ColorValue is a 24-bit RGB color accepted as "#rgb", "#rrggbb",
// "0xrrggbb" or a bare hex string.
type ColorValue uint32

func (c *ColorValue) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	raw = strings.TrimPrefix(raw, "#")
	raw = strings.TrimPrefix(raw, "0x")

	if len(raw) == 3 {
		// #rgb shorthand
		raw = string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
	}

	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}

	*c = ColorValue(v & 0xffffff)
	return nil
}

// RGB returns the color as a plain uint32.
func (c *ColorValue) RGB() *uint32 {
	if c == nil {
		return nil
	}
	v := uint32(*c)
	return &v
}

// rawSite is the TOML shape of a sites.* entry.
type rawSite struct {
	Color     *ColorValue    `toml:"color"`
	Pattern   string         `toml:"pattern"`
	Domains   []string       `toml:"domains"`
	UserAgent string         `toml:"user_agent"`
	Cookie    string         `toml:"cookie"`
	Fields    FieldSelectors `toml:"fields"`
}

// Site is a configured site: request customization plus matching rules.
type Site struct {
	Name  string
	Color *ColorValue

	// Pattern is matched against the cleaned domain when the domain set
	// does not contain it.
	Pattern *pattern.Pattern

	// Domains is the exact-match set, already lowercased.
	Domains map[string]struct{}

	// UserAgent is the resolved header value (user_agents references are
	// resolved at load time). Cookie is sent verbatim.
	UserAgent string
	Cookie    string

	Fields *FieldSelectors
}

func newSite(name string, raw rawSite, userAgents map[string]string) (*Site, error) {
	site := &Site{
		Name:    name,
		Color:   raw.Color,
		Cookie:  raw.Cookie,
		Domains: make(map[string]struct{}, len(raw.Domains)),
	}

	for _, d := range raw.Domains {
		site.Domains[strings.ToLower(d)] = struct{}{}
	}

	if raw.Pattern != "" {
		p, err := pattern.Compile(raw.Pattern)
		if err != nil {
			return nil, InvalidRegex(raw.Pattern, err)
		}
		site.Pattern = p
	}

	if ua := raw.UserAgent; ua != "" {
		if strings.HasPrefix(ua, "%") {
			resolved, ok := userAgents[ua]
			if !ok {
				return nil, InvalidUserAgent(ua)
			}
			ua = resolved
		}
		site.UserAgent = ua
	}

	if !raw.Fields.IsEmpty() {
		fields := raw.Fields
		site.Fields = &fields
	}

	return site, nil
}

// Matches reports whether the cleaned domain belongs to this site.
func (s *Site) Matches(domain string) bool {
	if _, ok := s.Domains[domain]; ok {
		return true
	}
	return s.Pattern.Match(domain)
}

// Matcher is a compiled allow_html / skip_oembed list: plain entries are
// domain patterns, %name entries reference a configured site.
type Matcher struct {
	patterns []*pattern.Pattern
	sites    []*Site
}

func newMatcher(entries []string, sites map[string]*Site) (*Matcher, error) {
	m := &Matcher{}

	for _, entry := range entries {
		if name, ok := strings.CutPrefix(entry, "%"); ok {
			site, ok := sites[name]
			if !ok {
				return nil, MissingSite(name)
			}
			m.sites = append(m.sites, site)
			continue
		}

		p, err := pattern.Compile(entry)
		if err != nil {
			return nil, InvalidRegex(entry, err)
		}
		m.patterns = append(m.patterns, p)
	}

	return m, nil
}

// Matches reports whether the cleaned domain is covered by the list.
func (m *Matcher) Matches(domain string) bool {
	if m == nil {
		return false
	}
	for _, s := range m.sites {
		if s.Matches(domain) {
			return true
		}
	}
	for _, p := range m.patterns {
		if p.Match(domain) {
			return true
		}
	}
	return false
}
