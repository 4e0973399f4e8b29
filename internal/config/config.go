// Package config loads and validates the service TOML configuration.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/edgecomet/unfurl/internal/common/urlutil"
)

const (
	DefaultMaxRedirects = 2
	DefaultCacheSize    = 1024
	DefaultTimeout      = 4 * time.Second

	// DefaultBodyLimit bounds html/xml/media reads at 1 MiB.
	DefaultBodyLimit = 1 << 20

	DefaultMaxImages = 4
)

// Limits bounds how much of a response body each parser may consume.
type Limits struct {
	MaxHTMLSize  int64 `toml:"max_html_size"`
	MaxXMLSize   int64 `toml:"max_xml_size"`
	MaxMediaSize int64 `toml:"max_media_size"`

	// MaxImages caps how many images multi-image extractors keep.
	MaxImages int `toml:"max_images"`
}

// CacheTier names a storage backend and its options. Tier order follows
// the declaration order of cache.* tables in the config file.
type CacheTier struct {
	Backend string
	Options map[string]string
}

// raw is the direct TOML shape before validation and compilation.
type raw struct {
	MaxRedirects *int   `toml:"max_redirects"`
	CacheSize    *int   `toml:"cache_size"`
	Timeout      *int64 `toml:"timeout"`
	Signed       *bool  `toml:"signed"`
	ResolveMedia *bool  `toml:"resolve_media"`

	MetricsAddress string `toml:"metrics_address"`

	Prefixes   []string `toml:"prefixes"`
	AllowHTML  []string `toml:"allow_html"`
	SkipOembed []string `toml:"skip_oembed"`

	Limits     Limits                       `toml:"limits"`
	UserAgents map[string]string            `toml:"user_agents"`
	Sites      map[string]rawSite           `toml:"sites"`
	Extractors map[string]map[string]string `toml:"extractors"`
	Cache      map[string]map[string]string `toml:"cache"`
}

// Config is the validated runtime configuration.
type Config struct {
	MaxRedirects int
	CacheSize    int
	Timeout      time.Duration
	Signed       bool
	ResolveMedia bool

	MetricsAddress string

	Prefixes []string
	Limits   Limits

	UserAgents map[string]string
	Extractors map[string]map[string]string

	Sites     map[string]*Site
	siteNames []string

	AllowHTML  *Matcher
	SkipOembed *Matcher

	CacheTiers []CacheTier
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a TOML config document.
func Parse(data []byte) (*Config, error) {
	var r raw
	md, err := toml.Decode(string(data), &r)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := &Config{
		MaxRedirects: DefaultMaxRedirects,
		CacheSize:    DefaultCacheSize,
		Timeout:      DefaultTimeout,
		Signed:       true,
		ResolveMedia: true,

		MetricsAddress: r.MetricsAddress,

		Prefixes:   r.Prefixes,
		Limits:     r.Limits,
		UserAgents: r.UserAgents,
		Extractors: r.Extractors,
	}

	if r.MaxRedirects != nil {
		cfg.MaxRedirects = *r.MaxRedirects
	}
	if r.CacheSize != nil {
		cfg.CacheSize = *r.CacheSize
	}
	if r.Timeout != nil {
		cfg.Timeout = time.Duration(*r.Timeout) * time.Millisecond
	}
	if r.Signed != nil {
		cfg.Signed = *r.Signed
	}
	if r.ResolveMedia != nil {
		cfg.ResolveMedia = *r.ResolveMedia
	}

	if cfg.Limits.MaxHTMLSize <= 0 {
		cfg.Limits.MaxHTMLSize = DefaultBodyLimit
	}
	if cfg.Limits.MaxXMLSize <= 0 {
		cfg.Limits.MaxXMLSize = DefaultBodyLimit
	}
	if cfg.Limits.MaxMediaSize <= 0 {
		cfg.Limits.MaxMediaSize = DefaultBodyLimit
	}
	if cfg.Limits.MaxImages <= 0 {
		cfg.Limits.MaxImages = DefaultMaxImages
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = map[string]string{}
	}
	if cfg.Extractors == nil {
		cfg.Extractors = map[string]map[string]string{}
	}

	cfg.Sites = make(map[string]*Site, len(r.Sites))
	for name, rawSite := range r.Sites {
		site, err := newSite(name, rawSite, cfg.UserAgents)
		if err != nil {
			return nil, err
		}
		cfg.Sites[name] = site
		cfg.siteNames = append(cfg.siteNames, name)
	}
	sort.Strings(cfg.siteNames)

	if cfg.AllowHTML, err = newMatcher(r.AllowHTML, cfg.Sites); err != nil {
		return nil, err
	}
	if cfg.SkipOembed, err = newMatcher(r.SkipOembed, cfg.Sites); err != nil {
		return nil, err
	}

	// cache.* table order in the file defines tier priority
	seen := map[string]bool{}
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "cache" {
			continue
		}
		name := key[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		opts := r.Cache[name]
		if opts == nil {
			opts = map[string]string{}
		}
		cfg.CacheTiers = append(cfg.CacheTiers, CacheTier{Backend: name, Options: opts})
	}

	return cfg, nil
}

// CleanDomain strips configured prefixes from a host.
func (c *Config) CleanDomain(host string) string {
	return urlutil.CleanDomain(host, c.Prefixes)
}

// FindSite returns the first site matching the cleaned domain, scanning
// sites in name order for determinism.
func (c *Config) FindSite(domain string) *Site {
	for _, name := range c.siteNames {
		if site := c.Sites[name]; site.Matches(domain) {
			return site
		}
	}
	return nil
}

// UserAgent resolves a named user agent.
func (c *Config) UserAgent(name string) (string, bool) {
	ua, ok := c.UserAgents[name]
	return ua, ok
}

// Extractor returns the option map for a named extractor, if configured.
func (c *Config) Extractor(name string) (map[string]string, bool) {
	opts, ok := c.Extractors[name]
	return opts, ok
}
