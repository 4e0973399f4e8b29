package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
max_redirects = 3
cache_size = 512
timeout = 2500
signed = false
resolve_media = false

prefixes = ["www", "m"]

allow_html = ["%youtube", "player.example.com"]
skip_oembed = ["*.skipme.net"]

[limits]
max_html_size = 2097152

[user_agents]
"%browser" = "Mozilla/5.0 (X11; Linux x86_64) Firefox/127.0"

[sites.youtube]
color = "#ff0000"
domains = ["youtube.com", "youtu.be"]
pattern = "~*youtube\\."
user_agent = "%browser"

[sites.scraped]
domains = ["scraped.example"]
cookie = "session=abc"
[sites.scraped.fields]
title = "h1.title"
image_url = "img.main < src"

[extractors.e621]
login = "user"
api_key = "key"

[cache.memory]
[cache.redis]
url = "redis://localhost:6379"
[cache.sqlite]
path = "/tmp/embeds.db"
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxRedirects)
	assert.Equal(t, 512, cfg.CacheSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.False(t, cfg.Signed)
	assert.False(t, cfg.ResolveMedia)

	assert.Equal(t, int64(2097152), cfg.Limits.MaxHTMLSize)
	assert.Equal(t, int64(DefaultBodyLimit), cfg.Limits.MaxXMLSize)
	assert.Equal(t, int64(DefaultBodyLimit), cfg.Limits.MaxMediaSize)

	opts, ok := cfg.Extractor("e621")
	require.True(t, ok)
	assert.Equal(t, "user", opts["login"])
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxRedirects, cfg.MaxRedirects)
	assert.Equal(t, DefaultCacheSize, cfg.CacheSize)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.True(t, cfg.Signed)
	assert.True(t, cfg.ResolveMedia)
	assert.Empty(t, cfg.CacheTiers)
}

func TestCacheTierOrder(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.CacheTiers, 3)
	assert.Equal(t, "memory", cfg.CacheTiers[0].Backend)
	assert.Equal(t, "redis", cfg.CacheTiers[1].Backend)
	assert.Equal(t, "sqlite", cfg.CacheTiers[2].Backend)
	assert.Equal(t, "redis://localhost:6379", cfg.CacheTiers[1].Options["url"])
}

func TestSiteMatching(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	site := cfg.FindSite(cfg.CleanDomain("www.youtube.com"))
	require.NotNil(t, site)
	assert.Equal(t, "youtube", site.Name)
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64) Firefox/127.0", site.UserAgent)
	require.NotNil(t, site.Color)
	assert.Equal(t, uint32(0xff0000), *site.Color.RGB())

	// pattern match beyond the domain set
	assert.NotNil(t, cfg.FindSite("music.youtube.de"))
	assert.Nil(t, cfg.FindSite("example.org"))
}

func TestSiteFieldSelectors(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	site := cfg.Sites["scraped"]
	require.NotNil(t, site.Fields)

	require.NotNil(t, site.Fields.Title)
	assert.Equal(t, "h1.title", site.Fields.Title.Query)
	assert.Empty(t, site.Fields.Title.Attribute)

	require.NotNil(t, site.Fields.ImageURL)
	assert.Equal(t, "img.main", site.Fields.ImageURL.Query)
	assert.Equal(t, "src", site.Fields.ImageURL.Attribute)

	assert.Nil(t, cfg.Sites["youtube"].Fields)
}

func TestMatchers(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	// %youtube resolves through the site's domains and pattern
	assert.True(t, cfg.AllowHTML.Matches("youtu.be"))
	assert.True(t, cfg.AllowHTML.Matches("player.example.com"))
	assert.False(t, cfg.AllowHTML.Matches("example.com"))

	assert.True(t, cfg.SkipOembed.Matches("api.skipme.net"))
	assert.False(t, cfg.SkipOembed.Matches("skipme.net"))
}

func TestMissingSiteReference(t *testing.T) {
	_, err := Parse([]byte(`allow_html = ["%nope"]`))
	require.Error(t, err)

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "missing site")
}

func TestUnknownUserAgentReference(t *testing.T) {
	_, err := Parse([]byte(`
[sites.x]
domains = ["x.com"]
user_agent = "%ghost"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "%ghost")
}

func TestInvalidSitePattern(t *testing.T) {
	_, err := Parse([]byte(`
[sites.x]
pattern = "~[broken"
`))
	require.Error(t, err)
}

func TestColorForms(t *testing.T) {
	var c ColorValue

	require.NoError(t, c.UnmarshalText([]byte("#abc")))
	assert.Equal(t, ColorValue(0xaabbcc), c)

	require.NoError(t, c.UnmarshalText([]byte("0x00549e")))
	assert.Equal(t, ColorValue(0x00549e), c)

	require.NoError(t, c.UnmarshalText([]byte("ff00ff")))
	assert.Equal(t, ColorValue(0xff00ff), c)

	assert.Error(t, c.UnmarshalText([]byte("not-a-color")))
}
