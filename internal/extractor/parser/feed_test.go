package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/unfurl/pkg/embed"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0"><channel>
	<title>Feed Title</title>
	<description>Feed blurb.</description>
	<ttl>30</ttl>
	<rating>adult content</rating>
	<image>
		<url>https://example.com/logo.png</url>
		<title>Logo</title>
	</image>
	<item><title>Entry</title></item>
</channel></rss>`

func TestFeedTTLDrivesMaxAge(t *testing.T) {
	feed, err := NewFeedParser().ParseString(rssFixture)
	require.NoError(t, err)

	e := embed.New()
	age := FeedToEmbed(e, feed)

	assert.Equal(t, int64(30*60), age)
}

func TestFeedDefaultTTL(t *testing.T) {
	feed, err := NewFeedParser().ParseString(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title></channel></rss>`)
	require.NoError(t, err)

	e := embed.New()
	age := FeedToEmbed(e, feed)

	assert.Equal(t, "T", e.Title)
	assert.Equal(t, int64(15*60), age)
}

func TestFeedRatingAndChannelImage(t *testing.T) {
	feed, err := NewFeedParser().ParseString(rssFixture)
	require.NoError(t, err)

	e := embed.New()
	FeedToEmbed(e, feed)

	assert.Equal(t, "Feed Title", e.Title)
	assert.Equal(t, "Feed blurb.", e.Description)
	assert.NotZero(t, e.Flags&embed.FlagAdult)

	require.NotNil(t, e.Provider.Icon)
	assert.Equal(t, "https://example.com/logo.png", e.Provider.Icon.URL)
	assert.Equal(t, "Logo", e.Provider.Icon.Description)
}

func TestAtomIconBecomesThumbnail(t *testing.T) {
	feed, err := NewFeedParser().ParseString(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Feed</title>
	<id>urn:feed:1</id>
	<icon>https://example.com/icon.png</icon>
</feed>`)
	require.NoError(t, err)

	e := embed.New()
	FeedToEmbed(e, feed)

	require.NotNil(t, e.Thumb)
	assert.Equal(t, "https://example.com/icon.png", e.Thumb.URL)
	assert.Zero(t, e.Flags&embed.FlagAdult)
}
