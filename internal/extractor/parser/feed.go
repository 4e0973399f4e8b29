package parser

import (
	"fmt"
	"strconv"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"

	"github.com/edgecomet/unfurl/pkg/embed"
)

// defaultFeedTTL is the cache lifetime for feeds that declare none, in
// minutes.
const defaultFeedTTL = 15

// Custom map keys for the channel fields the universal feed model drops.
const (
	customFeedTTL    = "ttl"
	customFeedRating = "rating"
	customFeedIcon   = "icon"
)

// NewFeedParser returns a parser whose translators stow the RSS ttl and
// rating and the Atom icon into Feed.Custom.
func NewFeedParser() *gofeed.Parser {
	p := gofeed.NewParser()
	p.RSSTranslator = &rssTranslator{def: &gofeed.DefaultRSSTranslator{}}
	p.AtomTranslator = &atomTranslator{def: &gofeed.DefaultAtomTranslator{}}
	return p
}

type rssTranslator struct{ def *gofeed.DefaultRSSTranslator }

func (t *rssTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	f, err := t.def.Translate(feed)
	if err != nil {
		return nil, err
	}
	rf, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("feed is not an rss feed: %T", feed)
	}
	setFeedCustom(f, customFeedTTL, rf.TTL)
	setFeedCustom(f, customFeedRating, rf.Rating)
	return f, nil
}

type atomTranslator struct{ def *gofeed.DefaultAtomTranslator }

func (t *atomTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	f, err := t.def.Translate(feed)
	if err != nil {
		return nil, err
	}
	af, ok := feed.(*atom.Feed)
	if !ok {
		return nil, fmt.Errorf("feed is not an atom feed: %T", feed)
	}
	setFeedCustom(f, customFeedIcon, af.Icon)
	return f, nil
}

func setFeedCustom(f *gofeed.Feed, key, value string) {
	if value == "" {
		return
	}
	if f.Custom == nil {
		f.Custom = make(map[string]string)
	}
	f.Custom[key] = value
}

// FeedToEmbed maps a syndication feed onto the embed and returns the
// suggested cache lifetime in seconds. The feed should come from
// NewFeedParser so the channel ttl, rating and icon survive translation.
func FeedToEmbed(e *embed.EmbedV1, feed *gofeed.Feed) int64 {
	e.Title = feed.Title
	e.Description = feed.Description

	if feed.Image != nil && feed.Image.URL != "" {
		icon := getMedia(&e.Provider.Icon)
		icon.URL = feed.Image.URL
		icon.Description = feed.Image.Title
	}

	if iconURL := feed.Custom[customFeedIcon]; iconURL != "" {
		getMedia(&e.Thumb).URL = iconURL
	}

	if rating := feed.Custom[customFeedRating]; ContainsAdultRating(rating) {
		e.Flags |= embed.FlagAdult
	}
	if feed.ITunesExt != nil {
		switch feed.ITunesExt.Explicit {
		case "true", "yes":
			e.Flags |= embed.FlagAdult
		}
	}

	ttl := int64(defaultFeedTTL)
	if v, err := strconv.ParseInt(feed.Custom[customFeedTTL], 10, 64); err == nil && v > 0 {
		ttl = v
	}
	return 60 * ttl
}
