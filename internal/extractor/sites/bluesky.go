package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/generic"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// Bluesky resolves profile and post pages through the public AppView
// API. Everything else on bsky.app falls back to the generic scrape,
// with the Bluesky provider branding applied on top.
type Bluesky struct {
	// appview is the public API origin, overridable in tests.
	appview string
}

// NewBluesky needs no configuration.
func NewBluesky(*config.Config) (extractor.Extractor, error) {
	return &Bluesky{appview: "https://public.api.bsky.app"}, nil
}

func (*Bluesky) Name() string { return "bluesky" }

func (*Bluesky) Matches(u *url.URL) bool {
	return u.Hostname() == "bsky.app"
}

func (*Bluesky) Setup(context.Context, *extractor.State) error { return nil }

func (x *Bluesky) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	e, maxAge, err := x.extract(ctx, state, u, params)
	if err != nil {
		return embed.Expiring{}, err
	}

	e.Color = rgb(0x208bfe)
	e.Provider.Name = "Bluesky Social"
	e.Provider.URL = "https://bsky.app/"
	icon := embed.NewMedia("https://bsky.app/static/apple-touch-icon.png")
	icon.Description = "Bluesky Social"
	icon.Width, icon.Height = intp(180), intp(180)
	e.Provider.Icon = icon

	return generic.Finalize(state, e, maxAge), nil
}

func (x *Bluesky) extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (*embed.EmbedV1, *int64, error) {
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")

	if segments[0] != "profile" {
		return generic.ExtractRaw(ctx, state, u, params)
	}
	if len(segments) < 2 || segments[1] == "" {
		return nil, nil, extractor.Failure(http.StatusNotFound)
	}
	handle := segments[1]

	var postID string
	switch {
	case len(segments) == 2:
	case segments[2] == "post" && len(segments) >= 4:
		postID = segments[3]
	default:
		return generic.ExtractRaw(ctx, state, u, params)
	}

	var profile bskyProfile
	endpoint := x.appview + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(handle)
	if err := getJSON(ctx, state, endpoint, nil, &profile); err != nil {
		return nil, nil, err
	}

	e := embed.New()
	e.Title = "@" + profile.Handle
	e.Flags |= aggregateLabelFlags(profile.Labels)

	author := &embed.Author{
		Name: profile.name(),
		URL:  "https://bsky.app/profile/" + profile.Handle,
	}
	if profile.Avatar != "" {
		author.Icon = embed.NewMedia(profile.Avatar)
	}
	e.Author = author

	age := fourHours

	if postID == "" {
		e.Description = profile.Description
		e.URL = author.URL
		return e, &age, nil
	}

	endpoint = fmt.Sprintf("%s/xrpc/app.bsky.feed.getPosts?uris=%s", x.appview,
		url.QueryEscape(fmt.Sprintf("at://%s/app.bsky.feed.post/%s", profile.DID, postID)))

	var posts bskyPosts
	if err := getJSON(ctx, state, endpoint, nil, &posts); err != nil {
		return nil, nil, err
	}
	if len(posts.Posts) == 0 {
		return nil, nil, extractor.Failure(http.StatusNotFound)
	}
	post := posts.Posts[len(posts.Posts)-1]

	e.URL = author.URL + "/post/" + postID
	e.Flags |= aggregateLabelFlags(post.Labels)

	// posts with record or embed types this extractor cannot represent
	// are better served by the page's own meta tags
	if post.Record == nil || !post.Record.isPost() {
		return generic.ExtractRaw(ctx, state, u, params)
	}
	bskyEmb := post.Embed
	if bskyEmb != nil && bskyEmb.kind() == bskyEmbedUnknown {
		return generic.ExtractRaw(ctx, state, u, params)
	}

	e.Description = post.Record.Text
	e.Footer = &embed.Footer{Text: postFooter(post.Record.CreatedAt, &post)}

	// unwrap quoted records: their text joins the description and their
	// own media, if any, takes the media slot
	switch bskyEmb.kind() {
	case bskyEmbedRecordWithMedia:
		if view := bskyEmb.viewRecord(); view != nil {
			appendQuoted(e, view)
		}
		bskyEmb = bskyEmb.Media
	case bskyEmbedRecord:
		inner := (*bskyEmbed)(nil)
		if view := bskyEmb.viewRecord(); view != nil && view.Value != nil && view.Value.isPost() {
			appendQuoted(e, view)
			if len(view.Embeds) > 0 {
				inner = &view.Embeds[len(view.Embeds)-1]
				if inner.kind() == bskyEmbedRecordWithMedia {
					inner = inner.Media
				}
			}
		}
		bskyEmb = inner
	}

	switch bskyEmb.kind() {
	case bskyEmbedExternalKind:
		ext := bskyEmb.External
		if ext == nil {
			break
		}
		if ext.URI != "" {
			e.URL = ext.URI
		}
		if ext.Title != "" {
			e.Description += "\n\n> **" + ext.Title + "**"
		}
		for _, line := range strings.Split(ext.Description, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				e.Description += "\n\n> " + line
			}
		}

	case bskyEmbedImages:
		// a single media whose alternates list every image; normalize
		// promotes the first into the primary slot
		media := &embed.Media{}
		for _, img := range bskyEmb.Images {
			basic := embed.BasicMedia{
				URL:         img.Thumb,
				Description: img.Alt,
				Mime:        "image/jpeg",
			}
			if basic.URL == "" {
				basic.URL = img.Fullsize
			}
			if img.AspectRatio != nil {
				basic.Width, basic.Height = intp(img.AspectRatio.Width), intp(img.AspectRatio.Height)
			}
			media.Alternates = append(media.Alternates, basic)
		}
		media.Normalize()
		if media.URL != "" {
			e.Images = append(e.Images, *media)
		}

	case bskyEmbedVideo:
		if bskyEmb.Thumbnail != "" {
			thumb := embed.NewMedia(bskyEmb.Thumbnail)
			thumb.Mime = "image/jpeg"
			if bskyEmb.AspectRatio != nil {
				thumb.Width, thumb.Height = intp(bskyEmb.AspectRatio.Width), intp(bskyEmb.AspectRatio.Height)
			}
			e.Thumb = thumb
		}
		video := embed.NewMedia(bskyEmb.Playlist)
		video.Mime = "application/mpegurl"
		if bskyEmb.AspectRatio != nil {
			video.Width, video.Height = intp(bskyEmb.AspectRatio.Width), intp(bskyEmb.AspectRatio.Height)
		}
		e.Video = video
	}

	return e, &age, nil
}

// appendQuoted block-quotes a quoted post's author and text under the
// current description.
func appendQuoted(e *embed.EmbedV1, view *bskyViewRecord) {
	if view.Value == nil || !view.Value.isPost() || view.Author == nil {
		return
	}

	var b strings.Builder
	b.WriteString(e.Description)
	fmt.Fprintf(&b, "\n\n> **@%s (%s)**\n", view.Author.Handle, strings.TrimSpace(view.Author.name()))
	for _, line := range strings.Split(view.Value.Text, "\n") {
		b.WriteString("\n> ")
		b.WriteString(strings.TrimSpace(line))
	}
	e.Description = b.String()
}

// postFooter renders "timestamp - ❤️ n | 💬 n | 🔁 n | 🔖 n", omitting
// zero counts.
func postFooter(createdAt string, post *bskyPost) string {
	var b strings.Builder

	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		b.WriteString(embed.At(ts).Format("2006-01-02T15:04:05.000Z"))
		b.WriteString(" - ")
	}

	counts := [...]struct {
		n      int
		symbol string
	}{
		{post.LikeCount, "❤️"},
		{post.ReplyCount, "💬"},
		{post.RepostCount, "🔁"},
		{post.QuoteCount, "🔖"},
	}

	sep := false
	for _, c := range counts {
		if c.n == 0 {
			continue
		}
		if sep {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%s %d", c.symbol, c.n)
		sep = true
	}

	return strings.TrimSuffix(b.String(), " - ")
}
