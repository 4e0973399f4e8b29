package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/pkg/embed"
)

func newTestState(t *testing.T, toml string) *extractor.State {
	t.Helper()
	cfg, err := config.Parse([]byte(toml))
	require.NoError(t, err)
	return extractor.NewState(cfg, nil, zaptest.NewLogger(t), nil)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func jsonServer(t *testing.T, handler func(r *http.Request) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, handler(r))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAllBuildsChain(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[extractors.e621]
login = "user"
api_key = "key"

[extractors.imgur]
client_id = "cid"
`))
	require.NoError(t, err)

	chain, err := All(cfg)
	require.NoError(t, err)

	// unconfigurable extractors plus e621, imgur, and the generic tail;
	// furaffinity and inkbunny stay out without their tables
	names := make([]string, 0, len(chain))
	for _, x := range chain {
		names = append(names, x.Name())
	}
	assert.Equal(t, []string{"e621", "wikipedia", "deviantart", "imgur", "bluesky", "generic"}, names)
}

func TestAllPropagatesConfigErrors(t *testing.T) {
	cfg, err := config.Parse([]byte("[extractors.imgur]\nother = \"x\""))
	require.NoError(t, err)

	_, err = All(cfg)
	require.Error(t, err)

	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		extractor extractor.Extractor
		url       string
		want      bool
	}{
		{&E621{}, "https://e621.net/posts/12345", true},
		{&E621{}, "https://www.e926.net/posts/12345", true},
		{&E621{}, "https://e621.net/users/1", false},
		{&E621{}, "https://example.com/posts/1", false},

		{&Wikipedia{}, "https://en.wikipedia.org/wiki/Gopher", true},
		{&Wikipedia{}, "https://wikipedia.org/wiki/Gopher", true},
		{&Wikipedia{}, "https://en.wikipedia.org/w/index.php?title=Gopher", false},
		{&Wikipedia{}, "https://en.wikipedia.org/wiki/", false},

		{&DeviantArt{}, "https://www.deviantart.com/artist/art/thing-123", true},
		{&DeviantArt{}, "https://www.deviantart.com/artist", false},

		{&Imgur{}, "https://imgur.com/abc123", true},
		{&Imgur{}, "https://i.imgur.com/abc123.png", true},
		{&Imgur{}, "https://imgur.com/gallery/some-title-abc123", true},
		{&Imgur{}, "https://imgur.com/a/abc123", true},
		{&Imgur{}, "https://imgur.com/user/someone", false},
		{&Imgur{}, "https://imgur.com/", false},

		{&Inkbunny{}, "https://inkbunny.net/s/123456", true},
		{&Inkbunny{}, "https://inkbunny.net/s/123456-p2-", true},
		{&Inkbunny{}, "https://inkbunny.net/j/123", false},

		{&FurAffinity{}, "https://www.furaffinity.net/view/1234/", true},
		{&FurAffinity{}, "https://furaffinity.net/view/1234/", true},
		{&FurAffinity{}, "https://www.furaffinity.net/user/someone/", false},

		{&Bluesky{}, "https://bsky.app/profile/someone.bsky.social", true},
		{&Bluesky{}, "https://bsky.app/anything", true},
		{&Bluesky{}, "https://example.com/profile/x", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.extractor.Matches(mustParse(t, tc.url)),
			"%s on %s", tc.extractor.Name(), tc.url)
	}
}

func TestE621Extract(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/posts.json", r.URL.Path)
		assert.Equal(t, "user", r.URL.Query().Get("login"))
		assert.Equal(t, "id:100", r.URL.Query().Get("tags"))
		return `{"posts":[{
			"id": 100,
			"description": "A drawing.",
			"rating": "e",
			"file": {"width": 800, "height": 600, "ext": "png", "url": "https://static.e621.net/full.png"},
			"preview": {"width": 150, "height": 100, "url": "https://static.e621.net/prev.png"},
			"sample": {"has": false},
			"tags": {"general": ["canine"], "artist": ["somebody", "conditional_dnp"]}
		}]}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &E621{login: "user", apiKey: "key", api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://e621.net/posts/100"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "#100 by somebody - e621", e.Title)
	assert.Equal(t, "somebody", e.Author.Name)
	assert.True(t, e.Flags.Contains(embed.FlagAdult))
	require.Len(t, e.Images, 1)
	assert.Equal(t, "https://static.e621.net/full.png", e.Images[0].URL)
	assert.Equal(t, "image/png", e.Images[0].Mime)
}

func TestE621SampleSubstitutionPastLimit(t *testing.T) {
	srv := jsonServer(t, func(*http.Request) string {
		return `{"posts":[{
			"rating": "s",
			"file": {"width": 4000, "height": 3000, "ext": "png", "url": "https://static.e621.net/huge.png"},
			"sample": {"has": true, "width": 1600, "height": 1200, "url": "https://static.e621.net/sample.jpg"},
			"tags": {}
		}]}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &E621{login: "u", apiKey: "k", api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://e621.net/posts/1"), extractor.Params{})
	require.NoError(t, err)

	require.Len(t, got.Embed.Images, 1)
	assert.Equal(t, "https://static.e621.net/sample.jpg", got.Embed.Images[0].URL)
	assert.False(t, got.Embed.Flags.Contains(embed.FlagAdult))
}

func TestE926RejectsUnsafePosts(t *testing.T) {
	srv := jsonServer(t, func(*http.Request) string {
		return `{"posts":[{"rating": "q", "file": {"url": "https://x/y.png"}, "tags": {}}]}`
	})

	state := newTestState(t, "signed = false")
	x := &E621{login: "u", apiKey: "k", api: srv.URL}

	_, err := x.Extract(context.Background(), state, mustParse(t, "https://e926.net/posts/1"), extractor.Params{})
	assert.Equal(t, http.StatusNotFound, extractor.HTTPStatus(err))
}

func TestWikipediaExtract(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/api/rest_v1/page/summary/Gopher", r.URL.Path)
		return `{
			"title": "Gopher",
			"extract": "Gophers are burrowing rodents.",
			"thumbnail": {"source": "https://upload.wikimedia.org/thumb.jpg", "width": 320, "height": 240},
			"originalimage": {"source": "https://upload.wikimedia.org/orig.jpg", "width": 1024, "height": 768},
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Gopher"}}
		}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Wikipedia{api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://en.m.wikipedia.org/wiki/Gopher"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "Gopher", e.Title)
	assert.Equal(t, "Gophers are burrowing rodents.", e.Description)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Gopher", e.Canonical)
	assert.Equal(t, "Wikipedia", e.Provider.Name)
	require.Len(t, e.Images, 1)
	assert.Equal(t, "https://upload.wikimedia.org/orig.jpg", e.Images[0].URL)
	// thumbnail matching no image survives finalize
	require.NotNil(t, e.Thumb)
	assert.Equal(t, "https://upload.wikimedia.org/thumb.jpg", e.Thumb.URL)
}

func TestDeviantArtExtract(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/oembed", r.URL.Path)
		assert.Equal(t, "https://www.deviantart.com/artist/art/thing-123", r.URL.Query().Get("url"))
		return `{
			"version": "1.0",
			"type": "photo",
			"title": "Thing",
			"author_name": "artist",
			"author_url": "https://www.deviantart.com/artist",
			"url": "https://images-wixmp.example/thing.png",
			"width": 900,
			"height": 700,
			"safety": "adult"
		}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &DeviantArt{api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://www.deviantart.com/artist/art/thing-123?q=1"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "Thing", e.Title)
	assert.Equal(t, "artist", e.Author.Name)
	assert.True(t, e.Flags.Contains(embed.FlagAdult))
	assert.Equal(t, embed.TypeImage, e.Type)
	require.Len(t, e.Images, 1)
	assert.Equal(t, "https://images-wixmp.example/thing.png", e.Images[0].URL)
}

func TestImgurExtractImage(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/3/image/abc123", r.URL.Path)
		assert.Equal(t, "Client-ID cid", r.Header.Get("Authorization"))
		return `{"success": true, "data": {
			"id": "abc123",
			"type": "image/png",
			"width": 640, "height": 480,
			"link": "https://i.imgur.com/abc123.png",
			"title": "A Title",
			"nsfw": false
		}}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Imgur{clientID: "cid", api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://imgur.com/abc123"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "A Title", e.Title)
	require.Len(t, e.Images, 1)
	assert.Equal(t, "https://i.imgur.com/abc123.png?noredirect", e.Images[0].URL)
	assert.False(t, e.Flags.Contains(embed.FlagAdult))
	assert.Nil(t, e.Footer)
}

func TestImgurExtractAlbum(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/3/album/alb1", r.URL.Path)
		return `{"success": true, "data": {
			"id": "alb1",
			"is_album": true,
			"images_count": 7,
			"cover": "img2",
			"title": "Album",
			"ad_config": {"nsfw_score": 0.9},
			"images": [
				{"id": "img1", "type": "image/png", "link": "https://i.imgur.com/img1.png"},
				{"id": "img2", "type": "image/jpeg", "width": 10, "height": 10, "link": "https://i.imgur.com/img2.jpg"}
			]
		}}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Imgur{clientID: "cid", api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://imgur.com/a/alb1"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.True(t, e.Flags.Contains(embed.FlagAdult))
	require.NotNil(t, e.Footer)
	assert.Equal(t, "and 6 more files", e.Footer.Text)
	// the cover image stands in for the album
	total := len(e.Images)
	if e.Thumb != nil {
		total++
	}
	assert.Equal(t, 1, total)
}

func TestImgurWebmVideoGainsMP4Alternate(t *testing.T) {
	srv := jsonServer(t, func(*http.Request) string {
		return `{"success": true, "data": {
			"id": "vid1",
			"type": "video/webm",
			"width": 640, "height": 360,
			"link": "https://i.imgur.com/vid1.webm",
			"mp4": "https://i.imgur.com/vid1.mp4"
		}}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Imgur{clientID: "cid", api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://imgur.com/vid1"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	require.NotNil(t, e.Video)
	assert.Equal(t, "https://i.imgur.com/vid1.webm?noredirect", e.Video.URL)
	require.Len(t, e.Video.Alternates, 1)
	assert.Equal(t, "video/mp4", e.Video.Alternates[0].Mime)
	assert.Equal(t, "https://i.imgur.com/vid1.mp4?noredirect", e.Video.Alternates[0].URL)
}

func TestInkbunnyExtract(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/api_search.php", r.URL.Path)
		assert.Equal(t, "sid123", r.URL.Query().Get("sid"))
		assert.Equal(t, "654321", r.URL.Query().Get("submission_ids"))
		return `{"submissions": [{
			"title": "Sketch",
			"username": "artist",
			"rating_id": "2",
			"file_url_full": "https://inkbunny.net/files/full/sketch.png",
			"mimetype": "image/png",
			"full_size_x": "1200",
			"full_size_y": "900"
		}]}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Inkbunny{sid: "sid123", api: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://inkbunny.net/s/654321-p2-"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "Sketch", e.Title)
	assert.Equal(t, "artist", e.Author.Name)
	assert.True(t, e.Flags.Contains(embed.FlagAdult))
	require.Len(t, e.Images, 1)
	assert.Equal(t, 1200, *e.Images[0].Width)
	assert.Equal(t, "https://inkbunny.net/s/654321", e.URL)
}

func TestFurAffinityExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b=bb; a=aa", r.Header.Get("Cookie"))
		assert.Equal(t, "TestBrowser/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<div class="submission-title"><h2>My Art</h2></div>
			<a href="/user/artist/">artist</a>
			<div class="submission-area">
				<img src="//d.furaffinity.net/art/full.png" alt="the art">
			</div>
			<div class="info">
				<div><strong class="highlight">Size</strong> <span>1280 x 720px</span></div>
			</div>
			<div class="submission-description">First line.<br>Second line.</div>
			<span class="rating-box adult">Adult</span>
			<span class="tags"><a>canine</a><a>gore</a></span>
		</body></html>`)
	}))
	defer srv.Close()

	state := newTestState(t, `
signed = false
resolve_media = false

[user_agents]
"%browser" = "TestBrowser/1.0"

[extractors.furaffinity]
a = "aa"
b = "bb"
`)

	x, err := NewFurAffinity(state.Config)
	require.NoError(t, err)
	require.NotNil(t, x)

	got, err := x.Extract(context.Background(), state, mustParse(t, srv.URL+"/view/1234/"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "My Art", e.Title)
	assert.Equal(t, "artist", e.Author.Name)
	assert.Equal(t, "https://www.furaffinity.net/user/artist/", e.Author.URL)
	assert.Equal(t, "First line.\nSecond line.", e.Description)
	assert.True(t, e.Flags.Contains(embed.FlagAdult))
	assert.True(t, e.Flags.Contains(embed.FlagGraphic))
	require.Len(t, e.Images, 1)
	assert.Equal(t, "https://d.furaffinity.net/art/full.png", e.Images[0].URL)
	assert.Equal(t, 1280, *e.Images[0].Width)
	assert.Equal(t, 720, *e.Images[0].Height)
	assert.Equal(t, "FurAffinity", e.Provider.Name)
}

func TestFurAffinityConfigErrors(t *testing.T) {
	cfg, err := config.Parse([]byte("[extractors.furaffinity]\na = \"aa\""))
	require.NoError(t, err)
	_, err = NewFurAffinity(cfg)
	require.Error(t, err)

	cfg, err = config.Parse([]byte("[extractors.furaffinity]\na = \"aa\"\nb = \"bb\""))
	require.NoError(t, err)
	// the %browser user agent is also required
	_, err = NewFurAffinity(cfg)
	require.Error(t, err)
}

func TestBlueskyProfile(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		assert.Equal(t, "/xrpc/app.bsky.actor.getProfile", r.URL.Path)
		assert.Equal(t, "someone.bsky.social", r.URL.Query().Get("actor"))
		return `{
			"did": "did:plc:abc",
			"handle": "someone.bsky.social",
			"displayName": "Someone",
			"avatar": "https://cdn.bsky.app/avatar.jpg",
			"description": "Just somebody.",
			"labels": []
		}`
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Bluesky{appview: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://bsky.app/profile/someone.bsky.social"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "@someone.bsky.social", e.Title)
	assert.Equal(t, "Just somebody.", e.Description)
	assert.Equal(t, "Someone", e.Author.Name)
	assert.Equal(t, "Bluesky Social", e.Provider.Name)
	assert.Equal(t, "https://bsky.app/profile/someone.bsky.social", e.URL)
}

func TestBlueskyPostWithImages(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) string {
		switch r.URL.Path {
		case "/xrpc/app.bsky.actor.getProfile":
			return `{"did": "did:plc:abc", "handle": "someone.bsky.social"}`
		case "/xrpc/app.bsky.feed.getPosts":
			assert.Contains(t, r.URL.Query().Get("uris"), "at://did:plc:abc/app.bsky.feed.post/3k")
			return `{"posts": [{
				"record": {"$type": "app.bsky.feed.post", "createdAt": "2024-05-01T12:00:00Z", "text": "hello"},
				"embed": {"$type": "app.bsky.embed.images#view", "images": [
					{"thumb": "https://cdn.bsky.app/t1.jpg", "fullsize": "https://cdn.bsky.app/f1.jpg",
					 "alt": "first", "aspectRatio": {"width": 800, "height": 600}},
					{"fullsize": "https://cdn.bsky.app/f2.jpg", "aspectRatio": {"width": 400, "height": 300}}
				]},
				"likeCount": 5, "replyCount": 2, "repostCount": 0, "quoteCount": 0,
				"labels": [{"val": "sexual-figurative"}]
			}]}`
		}
		t.Fatalf("unexpected path %s", r.URL.Path)
		return ""
	})

	state := newTestState(t, "signed = false\nresolve_media = false")
	x := &Bluesky{appview: srv.URL}

	got, err := x.Extract(context.Background(), state, mustParse(t, "https://bsky.app/profile/someone.bsky.social/post/3k"), extractor.Params{})
	require.NoError(t, err)

	e := got.Embed
	assert.Equal(t, "hello", e.Description)
	assert.True(t, e.Flags.Contains(embed.FlagAdult))
	require.Len(t, e.Images, 1)
	assert.Equal(t, "https://cdn.bsky.app/t1.jpg", e.Images[0].URL)
	require.Len(t, e.Images[0].Alternates, 1)
	assert.Equal(t, "https://cdn.bsky.app/f2.jpg", e.Images[0].Alternates[0].URL)

	require.NotNil(t, e.Footer)
	assert.Contains(t, e.Footer.Text, "❤️ 5")
	assert.Contains(t, e.Footer.Text, "💬 2")
	assert.NotContains(t, e.Footer.Text, "🔁")
}

func TestBlueskyLabelNegation(t *testing.T) {
	labels := []bskyLabel{
		{Val: "porn"},
		{Val: "porn", Neg: true},
		{Val: "spoiler"},
	}
	assert.Equal(t, embed.FlagSpoiler, aggregateLabelFlags(labels))

	assert.Equal(t, embed.FlagAdult, aggregateLabelFlags([]bskyLabel{{Val: "nudity"}}))
	assert.Equal(t, embed.FlagGraphic|embed.FlagSpoiler, aggregateLabelFlags([]bskyLabel{{Val: "graphic-media"}}))
	assert.Equal(t, embed.Flags(0), aggregateLabelFlags(nil))
}
