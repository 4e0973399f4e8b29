package embed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int       { return &v }
func colorp(v uint32) *uint32 { return &v }

func TestPlainLinkSerialization(t *testing.T) {
	e := &EmbedV1{
		Timestamp: At(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Type:      TypeLink,
		URL:       "https://example.com/a",
	}

	raw, err := json.Marshal(Wrap(e))
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"v":"1","ts":"2024-05-01T12:00:00.000Z","ty":"link","u":"https://example.com/a"}`,
		string(raw))
}

func TestRoundTrip(t *testing.T) {
	e := &EmbedV1{
		Timestamp:   Now(),
		Type:        TypeImage,
		Flags:       FlagAdult | FlagGraphic,
		URL:         "https://example.com/post/1",
		Canonical:   "https://example.com/canonical/1",
		Title:       "Title",
		Description: "Description",
		Color:       colorp(0x00549e),
		Author: &Author{
			Name: "someone",
			URL:  "https://example.com/u/someone",
			Icon: NewMedia("https://example.com/u/someone/icon.png"),
		},
		Provider: Provider{
			Name: "Example",
			URL:  "https://example.com",
		},
		Images: []Media{{
			BasicMedia: BasicMedia{
				URL:    "https://cdn.example.com/1.png",
				Width:  intp(800),
				Height: intp(600),
				Mime:   "image/png",
			},
			Alternates: []BasicMedia{{
				URL:  "https://cdn.example.com/1.webp",
				Mime: "image/webp",
			}},
		}},
		Fields: []Field{{Name: "Size", Value: "800x600", Block: true}},
		Footer: &Footer{Text: "footer"},
	}

	raw, err := json.Marshal(Wrap(e))
	require.NoError(t, err)

	var back Embed
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, e, back.EmbedV1)
}

func TestUnknownVersionRejected(t *testing.T) {
	var e Embed
	err := json.Unmarshal([]byte(`{"v":"2","ty":"link"}`), &e)
	assert.Error(t, err)
}

func TestEmptyFieldsOmitted(t *testing.T) {
	e := New()
	e.URL = "https://example.com"

	raw, err := json.Marshal(Wrap(e))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	for _, key := range []string{"f", "c", "t", "d", "ac", "au", "p", "obj", "img", "audio", "vid", "thumb", "fields", "footer"} {
		assert.NotContains(t, m, key)
	}
	assert.Contains(t, m, "v")
	assert.Contains(t, m, "ts")
	assert.Contains(t, m, "ty")
	assert.Contains(t, m, "u")
}

func TestExpiringSerializesAsPair(t *testing.T) {
	x := Expiring{
		Expires: At(time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)),
		Embed: &EmbedV1{
			Timestamp: At(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
			Type:      TypeLink,
			URL:       "https://example.com",
		},
	}

	raw, err := json.Marshal(x)
	require.NoError(t, err)
	assert.Equal(t, byte('['), raw[0])

	var back Expiring
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, x.Expires, back.Expires)
	assert.Equal(t, x.Embed.URL, back.Embed.URL)
}

func TestDeriveType(t *testing.T) {
	cases := []struct {
		name string
		prep func(*EmbedV1)
		want Type
	}{
		{"images win", func(e *EmbedV1) {
			e.Images = []Media{*NewMedia("https://x/1.png")}
			e.Video = NewMedia("https://x/1.mp4")
		}, TypeImage},
		{"video over audio", func(e *EmbedV1) {
			e.Video = NewMedia("https://x/1.mp4")
			e.Audio = NewMedia("https://x/1.mp3")
		}, TypeVideo},
		{"audio", func(e *EmbedV1) {
			e.Audio = NewMedia("https://x/1.mp3")
		}, TypeAudio},
		{"object is html", func(e *EmbedV1) {
			e.Object = NewMedia("https://x/player")
		}, TypeHTML},
		{"nothing is link", func(e *EmbedV1) {}, TypeLink},
		{"article kept", func(e *EmbedV1) {
			e.Type = TypeArticle
		}, TypeArticle},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New()
			tc.prep(e)
			e.DeriveType()
			assert.Equal(t, tc.want, e.Type)
		})
	}
}

func TestNormalizePromotesAlternates(t *testing.T) {
	m := &Media{
		Alternates: []BasicMedia{
			{},
			{URL: "https://cdn/x.mp4", Mime: "video/mp4"},
			{URL: "https://cdn/x.webm", Mime: "video/webm"},
		},
	}
	m.Normalize()

	assert.Equal(t, "https://cdn/x.mp4", m.URL)
	assert.Equal(t, "video/mp4", m.Mime)
	require.Len(t, m.Alternates, 1)
	assert.Equal(t, "https://cdn/x.webm", m.Alternates[0].URL)
}

func TestVisitMediaReachesEverything(t *testing.T) {
	e := New()
	e.Object = NewMedia("obj")
	e.Images = []Media{{
		BasicMedia: BasicMedia{URL: "img"},
		Alternates: []BasicMedia{{URL: "img-alt"}},
	}}
	e.Audio = NewMedia("audio")
	e.Video = NewMedia("vid")
	e.Thumb = NewMedia("thumb")
	e.Author = &Author{Name: "a", Icon: NewMedia("author-icon")}
	e.Provider.Icon = NewMedia("provider-icon")
	e.Footer = &Footer{Text: "f", Icon: NewMedia("footer-icon")}
	e.Fields = []Field{{Name: "n", Img: NewMedia("field-img")}}

	var seen []string
	e.VisitMedia(func(m *BasicMedia) { seen = append(seen, m.URL) })

	assert.ElementsMatch(t, []string{
		"obj", "img", "img-alt", "audio", "vid", "thumb",
		"author-icon", "provider-icon", "footer-icon", "field-img",
	}, seen)
}

func TestIsPlainLink(t *testing.T) {
	e := New()
	assert.False(t, e.IsPlainLink())

	e.URL = "https://example.com"
	assert.True(t, e.IsPlainLink())

	e.Title = "t"
	assert.False(t, e.IsPlainLink())
}
