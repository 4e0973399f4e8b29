package sites

import (
	"encoding/json"
	"strings"

	"github.com/edgecomet/unfurl/pkg/embed"
)

// AppView lexicon shapes. Every polymorphic object carries a "$type"
// discriminator; view variants append "#view"/"#viewRecord", so kinds
// are matched by prefix.

type bskyProfile struct {
	DID         string      `json:"did"`
	Handle      string      `json:"handle"`
	DisplayName string      `json:"displayName"`
	Avatar      string      `json:"avatar"`
	Description string      `json:"description"`
	Labels      []bskyLabel `json:"labels"`
}

// name prefers the display name, falling back to the handle.
func (p *bskyProfile) name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Handle
}

type bskyLabel struct {
	Val string `json:"val"`
	Neg bool   `json:"neg"`
}

// labelFlags maps a moderation label to embed flags. Undocumented
// labels often contain the documented ones ("sexual-figurative"), so
// substring matching catches more of them.
func (l *bskyLabel) flags() embed.Flags {
	for _, adult := range [...]string{"porn", "sexual", "nudity", "adult", "explicit"} {
		if strings.Contains(l.Val, adult) {
			return embed.FlagAdult
		}
	}
	if strings.Contains(l.Val, "graphic-media") {
		return embed.FlagGraphic | embed.FlagSpoiler
	}
	if strings.Contains(l.Val, "spoiler") {
		return embed.FlagSpoiler
	}
	return 0
}

// aggregateLabelFlags folds labels left to right; a negation label
// cancels the immediately-preceding label and contributes nothing
// itself.
func aggregateLabelFlags(labels []bskyLabel) embed.Flags {
	var acc, pending embed.Flags
	for i := range labels {
		if labels[i].Neg {
			pending = 0
			continue
		}
		acc |= pending
		pending = labels[i].flags()
	}
	return acc | pending
}

type bskyRecord struct {
	Type      string `json:"$type"`
	CreatedAt string `json:"createdAt"`
	Text      string `json:"text"`
}

func (r *bskyRecord) isPost() bool {
	return strings.HasPrefix(r.Type, "app.bsky.feed.post")
}

// bskyViewRecord is a quoted record as hydrated by the AppView.
type bskyViewRecord struct {
	Value  *bskyRecord  `json:"value"`
	Author *bskyProfile `json:"author"`
	Embeds []bskyEmbed  `json:"embeds"`
}

type bskyAspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type bskyEmbedImage struct {
	Thumb       string           `json:"thumb"`
	Fullsize    string           `json:"fullsize"`
	Alt         string           `json:"alt"`
	AspectRatio *bskyAspectRatio `json:"aspectRatio"`
}

type bskyEmbedExternal struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// bskyEmbed is the post-embed union; the kind decides which fields are
// populated. The video view's fields are flattened into the embed
// object itself.
type bskyEmbed struct {
	Type string `json:"$type"`

	Images   []bskyEmbedImage   `json:"images"`
	External *bskyEmbedExternal `json:"external"`

	Thumbnail   string           `json:"thumbnail"`
	Playlist    string           `json:"playlist"`
	AspectRatio *bskyAspectRatio `json:"aspectRatio"`

	Media  *bskyEmbed      `json:"media"`
	Record json.RawMessage `json:"record"`
}

type bskyEmbedKind int

const (
	bskyEmbedUnknown bskyEmbedKind = iota
	bskyEmbedImages
	bskyEmbedExternalKind
	bskyEmbedVideo
	bskyEmbedRecordWithMedia
	bskyEmbedRecord
)

func (e *bskyEmbed) kind() bskyEmbedKind {
	switch {
	case e == nil:
		return bskyEmbedUnknown
	case strings.HasPrefix(e.Type, "app.bsky.embed.images"):
		return bskyEmbedImages
	case strings.HasPrefix(e.Type, "app.bsky.embed.external"):
		return bskyEmbedExternalKind
	case strings.HasPrefix(e.Type, "app.bsky.embed.video"):
		return bskyEmbedVideo
	case strings.HasPrefix(e.Type, "app.bsky.embed.recordWithMedia"):
		return bskyEmbedRecordWithMedia
	case strings.HasPrefix(e.Type, "app.bsky.embed.record"):
		return bskyEmbedRecord
	}
	return bskyEmbedUnknown
}

// viewRecord decodes the nested quoted record. The recordWithMedia
// variant wraps it in one more {"record": …} layer.
func (e *bskyEmbed) viewRecord() *bskyViewRecord {
	raw := e.Record
	if len(raw) == 0 {
		return nil
	}

	if e.kind() == bskyEmbedRecordWithMedia {
		var nested struct {
			Record json.RawMessage `json:"record"`
		}
		if json.Unmarshal(raw, &nested) != nil || len(nested.Record) == 0 {
			return nil
		}
		raw = nested.Record
	}

	var view bskyViewRecord
	if json.Unmarshal(raw, &view) != nil {
		return nil
	}
	return &view
}

type bskyPost struct {
	Record *bskyRecord `json:"record"`
	Embed  *bskyEmbed  `json:"embed"`

	ReplyCount  int `json:"replyCount"`
	RepostCount int `json:"repostCount"`
	LikeCount   int `json:"likeCount"`
	QuoteCount  int `json:"quoteCount"`

	Labels []bskyLabel `json:"labels"`
}

type bskyPosts struct {
	Posts []bskyPost `json:"posts"`
}
