// Package embed defines the versioned embed record exchanged with clients
// and persisted by the cache backends.
package embed

import (
	"encoding/json"
	"fmt"
	"time"
)

// Flags is the embed flag bitfield.
type Flags uint32

const (
	// FlagSpoiler marks content the client should hide behind a click.
	FlagSpoiler Flags = 1 << iota
	// FlagAdult marks adult content.
	FlagAdult
	// FlagGraphic marks graphic/disturbing content.
	FlagGraphic
)

// Contains reports whether every bit of other is set in f.
func (f Flags) Contains(other Flags) bool {
	return f&other == other
}

// Type classifies an embed by its dominant media.
type Type string

const (
	TypeImage   Type = "img"
	TypeAudio   Type = "audio"
	TypeVideo   Type = "vid"
	TypeHTML    Type = "html"
	TypeLink    Type = "link"
	TypeArticle Type = "article"
)

// Timestamp is a UTC instant serialized in ISO-8601 with millisecond
// precision, e.g. "2024-05-01T12:34:56.789Z".
type Timestamp struct {
	time.Time
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Now returns the current instant truncated to millisecond precision.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Millisecond)}
}

// At wraps t as a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timestampLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		// be lenient about precision on the way in
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// BasicMedia is a single media resource: a URL plus whatever metadata
// could be determined for it.
type BasicMedia struct {
	URL         string `json:"u"`
	Description string `json:"d,omitempty"`

	// Signature authenticates URL to a downstream media proxy. 27
	// URL-safe base64 characters, present only when signing is enabled.
	Signature string `json:"s,omitempty"`

	Height *int   `json:"h,omitempty"`
	Width  *int   `json:"w,omitempty"`
	Mime   string `json:"m,omitempty"`
}

// HasDims reports whether both dimensions are known.
func (m *BasicMedia) HasDims() bool {
	return m.Width != nil && m.Height != nil
}

// IsEmpty reports whether the media carries no usable URL.
func (m *BasicMedia) IsEmpty() bool {
	return m == nil || m.URL == ""
}

// Media is a primary media resource plus an ordered list of alternate
// renditions (transcodes, different sizes).
type Media struct {
	BasicMedia

	Alternates []BasicMedia `json:"a,omitempty"`
}

// NewMedia returns a media with only the URL set.
func NewMedia(url string) *Media {
	return &Media{BasicMedia: BasicMedia{URL: url}}
}

// Normalize promotes the first alternate into the primary slot while the
// primary URL is empty. Alternates with empty URLs are consumed in order.
func (m *Media) Normalize() {
	for m.URL == "" && len(m.Alternates) > 0 {
		alt := m.Alternates[0]
		m.Alternates = m.Alternates[1:]
		m.BasicMedia = alt
	}
}

// IsEmpty reports whether the media carries no usable URL. Defined on
// *Media so the nil-receiver guard survives method promotion: calling
// the promoted (*BasicMedia).IsEmpty on a nil *Media would dereference
// the pointer before the guard runs.
func (m *Media) IsEmpty() bool {
	return m == nil || m.BasicMedia.IsEmpty()
}

// Author identifies the creator of the embedded content.
type Author struct {
	Name string `json:"n"`
	URL  string `json:"u,omitempty"`
	Icon *Media `json:"i,omitempty"`
}

func (a *Author) IsEmpty() bool {
	return a == nil || (a.Name == "" && a.URL == "" && a.Icon.IsEmpty())
}

// Provider identifies the service hosting the embedded content.
type Provider struct {
	Name string `json:"n,omitempty"`
	URL  string `json:"u,omitempty"`
	Icon *Media `json:"i,omitempty"`
}

func (p *Provider) IsEmpty() bool {
	return p == nil || (p.Name == "" && p.URL == "" && p.Icon.IsEmpty())
}

// IsZero lets encoding/json omit an empty provider via omitzero.
func (p Provider) IsZero() bool {
	return p.IsEmpty()
}

// Field is a titled key/value block, optionally with an image.
type Field struct {
	Name  string `json:"n,omitempty"`
	Value string `json:"v,omitempty"`
	Img   *Media `json:"img,omitempty"`
	Block bool   `json:"b,omitempty"`
}

func (f *Field) IsEmpty() bool {
	return f.Name == "" && f.Value == "" && f.Img.IsEmpty()
}

// Footer is the trailing line of an embed.
type Footer struct {
	Text string `json:"t"`
	Icon *Media `json:"i,omitempty"`
}

// EmbedV1 is version 1 of the embed record.
type EmbedV1 struct {
	Timestamp Timestamp `json:"ts"`
	Type      Type      `json:"ty"`
	Flags     Flags     `json:"f,omitempty"`

	URL       string `json:"u,omitempty"`
	Canonical string `json:"c,omitempty"`

	Title       string `json:"t,omitempty"`
	Description string `json:"d,omitempty"`

	Color *uint32 `json:"ac,omitempty"`

	Author   *Author  `json:"au,omitempty"`
	Provider Provider `json:"p,omitzero"`

	Object *Media  `json:"obj,omitempty"`
	Images []Media `json:"img,omitempty"`
	Audio  *Media  `json:"audio,omitempty"`
	Video  *Media  `json:"vid,omitempty"`
	Thumb  *Media  `json:"thumb,omitempty"`

	Fields []Field `json:"fields,omitempty"`
	Footer *Footer `json:"footer,omitempty"`
}

// New returns a plain-link embed stamped with the current time.
func New() *EmbedV1 {
	return &EmbedV1{Timestamp: Now(), Type: TypeLink}
}

// IsEmpty reports whether the embed carries nothing beyond its timestamp
// and type.
func (e *EmbedV1) IsEmpty() bool {
	return e.URL == "" && e.Canonical == "" &&
		e.Title == "" && e.Description == "" &&
		e.Color == nil && e.Author.IsEmpty() && e.Provider.IsEmpty() &&
		e.Object == nil && len(e.Images) == 0 &&
		e.Audio == nil && e.Video == nil && e.Thumb == nil &&
		len(e.Fields) == 0 && e.Footer == nil
}

// IsPlainLink reports whether the embed is nothing but a URL.
func (e *EmbedV1) IsPlainLink() bool {
	return e.URL != "" && e.Canonical == "" &&
		e.Title == "" && e.Description == "" &&
		e.Author.IsEmpty() && e.Provider.IsEmpty() &&
		e.Object == nil && len(e.Images) == 0 &&
		e.Audio == nil && e.Video == nil && e.Thumb == nil &&
		len(e.Fields) == 0 && e.Footer == nil
}

// Embed is the versioned wire form. Only version "1" exists.
type Embed struct {
	*EmbedV1
}

// Wrap tags v1 with its version for serialization.
func Wrap(v1 *EmbedV1) Embed {
	return Embed{EmbedV1: v1}
}

func (e Embed) MarshalJSON() ([]byte, error) {
	type v1 EmbedV1
	return json.Marshal(struct {
		V string `json:"v"`
		*v1
	}{V: "1", v1: (*v1)(e.EmbedV1)})
}

func (e *Embed) UnmarshalJSON(b []byte) error {
	var version struct {
		V string `json:"v"`
	}
	if err := json.Unmarshal(b, &version); err != nil {
		return err
	}
	if version.V != "1" {
		return fmt.Errorf("unknown embed version %q", version.V)
	}
	e.EmbedV1 = new(EmbedV1)
	return json.Unmarshal(b, e.EmbedV1)
}

// Expiring pairs an embed with its expiry instant. It serializes as the
// two-element array returned by the HTTP API.
type Expiring struct {
	Expires Timestamp
	Embed   *EmbedV1
}

func (x Expiring) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{x.Expires, Wrap(x.Embed)})
}

func (x *Expiring) UnmarshalJSON(b []byte) error {
	var wrapped Embed
	parts := [2]any{&x.Expires, &wrapped}
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	x.Embed = wrapped.EmbedV1
	return nil
}
