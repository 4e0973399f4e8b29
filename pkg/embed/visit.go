package embed

// VisitFullMedia applies f to every Media slot reachable from the embed:
// object, images, audio, video, thumbnail, icons and field images.
func (e *EmbedV1) VisitFullMedia(f func(*Media)) {
	if e.Object != nil {
		f(e.Object)
	}
	for i := range e.Images {
		f(&e.Images[i])
	}
	if e.Audio != nil {
		f(e.Audio)
	}
	if e.Video != nil {
		f(e.Video)
	}
	if e.Thumb != nil {
		f(e.Thumb)
	}
	if e.Author != nil && e.Author.Icon != nil {
		f(e.Author.Icon)
	}
	if e.Provider.Icon != nil {
		f(e.Provider.Icon)
	}
	if e.Footer != nil && e.Footer.Icon != nil {
		f(e.Footer.Icon)
	}
	for i := range e.Fields {
		if e.Fields[i].Img != nil {
			f(e.Fields[i].Img)
		}
	}
}

// VisitMedia applies f to every BasicMedia reachable from the embed,
// including the alternates of each Media slot.
func (e *EmbedV1) VisitMedia(f func(*BasicMedia)) {
	e.VisitFullMedia(func(m *Media) {
		f(&m.BasicMedia)
		for i := range m.Alternates {
			f(&m.Alternates[i])
		}
	})
}

// VisitText applies f to every user-facing text field except media
// descriptions, which carry their own length limit.
func (e *EmbedV1) VisitText(f func(*string)) {
	f(&e.Title)
	f(&e.Description)
	if e.Author != nil {
		f(&e.Author.Name)
	}
	f(&e.Provider.Name)
	if e.Footer != nil {
		f(&e.Footer.Text)
	}
	for i := range e.Fields {
		f(&e.Fields[i].Name)
		f(&e.Fields[i].Value)
	}
}

// NormalizeMedia recursively normalizes every media slot, promoting
// alternates into empty primaries.
func (e *EmbedV1) NormalizeMedia() {
	e.VisitFullMedia(func(m *Media) { m.Normalize() })
}

// DeriveType recomputes the embed type from the populated media slots.
// Object-bearing embeds become HTML; otherwise images win over video,
// video over audio, and an embed with no media is a plain link. Article
// is never derived, only assigned by extractors.
func (e *EmbedV1) DeriveType() {
	switch {
	case len(e.Images) > 0:
		e.Type = TypeImage
	case e.Video != nil:
		e.Type = TypeVideo
	case e.Audio != nil:
		e.Type = TypeAudio
	case e.Object != nil:
		e.Type = TypeHTML
	case e.Type == TypeArticle:
		// keep
	default:
		e.Type = TypeLink
	}
}
