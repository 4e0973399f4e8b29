package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/extractor/generic"
	"github.com/edgecomet/unfurl/internal/extractor/parser"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// FurAffinity scrapes submission pages. Viewing them requires the a/b
// session cookies of a logged-in account and a browser user agent.
type FurAffinity struct {
	cookie    string
	userAgent string
}

// NewFurAffinity builds the extractor when an [extractors.furaffinity]
// table with the a and b cookie values is configured. The %browser user
// agent must also be defined.
func NewFurAffinity(cfg *config.Config) (extractor.Extractor, error) {
	opts, ok := cfg.Extractor("furaffinity")
	if !ok {
		return nil, nil
	}

	a := opts["a"]
	if a == "" {
		return nil, missingField("furaffinity.a")
	}
	b := opts["b"]
	if b == "" {
		return nil, missingField("furaffinity.b")
	}

	ua, ok := cfg.UserAgent("%browser")
	if !ok {
		return nil, config.InvalidUserAgent("%browser not found")
	}

	return &FurAffinity{
		cookie:    fmt.Sprintf("b=%s; a=%s", b, a),
		userAgent: ua,
	}, nil
}

func (*FurAffinity) Name() string { return "furaffinity" }

func (*FurAffinity) Matches(u *url.URL) bool {
	switch u.Hostname() {
	case "furaffinity.net", "www.furaffinity.net":
		return strings.HasPrefix(u.Path, "/view/")
	}
	return false
}

func (*FurAffinity) Setup(context.Context, *extractor.State) error { return nil }

// adult/graphic tag lists compensate for the site's lax rating
// enforcement; best-effort, not exhaustive.
var (
	faAdultTags = parser.NewTagChecker(
		"nsfw", "sex", "horny", "r18", "fetish", "hentai", "yiff",
		"rape", "necrophilia", "vore", "hyper", "clit",
		"erection", "penis", "cum", "pussy", "dick",
		"porn", "ssbbw", "immobility", "ussbbw",
	)
	faGraphicTags = parser.NewTagChecker("gore", "snuff", "necrophilia")
)

func (x *FurAffinity) Extract(ctx context.Context, state *extractor.State, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	req, err := state.NewRequest(ctx, http.MethodGet, u.String())
	if err != nil {
		return embed.Expiring{}, err
	}
	req.Header.Set("Cookie", x.cookie)
	req.Header.Set("User-Agent", x.userAgent)

	resp, err := state.Fetch(req, 1)
	if err != nil {
		return embed.Expiring{}, err
	}
	defer resp.Body.Close()

	body, err := extractor.ReadBody(resp, state.Config.Limits.MaxHTMLSize)
	if err != nil {
		return embed.Expiring{}, err
	}

	e, needsResolve, err := parseSubmission(body, u)
	if err != nil {
		return embed.Expiring{}, err
	}

	if needsResolve {
		generic.ResolveMedia(ctx, state, nil, e)
	}

	e.Provider.Name = "FurAffinity"
	e.Provider.URL = "https://www.furaffinity.net"
	e.Provider.Icon = embed.NewMedia("https://www.furaffinity.net/themes/beta/img/favicon.ico")

	age := fourHours
	return generic.Finalize(state, e, &age), nil
}

func parseSubmission(body string, u *url.URL) (*embed.EmbedV1, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, false, err
	}

	e := embed.New()
	e.URL = pageURL(u)
	e.Color = rgb(0xadd8f5)

	needsResolve := parseSubmissionMedia(doc, e)

	if node := doc.Find("div.submission-description").First(); node.Length() > 0 {
		e.Description = accumulateDescription(node.Get(0))
	}

	author := &embed.Author{}

	if title := doc.Find("div.submission-title").First(); title.Length() > 0 {
		e.Title = strings.TrimSpace(title.Text())

		// the author link follows the title: <a href="/user/NAME">
		title.NextAll().EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, ok := sel.Attr("href")
			if !ok || !strings.HasPrefix(href, "/user/") {
				return true
			}
			author.URL = "https://www.furaffinity.net" + href
			author.Name = strings.TrimSpace(sel.Text())
			return false
		})
	}

	if icon := doc.Find("img.submission-user-icon").First(); icon.Length() > 0 {
		if src, ok := icon.Attr("src"); ok {
			iconMedia := embed.NewMedia(fixRelativeScheme(src))
			iconMedia.Mime = parser.GuessMime(iconMedia.URL)
			author.Icon = iconMedia
		}
	}

	if !author.IsEmpty() {
		e.Author = author
	}

	if rating := doc.Find("span.rating-box").First(); rating.Length() > 0 {
		if !rating.HasClass("general") {
			e.Flags |= embed.FlagAdult
		}
	}

	doc.Find("span.tags > a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		tag := strings.TrimSpace(sel.Text())
		if !e.Flags.Contains(embed.FlagAdult) && faAdultTags.Contains(tag) {
			e.Flags |= embed.FlagAdult
		}
		if !e.Flags.Contains(embed.FlagGraphic) && faGraphicTags.Contains(tag) {
			e.Flags |= embed.FlagGraphic
		}
		return !e.Flags.Contains(embed.FlagAdult | embed.FlagGraphic)
	})

	return e, needsResolve, nil
}

// parseSubmissionMedia finds the first media element in the submission
// area and slots it into the embed. It reports whether mime or
// dimensions are still unknown and need network resolution.
func parseSubmissionMedia(doc *goquery.Document, e *embed.EmbedV1) bool {
	area := doc.Find("div.submission-area").First()
	if area.Length() == 0 {
		return false
	}

	var (
		src, alt string
		kind     string
	)
	area.Find("img, audio, video, object").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		kind = goquery.NodeName(sel)
		src, _ = sel.Attr("src")
		alt, _ = sel.Attr("alt")
		return false
	})

	if src == "" || kind == "" || kind == "object" {
		return false
	}

	media := embed.NewMedia(fixRelativeScheme(src))
	media.Mime = parser.GuessMime(media.URL)
	media.Description = alt

	if kind != "audio" {
		if w, h, ok := parseSizeHighlight(doc); ok {
			media.Width, media.Height = &w, &h
		}
	}

	switch kind {
	case "img":
		// text submissions show a preview card, better used as a thumb
		if area.HasClass("submission-writing") {
			e.Thumb = media
		} else {
			e.Images = append(e.Images, *media)
		}
	case "video":
		e.Video = media
	case "audio":
		e.Audio = media
	}

	return media.Mime == "" || !media.HasDims()
}

// parseSizeHighlight reads the "Size" info entry, whose sibling span
// holds "WIDTH x HEIGHTpx".
func parseSizeHighlight(doc *goquery.Document) (w, h int, ok bool) {
	doc.Find("div.info > div > strong.highlight").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(sel.Text()), "size") {
			return true
		}

		sel.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			if goquery.NodeName(sib) != "span" {
				return true
			}
			text := strings.TrimSuffix(strings.TrimSpace(sib.Text()), "px")
			ws, hs, found := strings.Cut(text, "x")
			if !found {
				return true
			}
			width, werr := strconv.Atoi(strings.TrimSpace(ws))
			height, herr := strconv.Atoi(strings.TrimSpace(hs))
			if werr != nil || herr != nil {
				return true
			}
			w, h, ok = width, height, true
			return false
		})
		return !ok
	})
	return w, h, ok
}

// accumulateDescription flattens the description subtree to text:
// <br> becomes a newline and <img> contributes its alt text unless the
// following text node repeats it.
func accumulateDescription(root *html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimLeft(strings.Trim(n.Data, "\r\n"), " \t"))
		case html.ElementNode:
			switch n.Data {
			case "br":
				if !strings.HasSuffix(b.String(), "\n\n") {
					b.WriteByte('\n')
				}
			case "img":
				alt := attrValue(n, "alt")
				if alt == "" {
					break
				}
				// skip alt text duplicated right after the element
				if next := n.NextSibling; next != nil && next.Type == html.TextNode &&
					strings.TrimSpace(next.Data) == alt {
					break
				}
				b.WriteString(alt)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}

	return strings.TrimRight(b.String(), " \t\r\n")
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// fixRelativeScheme completes protocol-relative asset URLs.
func fixRelativeScheme(link string) string {
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}
