package news

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/milnews/internal/rss"
)

// imageExtractor returns an image URL or "" when its source has none.
type imageExtractor func(rss.Entry) string

// imageExtractors run in priority order; the first non-empty result wins.
var imageExtractors = []imageExtractor{
	firstMediaContent,
	firstMediaThumbnail,
	firstImageLink,
	firstInlineImage,
}

// FindImage returns the best-effort thumbnail URL for entry, or "".
func FindImage(entry rss.Entry) string {
	for _, extract := range imageExtractors {
		if u := extract(entry); u != "" {
			return u
		}
	}
	return ""
}

func firstMediaContent(e rss.Entry) string {
	if len(e.MediaContent) == 0 {
		return ""
	}
	return strings.TrimSpace(e.MediaContent[0].URL)
}

func firstMediaThumbnail(e rss.Entry) string {
	if len(e.MediaThumbnail) == 0 {
		return ""
	}
	return strings.TrimSpace(e.MediaThumbnail[0].URL)
}

// firstImageLink scans links, then enclosures, for an image/* type. Feeds
// parsed by gofeed only produce typed enclosures, Atom rel="enclosure" links
// included; the Links pass serves entries built with typed links.
func firstImageLink(e rss.Entry) string {
	for _, group := range [][]rss.Link{e.Links, e.Enclosures} {
		for _, l := range group {
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(l.Type)), "image/") {
				continue
			}
			if href := strings.TrimSpace(l.Href); href != "" {
				return href
			}
		}
	}
	return ""
}

func firstInlineImage(e rss.Entry) string {
	doc := rawSummary(e)
	if !strings.Contains(strings.ToLower(doc), "<img") {
		return ""
	}
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	src, _ := parsed.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// resolveImage makes relative image URLs absolute against the article link.
func resolveImage(raw, base string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return raw
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return raw
	}
	return baseURL.ResolveReference(parsed).String()
}
