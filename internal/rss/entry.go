package rss

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Entry is a parsed feed item reduced to the fields the normalizer reads.
// Every field is optional.
type Entry struct {
	Title   string
	Link    string
	Summary string
	Content []string

	Published       string
	PublishedParsed *time.Time
	Updated         string
	UpdatedParsed   *time.Time

	MediaContent   []Media
	MediaThumbnail []Media
	Links          []Link
	Enclosures     []Link
}

// Media is a media:content or media:thumbnail element.
type Media struct {
	URL  string
	Type string
}

// Link is a link or enclosure. Type is empty for links that came from
// gofeed's untyped Item.Links.
type Link struct {
	Href string
	Type string
	Rel  string
}

// FromItem converts a gofeed item. A nil item yields an empty Entry.
func FromItem(item *gofeed.Item) Entry {
	if item == nil {
		return Entry{}
	}

	e := Entry{
		Title:           item.Title,
		Link:            item.Link,
		Summary:         item.Description,
		Published:       item.Published,
		PublishedParsed: item.PublishedParsed,
		Updated:         item.Updated,
		UpdatedParsed:   item.UpdatedParsed,
	}
	if item.Content != "" {
		e.Content = []string{item.Content}
	}

	if media, ok := item.Extensions["media"]; ok {
		e.MediaContent = mediaElements(media, "content")
		e.MediaThumbnail = mediaElements(media, "thumbnail")
	}
	// item.Image is ignored: gofeed fills it from itunes:image, enclosures and
	// inline HTML, each of which has its own place in the image fallback order.

	// gofeed flattens links to plain URLs, so they never carry a type. Atom
	// links with rel="enclosure" arrive typed through item.Enclosures instead.
	for _, l := range item.Links {
		if l = strings.TrimSpace(l); l != "" {
			e.Links = append(e.Links, Link{Href: l})
		}
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		e.Enclosures = append(e.Enclosures, Link{Href: enc.URL, Type: enc.Type, Rel: "enclosure"})
	}

	return e
}

// mediaElements collects media:<name> elements in document order, including
// ones nested inside media:group.
func mediaElements(media map[string][]ext.Extension, name string) []Media {
	var out []Media
	for _, el := range media[name] {
		out = append(out, Media{URL: el.Attrs["url"], Type: el.Attrs["type"]})
	}
	for _, group := range media["group"] {
		for _, el := range group.Children[name] {
			out = append(out, Media{URL: el.Attrs["url"], Type: el.Attrs["type"]})
		}
	}
	return out
}
