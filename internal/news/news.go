package news

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/deusflow/milnews/internal/rss"
)

const (
	UntitledTitle = "(untitled)"
	MissingLink   = "#"
)

// Article is a normalized feed entry. Articles are never mutated after
// Normalize returns them.
type Article struct {
	Title     string
	Link      string
	Summary   string
	Source    string
	Published time.Time // zero when the feed gave no usable timestamp
	Image     string
	Region    string
	Domain    string
}

// HasTimestamp reports whether the article carries a known publish time.
func (a Article) HasTimestamp() bool {
	return !a.Published.IsZero()
}

// PublishedLabel renders the publish time for display, empty when unknown.
func (a Article) PublishedLabel() string {
	if !a.HasTimestamp() {
		return ""
	}
	return a.Published.Local().Format("2006-01-02 15:04")
}

type articleJSON struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	Summary        string `json:"summary"`
	Source         string `json:"source"`
	Published      int64  `json:"published,omitempty"`
	PublishedLabel string `json:"published_label,omitempty"`
	Image          string `json:"image,omitempty"`
	Region         string `json:"region"`
	Domain         string `json:"domain"`
}

// MarshalJSON encodes the publish time as epoch seconds.
func (a Article) MarshalJSON() ([]byte, error) {
	out := articleJSON{
		Title:          a.Title,
		Link:           a.Link,
		Summary:        a.Summary,
		Source:         a.Source,
		PublishedLabel: a.PublishedLabel(),
		Image:          a.Image,
		Region:         a.Region,
		Domain:         a.Domain,
	}
	if a.HasTimestamp() {
		out.Published = a.Published.Unix()
	}
	return json.Marshal(out)
}

// Normalize turns one raw entry into an Article. It never fails: missing or
// malformed fields fall back to their defaults.
func Normalize(entry rss.Entry, src rss.FeedSource) Article {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = UntitledTitle
	}
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		link = MissingLink
	}

	published, _ := PublishedAt(entry)

	return Article{
		Title:     title,
		Link:      link,
		Summary:   Summarize(rawSummary(entry)),
		Source:    src.Name,
		Published: published,
		Image:     resolveImage(FindImage(entry), link),
		Region:    strings.ToLower(src.Region),
		Domain:    strings.ToLower(src.Domain),
	}
}

// PublishedAt returns the entry's published time, falling back to its
// updated time. Raw date strings the feed parser could not read are retried
// with a lenient parser.
func PublishedAt(entry rss.Entry) (time.Time, bool) {
	candidates := []struct {
		parsed *time.Time
		raw    string
	}{
		{entry.PublishedParsed, entry.Published},
		{entry.UpdatedParsed, entry.Updated},
	}

	for _, c := range candidates {
		if c.parsed != nil && !c.parsed.IsZero() {
			return c.parsed.UTC(), true
		}
		raw := strings.TrimSpace(c.raw)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil && !t.IsZero() {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// rawSummary prefers the entry summary and falls back to the first content
// block.
func rawSummary(entry rss.Entry) string {
	if strings.TrimSpace(entry.Summary) != "" {
		return entry.Summary
	}
	for _, block := range entry.Content {
		if strings.TrimSpace(block) != "" {
			return block
		}
	}
	return ""
}
