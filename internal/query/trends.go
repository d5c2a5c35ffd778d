package query

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deusflow/milnews/internal/news"
)

const (
	DefaultTopSources  = 8
	DefaultTopKeywords = 10
	minKeywordRunes    = 4
)

// TrendConfig is passed explicitly into trend computation.
type TrendConfig struct {
	StopWords   StopWords
	TopSources  int
	TopKeywords int
}

// DefaultTrendConfig uses the built-in stop words and caps.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		StopWords:   DefaultStopWords(),
		TopSources:  DefaultTopSources,
		TopKeywords: DefaultTopKeywords,
	}
}

// Count is one ranked (name, count) pair.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TrendSummary is derived per query and never stored.
type TrendSummary struct {
	TopSources  []Count `json:"top_sources"`
	TopKeywords []Count `json:"top_keywords"`
}

// Trends ranks sources and title keywords across articles.
func Trends(articles []news.Article, cfg TrendConfig) TrendSummary {
	if cfg.TopSources <= 0 {
		cfg.TopSources = DefaultTopSources
	}
	if cfg.TopKeywords <= 0 {
		cfg.TopKeywords = DefaultTopKeywords
	}

	sources := newCounter()
	keywords := newCounter()
	for _, a := range articles {
		sources.add(a.Source)
		for _, tok := range tokenize(a.Title) {
			if utf8.RuneCountInString(tok) < minKeywordRunes || cfg.StopWords.Contains(tok) {
				continue
			}
			keywords.add(tok)
		}
	}

	return TrendSummary{
		TopSources:  sources.top(cfg.TopSources),
		TopKeywords: keywords.top(cfg.TopKeywords),
	}
}

// tokenize lower-cases s and splits it on runs of non-alphanumeric runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// counter tallies keys and remembers first-seen order for tie breaking.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) top(n int) []Count {
	ranked := make([]Count, 0, len(c.order))
	for _, key := range c.order {
		ranked = append(ranked, Count{Name: key, Count: c.counts[key]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
