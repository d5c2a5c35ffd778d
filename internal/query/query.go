// Package query filters, paginates and summarizes an in-memory article list.
package query

import (
	"strings"

	"github.com/deusflow/milnews/internal/news"
)

const DefaultPageSize = 18

// Filters are conjunctive; an empty field matches everything.
//
// Q matches a substring of title and summary. Region and Domain match a
// substring of the article's full searchable text, which includes its tags.
// Source must equal the article source, ignoring case.
type Filters struct {
	Q      string `json:"q"`
	Region string `json:"region"`
	Domain string `json:"domain"`
	Source string `json:"source"`
}

// Normalized trims every filter and lower-cases the text filters.
func (f Filters) Normalized() Filters {
	return Filters{
		Q:      strings.ToLower(strings.TrimSpace(f.Q)),
		Region: strings.ToLower(strings.TrimSpace(f.Region)),
		Domain: strings.ToLower(strings.TrimSpace(f.Domain)),
		Source: strings.TrimSpace(f.Source),
	}
}

// Match reports whether a satisfies every filter. f must be normalized.
func (f Filters) Match(a news.Article) bool {
	if f.Q != "" && !strings.Contains(strings.ToLower(a.Title+" "+a.Summary), f.Q) {
		return false
	}
	if f.Region != "" || f.Domain != "" {
		text := searchableText(a)
		if f.Region != "" && !strings.Contains(text, f.Region) {
			return false
		}
		if f.Domain != "" && !strings.Contains(text, f.Domain) {
			return false
		}
	}
	if f.Source != "" && !strings.EqualFold(a.Source, f.Source) {
		return false
	}
	return true
}

func searchableText(a news.Article) string {
	return strings.ToLower(strings.Join([]string{a.Title, a.Summary, a.Source, a.Region, a.Domain}, " "))
}

// Filter returns the matching articles in their original order.
func Filter(articles []news.Article, f Filters) []news.Article {
	f = f.Normalized()
	out := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

// Result is one page of a query plus trends over every match.
type Result struct {
	Items      []news.Article `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
	Filters    Filters        `json:"filters"`
	Trends     TrendSummary   `json:"trends"`
}

// Run filters articles, computes trends over the filtered set and returns the
// requested page. Out-of-range pages are clamped, never rejected.
func Run(articles []news.Article, f Filters, page, pageSize int, tc TrendConfig) Result {
	f = f.Normalized()
	matched := Filter(articles, f)
	items, page, totalPages := Paginate(matched, page, pageSize)
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return Result{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Total:      len(matched),
		Filters:    f,
		Trends:     Trends(matched, tc),
	}
}

// Paginate slices items for a 1-based page. totalPages is at least 1 and page
// is clamped into [1, totalPages].
func Paginate[T any](items []T, page, pageSize int) ([]T, int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := (len(items) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))
	if start >= end {
		return []T{}, page, totalPages
	}
	return items[start:end], page, totalPages
}
