package query

import "strings"

var (
	regions = []string{"americas", "europe", "asia", "middle-east", "africa", "global"}
	domains = []string{"general", "land", "air", "sea", "space", "cyber", "policy", "industry", "analysis"}
)

// Regions lists the region tags offered as filter choices.
func Regions() []string {
	return append([]string(nil), regions...)
}

// Domains lists the domain tags offered as filter choices.
func Domains() []string {
	return append([]string(nil), domains...)
}

// StopWords is an immutable set of tokens ignored by keyword trends.
type StopWords struct {
	set map[string]struct{}
}

// NewStopWords builds a set from words, lower-cased. Hyphenated words also
// contribute their parts, since titles are tokenized on punctuation.
func NewStopWords(words ...string) StopWords {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
		for _, part := range tokenize(w) {
			set[part] = struct{}{}
		}
	}
	return StopWords{set: set}
}

// Contains reports whether word is a stop word.
func (s StopWords) Contains(word string) bool {
	_, ok := s.set[word]
	return ok
}

var englishStopWords = []string{
	"about", "above", "across", "after", "again", "against", "also", "amid", "among",
	"around", "because", "been", "before", "being", "below", "between", "both",
	"could", "does", "doing", "down", "during", "each", "even", "ever", "from",
	"further", "have", "having", "here", "however", "into", "just", "like", "made",
	"make", "many", "more", "most", "much", "must", "near", "next", "only", "onto",
	"other", "over", "said", "says", "same", "should", "since", "some", "still",
	"such", "than", "that", "their", "them", "then", "there", "these", "they",
	"this", "those", "through", "under", "until", "upon", "very", "want", "were",
	"what", "when", "where", "which", "while", "whom", "will", "with", "within",
	"without", "would", "year", "years", "your", "week", "today", "report", "reports",
	"news", "update", "first", "last", "back", "take", "takes", "gets",
}

// Branch and filter vocabulary that would otherwise dominate the trend panel.
var domainNoiseWords = []string{
	"army", "armies", "navy", "naval", "force", "forces", "marine", "marines",
	"corps", "guard", "military", "defense", "defence", "pentagon", "ministry",
	"americas", "america", "american", "europe", "european", "asia", "asian",
	"middle-east", "africa", "african", "global", "world",
	"general", "land", "space", "cyber", "policy", "industry", "analysis",
}

var defaultStopWords = NewStopWords(append(append([]string(nil), englishStopWords...), domainNoiseWords...)...)

// DefaultStopWords returns the built-in stop-word set.
func DefaultStopWords() StopWords {
	return defaultStopWords
}
