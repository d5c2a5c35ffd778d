package rss

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/milnews/internal/logger"
)

// ErrEmptyURL is returned for a feed descriptor without a URL.
var ErrEmptyURL = errors.New("feed url is empty")

// FeedSource describes one configured feed.
type FeedSource struct {
	URL    string `yaml:"url" json:"url"`
	Name   string `yaml:"name" json:"name"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	Domain string `yaml:"domain,omitempty" json:"domain,omitempty"`
}

// UnmarshalYAML also accepts a bare URL string as a descriptor:
//
//	feeds:
//	  - https://...
//	  - url: https://...
//	    name: Breaking Defense
func (s *FeedSource) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.URL = node.Value
		return nil
	}
	type plain FeedSource
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = FeedSource(p)
	return nil
}

// FeedsConfig is the YAML config structure. A top-level JSON or YAML array of
// descriptors is accepted as well.
type FeedsConfig struct {
	Feeds []FeedSource `yaml:"feeds"`
}

// LoadFeeds reads the feed registry from a YAML or JSON file. Descriptors
// without a URL are skipped; names default to "Unknown" and region/domain tags
// are lower-cased.
func LoadFeeds(path string) ([]FeedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	return ParseFeeds(data)
}

// ParseFeeds decodes a registry document. JSON is a subset of YAML, so one
// decoder serves both formats.
func ParseFeeds(data []byte) ([]FeedSource, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode feeds: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var raw []FeedSource
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode feeds list: %w", err)
		}
	case yaml.MappingNode:
		var cfg FeedsConfig
		if err := root.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode feeds config: %w", err)
		}
		raw = cfg.Feeds
	default:
		return nil, fmt.Errorf("decode feeds: unexpected document kind %v", root.Kind)
	}

	sources := make([]FeedSource, 0, len(raw))
	for i, src := range raw {
		clean, err := src.normalized()
		if err != nil {
			logger.Warn("Skipping feed descriptor", "index", i, "name", src.Name, "error", err)
			continue
		}
		sources = append(sources, clean)
	}
	return sources, nil
}

func (s FeedSource) normalized() (FeedSource, error) {
	s.URL = strings.TrimSpace(s.URL)
	if s.URL == "" {
		return s, ErrEmptyURL
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = "Unknown"
	}
	s.Region = strings.ToLower(strings.TrimSpace(s.Region))
	s.Domain = strings.ToLower(strings.TrimSpace(s.Domain))
	return s, nil
}
