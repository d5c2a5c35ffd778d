package rss

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFeeds_YAML(t *testing.T) {
	path := writeFile(t, "feeds.yaml", `
feeds:
  - url: https://breakingdefense.com/feed/
    name: Breaking Defense
    region: Americas
    domain: Industry
  - url: https://www.navalnews.com/feed/
    name: Naval News
    domain: sea
  - name: No URL
  - https://example.com/rss
`)

	sources, err := LoadFeeds(path)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, FeedSource{URL: "https://breakingdefense.com/feed/", Name: "Breaking Defense", Region: "americas", Domain: "industry"}, sources[0])
	assert.Equal(t, "sea", sources[1].Domain)
	assert.Empty(t, sources[1].Region)
	assert.Equal(t, "https://example.com/rss", sources[2].URL)
	assert.Equal(t, "Unknown", sources[2].Name)
}

func TestLoadFeeds_JSONArray(t *testing.T) {
	path := writeFile(t, "feeds.json", `[
  {"url": "https://www.defensenews.com/arc/outboundfeeds/rss/", "name": "Defense News", "region": "global", "domain": "general"},
  {"url": "", "name": "Broken"}
]`)

	sources, err := LoadFeeds(path)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Defense News", sources[0].Name)
	assert.Equal(t, "global", sources[0].Region)
}

func TestLoadFeeds_Errors(t *testing.T) {
	_, err := LoadFeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, "bad.yaml", "feeds: [unterminated")
	_, err = LoadFeeds(path)
	assert.Error(t, err)

	path = writeFile(t, "scalar.yaml", "just a string")
	_, err = LoadFeeds(path)
	assert.Error(t, err)
}

func TestParseFeeds_Empty(t *testing.T) {
	sources, err := ParseFeeds([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, sources)
}
