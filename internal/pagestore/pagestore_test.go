package pagestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPagePathSanitizesSegmentsAndQuery(t *testing.T) {
	s := New("/out")
	path := s.PagePath("https://Example.com/Blog/My Post!?b=2&a=1")
	require.True(t, strings.HasPrefix(path, filepath.Join("/out", "example-com", "blog", "my-post")))
	require.Contains(t, path, "_q_")
}

func TestPagePathFallsBackToSHA1WhenTooLong(t *testing.T) {
	s := New("/out")
	var segments []string
	for i := 0; i < 30; i++ {
		segments = append(segments, strings.Repeat("a", 40))
	}
	path := s.PagePath("https://example.com/" + strings.Join(segments, "/"))
	require.Contains(t, path, "_overflow")
}

func TestSaveWritesAllFourFiles(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	page := model.PageRecord{
		CanonicalURL:      "https://example.com/about",
		FinalURL:          "https://example.com/about",
		HTTPStatus:        200,
		ContentType:       "text/html",
		RenderedHTML:      "<html><body>About</body></html>",
		ExtractedMarkdown: "# About",
		Title:             "About",
		FetchedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		HTMLFlavor:        model.FlavorRendered,
	}

	require.NoError(t, s.Save(page))

	dir := s.PagePath(page.CanonicalURL)
	for _, name := range []string{"index.md", "index.html", "raw.html", "meta.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	var meta Meta
	require.NoError(t, json.Unmarshal(raw, &meta))
	require.True(t, meta.Success)
	require.Equal(t, "About", meta.Title)
}

func TestSaveFailureRecordsErrorOnly(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.SaveFailure("https://example.com/broken", time.Now(), "connection reset"))

	dir := s.PagePath("https://example.com/broken")
	raw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	var meta Meta
	require.NoError(t, json.Unmarshal(raw, &meta))
	require.False(t, meta.Success)
	require.Equal(t, "connection reset", meta.Error)
}
