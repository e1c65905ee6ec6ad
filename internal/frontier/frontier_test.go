package frontier

import (
	"testing"

	"github.com/demomirror/crawler/internal/config"
	"github.com/stretchr/testify/require"
)

func TestMemoryFrontierNeverRevisits(t *testing.T) {
	f := NewMemoryFrontier(config.BFS, 0, 0)

	item := NewURLItem("https://example.com/a", "https://example.com/a", "example.com", 0, "")
	require.True(t, f.Push(item))
	f.MarkVisited(item.NormalizedURL)

	// Re-pushing an already-visited URL must be rejected.
	ok := f.Push(NewURLItem("https://example.com/a", "https://example.com/a", "example.com", 1, "seed"))
	require.False(t, ok)
	require.True(t, f.Contains(item.NormalizedURL))
}

func TestMemoryFrontierBFSOrder(t *testing.T) {
	f := NewMemoryFrontier(config.BFS, 0, 0)

	f.Push(NewURLItem("https://example.com/1", "https://example.com/1", "example.com", 0, ""))
	f.Push(NewURLItem("https://example.com/2", "https://example.com/2", "example.com", 0, ""))

	first := f.Pop()
	second := f.Pop()

	require.Equal(t, "https://example.com/1", first.URL)
	require.Equal(t, "https://example.com/2", second.URL)
}

func TestMemoryFrontierDFSOrder(t *testing.T) {
	f := NewMemoryFrontier(config.DFS, 0, 0)

	f.Push(NewURLItem("https://example.com/1", "https://example.com/1", "example.com", 0, ""))
	f.Push(NewURLItem("https://example.com/2", "https://example.com/2", "example.com", 0, ""))

	first := f.Pop()
	require.Equal(t, "https://example.com/2", first.URL)
}

func TestMemoryFrontierStatsTracksDuplicates(t *testing.T) {
	f := NewMemoryFrontier(config.BFS, 0, 0)

	f.Push(NewURLItem("https://example.com/1", "https://example.com/1", "example.com", 0, ""))
	f.Push(NewURLItem("https://example.com/1", "https://example.com/1", "example.com", 1, ""))

	stats := f.Stats()
	require.Equal(t, 1, stats.TotalAdded)
	require.Equal(t, 1, stats.Duplicates)
}
