package store

import (
	"path/filepath"
	"testing"

	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestClassificationCacheRoundTrip(t *testing.T) {
	db := openTestDB(t)
	cache := db.Classifications("example.com")

	_, ok := cache.Get("url_abc")
	require.False(t, ok)

	result := model.ClassificationResult{IsWorthy: true, Confidence: 0.8, Reasoning: "test", Method: model.MethodHeuristic}
	cache.Put("url_abc", result)

	got, ok := cache.Get("url_abc")
	require.True(t, ok)
	require.Equal(t, result, got)
}

func TestClassificationCacheIsolatedByDomain(t *testing.T) {
	db := openTestDB(t)
	db.Classifications("a.com").Put("url_x", model.ClassificationResult{IsWorthy: true})

	_, ok := db.Classifications("b.com").Get("url_x")
	require.False(t, ok)
}

func TestDedupOverflowExactRoundTrip(t *testing.T) {
	db := openTestDB(t)
	dedup := db.Dedup("example.com")

	require.NoError(t, dedup.PutExact("hash1", "https://example.com/a"))
	url, ok := dedup.GetExact("hash1")
	require.True(t, ok)
	require.Equal(t, "https://example.com/a", url)
}

func TestDedupOverflowFuzzyBucket(t *testing.T) {
	db := openTestDB(t)
	dedup := db.Dedup("example.com")

	require.NoError(t, dedup.PutFuzzy("fuzzy1", "https://example.com/a", 123))
	require.NoError(t, dedup.PutFuzzy("fuzzy1", "https://example.com/b", 456))

	bucket, err := dedup.FuzzyBucket("fuzzy1")
	require.NoError(t, err)
	require.Len(t, bucket, 2)
}
