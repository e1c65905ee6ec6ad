package dedup

import (
	"fmt"
	"testing"

	testingutil "github.com/demomirror/crawler/internal/testing"
)

// TestDecideThroughput measures how many Decide calls per second the
// three-tier deduplicator sustains over pages whose copy differs only in the
// page number. Fuzzy normalization replaces those numbers, so after the
// first (canonical) page every call misses the exact-hash map and resolves
// as a near duplicate through a SimHash comparison in the shared fuzzy bucket.
func TestDecideThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping throughput benchmark in short mode")
	}

	d := New()
	bench := testingutil.NewBenchmark("dedup.Decide/distinct-pages")

	const n = 2000
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://example.com/page-%d", i)
		page := articlePage(
			fmt.Sprintf("Page %d", i),
			fmt.Sprintf("This is unique body copy for page number %d describing a distinct product offering.", i),
		)
		bench.Run(func() {
			d.Decide(url, page)
		})
	}

	result := bench.Result()
	t.Logf("\n%s", result.String())

	if result.OpsPerSecond <= 0 {
		t.Fatalf("expected positive throughput, got %f ops/sec", result.OpsPerSecond)
	}
}

// TestDecideThroughputSuiteComparesExactVsFuzzyHeavyLoads uses BenchmarkSuite
// to compare a workload dominated by exact duplicates (short-circuits early)
// against one dominated by near-duplicates (always reaches the simhash tier).
func TestDecideThroughputSuiteComparesExactVsFuzzyHeavyLoads(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping throughput benchmark in short mode")
	}

	const n = 500
	suite := testingutil.NewBenchmarkSuite("dedup.Decide")

	exactPage := articlePage("Our Story", "We have been serving customers since 1998 with dedication and care for every client.")
	exactDeduper := New()
	suite.Add("exact-duplicates", n, func() {
		exactDeduper.Decide("https://example.com/about", exactPage)
	})

	fuzzyDeduper := New()
	i := 0
	suite.Add("near-duplicates", n, func() {
		i++
		page := articlePage("Pricing Plan", fmt.Sprintf("The basic plan costs $%d per month for up to 5 users, updated today.", 10+i))
		fuzzyDeduper.Decide(fmt.Sprintf("https://example.com/pricing/%d", i), page)
	})

	t.Log(suite.Report())

	for _, r := range suite.Results() {
		if r.Runs != n {
			t.Fatalf("%s: expected %d runs, got %d", r.Name, n, r.Runs)
		}
	}
}
