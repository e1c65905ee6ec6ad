// Package plateau implements the quality plateau monitor (C6): a
// worthiness sliding window and a content/URL diversity sliding window,
// combined with OR semantics — either window signals a stop.
package plateau

import (
	"fmt"
	"regexp"

	"github.com/demomirror/crawler/internal/model"
)

// Thresholds bundles the site-type-scoped stop thresholds; it is the same
// shape the hybrid planner (C10) attaches to a CrawlPlan.
type Thresholds = model.SiteTypeThresholds

// thresholdTable holds the explicit, enumerated per-site-type thresholds.
// WindowSize here is the worthiness window; the diversity window always
// runs at diversityWindowSize regardless of site type.
var thresholdTable = map[model.SiteType]Thresholds{
	model.SiteEcommerce: {WorthyThreshold: 0.15, SimilarityThreshold: 0.95, WindowSize: 20},
	model.SiteBanking:   {WorthyThreshold: 0.3, SimilarityThreshold: 0.8, WindowSize: 20},
	model.SiteNews:      {WorthyThreshold: 0.4, SimilarityThreshold: 0.7, WindowSize: 20},
}

var defaultThresholds = Thresholds{WorthyThreshold: 0.3, SimilarityThreshold: 0.8, WindowSize: 20}

const diversityWindowSize = 15

// ThresholdsFor returns the explicit threshold set for a site type, falling
// back to the default (0.3 worthy / 0.8 similarity) for any type without a
// dedicated entry.
func ThresholdsFor(siteType model.SiteType) Thresholds {
	if t, ok := thresholdTable[siteType]; ok {
		return t
	}
	return defaultThresholds
}

var numericRunRe = regexp.MustCompile(`\d+`)

// URLPattern collapses numeric path segments to a placeholder so that
// /product/1042 and /product/88 fall into the same diversity bucket.
func URLPattern(rawURL string) string {
	return numericRunRe.ReplaceAllString(rawURL, "#")
}

// Monitor observes page-level decisions and reports when the crawl has
// plateaued. Not safe for concurrent use without external synchronization;
// the orchestrator calls Record from its single decision loop.
type Monitor struct {
	thresholds Thresholds

	worthySeq []bool

	hashSeq    []string
	patternSeq []string
}

// New builds a Monitor scoped to one site type's thresholds.
func New(siteType model.SiteType) *Monitor {
	return &Monitor{thresholds: ThresholdsFor(siteType)}
}

// Verdict is the outcome of a Record call.
type Verdict struct {
	ShouldStop bool
	Reason     string
}

// Record pushes one page's decision into both sliding windows and reports
// whether either now signals a plateau. Both windows are always updated;
// the worthiness window is checked first, short-circuiting the diversity
// check when it already calls for a stop.
func (m *Monitor) Record(isWorthy bool, contentHash, rawURL string) Verdict {
	m.pushWorthy(isWorthy)
	m.pushDiversity(contentHash, URLPattern(rawURL))

	if v := m.checkWorthiness(); v.ShouldStop {
		return v
	}
	return m.checkDiversity()
}

func (m *Monitor) pushWorthy(isWorthy bool) {
	m.worthySeq = append(m.worthySeq, isWorthy)
	if len(m.worthySeq) > m.thresholds.WindowSize {
		m.worthySeq = m.worthySeq[1:]
	}
}

func (m *Monitor) pushDiversity(contentHash, pattern string) {
	m.hashSeq = append(m.hashSeq, contentHash)
	if len(m.hashSeq) > diversityWindowSize {
		m.hashSeq = m.hashSeq[1:]
	}
	m.patternSeq = append(m.patternSeq, pattern)
	if len(m.patternSeq) > diversityWindowSize {
		m.patternSeq = m.patternSeq[1:]
	}
}

func (m *Monitor) checkWorthiness() Verdict {
	if len(m.worthySeq) < m.thresholds.WindowSize {
		return Verdict{}
	}
	worthyCount := 0
	for _, w := range m.worthySeq {
		if w {
			worthyCount++
		}
	}
	mean := float64(worthyCount) / float64(len(m.worthySeq))
	if mean < m.thresholds.WorthyThreshold {
		return Verdict{
			ShouldStop: true,
			Reason: fmt.Sprintf(
				"quality plateau: %.0f%% worthy in last %d pages (threshold %.0f%%)",
				mean*100, len(m.worthySeq), m.thresholds.WorthyThreshold*100,
			),
		}
	}
	return Verdict{}
}

func (m *Monitor) checkDiversity() Verdict {
	if len(m.hashSeq) < diversityWindowSize {
		return Verdict{}
	}

	hashRatio := uniqueRatio(m.hashSeq)
	patternRatio := uniqueRatio(m.patternSeq)

	maxSimilarDup := 1 - m.thresholds.SimilarityThreshold
	if hashRatio < maxSimilarDup || patternRatio < 0.3 {
		return Verdict{
			ShouldStop: true,
			Reason: fmt.Sprintf(
				"quality plateau: content diversity %.0f%%, URL-pattern diversity %.0f%% in last %d pages",
				hashRatio*100, patternRatio*100, diversityWindowSize,
			),
		}
	}
	return Verdict{}
}

func uniqueRatio(seq []string) float64 {
	if len(seq) == 0 {
		return 1
	}
	seen := make(map[string]bool, len(seq))
	for _, s := range seq {
		seen[s] = true
	}
	return float64(len(seen)) / float64(len(seq))
}

// Stats is a point-in-time snapshot suitable for a status endpoint.
type Stats struct {
	WorthyWindowSize   int
	WorthyCount        int
	DiversityWindowSize int
	UniqueHashRatio    float64
	UniquePatternRatio float64
}

// Snapshot reports the monitor's current window contents without mutating
// them.
func (m *Monitor) Snapshot() Stats {
	worthyCount := 0
	for _, w := range m.worthySeq {
		if w {
			worthyCount++
		}
	}
	return Stats{
		WorthyWindowSize:    len(m.worthySeq),
		WorthyCount:         worthyCount,
		DiversityWindowSize: len(m.hashSeq),
		UniqueHashRatio:     uniqueRatio(m.hashSeq),
		UniquePatternRatio:  uniqueRatio(m.patternSeq),
	}
}
