package coverage

import (
	"testing"

	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

func TestSnapshotZeroStateHasNoCoverageOrETA(t *testing.T) {
	tr := New("run1", nil)
	snap := tr.Snapshot()

	require.Equal(t, 0.0, snap.CoveragePct)
	require.Nil(t, snap.ETASeconds)
	require.Equal(t, model.TrendInsufficient, snap.QualityTrend)
}

func TestSnapshotComputesCoveragePctFromUnion(t *testing.T) {
	tr := New("run1", []string{"https://a.com/1", "https://a.com/2", "https://a.com/3", "https://a.com/4"})
	tr.RecordDiscovered("https://a.com/5")
	tr.RecordCrawled("https://a.com/1", 0.8)
	tr.RecordCrawled("https://a.com/2", 0.7)

	snap := tr.Snapshot()
	require.Equal(t, 5, snap.TotalKnownURLs)
	require.Equal(t, 2, snap.PagesCrawled)
	require.InDelta(t, 40.0, snap.CoveragePct, 0.001)
}

func TestSnapshotTracksDiscoveredAndFailedIndependently(t *testing.T) {
	tr := New("run1", []string{"https://a.com/1"})
	tr.RecordDiscovered("https://a.com/2")
	tr.RecordFailed("https://a.com/2")
	tr.RecordCrawled("https://a.com/1", 0.9)

	snap := tr.Snapshot()
	require.Equal(t, 2, snap.TotalKnownURLs)
	require.Equal(t, 1, snap.PagesCrawled)
}

func TestQualityTrendInsufficientBelowThreeScores(t *testing.T) {
	require.Equal(t, model.TrendInsufficient, qualityTrend(nil))
	require.Equal(t, model.TrendInsufficient, qualityTrend([]float64{0.5}))
	require.Equal(t, model.TrendInsufficient, qualityTrend([]float64{0.5, 0.6}))
}

func TestQualityTrendImprovingWhenSecondHalfHigher(t *testing.T) {
	trend := qualityTrend([]float64{0.2, 0.2, 0.9, 0.9})
	require.Equal(t, model.TrendImproving, trend)
}

func TestQualityTrendDecliningWhenSecondHalfLower(t *testing.T) {
	trend := qualityTrend([]float64{0.9, 0.9, 0.2, 0.2})
	require.Equal(t, model.TrendDeclining, trend)
}

func TestQualityTrendStableWithinThreshold(t *testing.T) {
	trend := qualityTrend([]float64{0.5, 0.51, 0.52, 0.5})
	require.Equal(t, model.TrendStable, trend)
}

func TestQualityTrendUsesOnlyLastFiveScores(t *testing.T) {
	history := []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.1, 0.1, 0.1, 0.1, 0.1}
	require.Equal(t, model.TrendDeclining, qualityTrend(history))
}

func TestRecordCrawledBoundsQualityHistoryToTwenty(t *testing.T) {
	tr := New("run1", nil)
	for i := 0; i < 25; i++ {
		tr.RecordCrawled("https://a.com/x", 0.5)
	}
	require.Len(t, tr.qualityHistory, qualityHistorySize)
}

func TestSetStopRecordsPlateauAndReason(t *testing.T) {
	tr := New("run1", nil)
	tr.SetStop(model.PhaseQualityPlateau, true, "quality plateau: 10% worthy in last 20 pages")

	snap := tr.Snapshot()
	require.Equal(t, model.PhaseQualityPlateau, snap.Phase)
	require.True(t, snap.PlateauDetected)
	require.Contains(t, snap.StopReason, "plateau")
}
