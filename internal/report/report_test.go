package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/demomirror/crawler/internal/model"
	testingutil "github.com/demomirror/crawler/internal/testing"
)

func sampleSnapshot() model.CoverageSnapshot {
	return model.CoverageSnapshot{
		RunID:          "crawl_test_1700000000",
		Phase:          model.PhaseCompleted,
		CoveragePct:    92.5,
		PagesCrawled:   37,
		TotalKnownURLs: 40,
		QualityTrend:   model.TrendStable,
		StopReason:     "coverage target reached",
	}
}

func sampleOutcomes() []PageOutcome {
	return []PageOutcome{
		{
			URL:      "https://example.com/",
			SiteType: model.SiteCorporate,
			Classification: model.ClassificationResult{
				IsWorthy:   true,
				Confidence: 0.92,
				Method:     model.MethodHeuristic,
			},
			DedupOutcome: "canonical",
			HTTPStatus:   200,
		},
		{
			URL:      "https://example.com/about-copy",
			SiteType: model.SiteCorporate,
			Classification: model.ClassificationResult{
				IsWorthy:   true,
				Confidence: 0.5,
				Method:     model.MethodHeuristic,
			},
			DedupOutcome: "duplicate",
			HTTPStatus:   200,
		},
	}
}

func TestGenerateCoverageSummaryIncludesKeyMetrics(t *testing.T) {
	gen := NewGenerator(sampleSnapshot(), nil)
	rep, err := gen.Generate(ReportCoverageSummary)
	require.NoError(t, err)
	require.Equal(t, ReportCoverageSummary, rep.Definition.Type)

	values := rowMetrics(rep)
	require.Equal(t, "crawl_test_1700000000", values["Run ID"])
	require.Equal(t, "92.5", values["Coverage %"])
	require.Equal(t, "coverage target reached", values["Stop Reason"])
}

func TestGeneratePageOutcomesOneRowPerPage(t *testing.T) {
	gen := NewGenerator(sampleSnapshot(), sampleOutcomes())
	rep, err := gen.Generate(ReportPageOutcomes)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	require.Equal(t, "duplicate", rep.Rows[1].Values["Dedup Outcome"])
}

func TestGenerateUnknownReportTypeErrors(t *testing.T) {
	gen := NewGenerator(sampleSnapshot(), nil)
	_, err := gen.Generate(ReportType("does_not_exist"))
	require.Error(t, err)
}

func TestExportJSONWritesRowsAndMetadata(t *testing.T) {
	gen := NewGenerator(sampleSnapshot(), sampleOutcomes())
	rep, err := gen.Generate(ReportPageOutcomes)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "outcomes.json")
	exporter := NewExporter(&ExportOptions{Format: FormatJSON, FilePath: path})
	require.NoError(t, exporter.Export(rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed JSONReport
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, string(ReportPageOutcomes), parsed.Metadata.ReportType)
	require.Len(t, parsed.Rows, 2)
}

func TestExportCSVWritesHeaderAndRows(t *testing.T) {
	gen := NewGenerator(sampleSnapshot(), sampleOutcomes())
	rep, err := gen.Generate(ReportPageOutcomes)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "outcomes.csv")
	exporter := NewExporter(&ExportOptions{Format: FormatCSV, FilePath: path})
	require.NoError(t, exporter.Export(rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "URL")
	require.Contains(t, string(data), "example.com")
}

// TestCoverageSummaryMatchesSnapshot guards the coverage summary's metric
// rows against accidental drift using the shared snapshot-comparison helper.
func TestCoverageSummaryMatchesSnapshot(t *testing.T) {
	gen := NewGenerator(sampleSnapshot(), nil)
	rep, err := gen.Generate(ReportCoverageSummary)
	require.NoError(t, err)

	sm := testingutil.NewSnapshotManager(t.TempDir())
	diff, err := sm.Compare("coverage_summary", rowMetrics(rep))
	require.NoError(t, err)
	require.True(t, diff.IsNew, "first run should create the snapshot rather than diff against nothing")

	diff, err = sm.Compare("coverage_summary", rowMetrics(rep))
	require.NoError(t, err)
	require.True(t, diff.Match)
}

func rowMetrics(rep *Report) map[string]interface{} {
	out := make(map[string]interface{}, len(rep.Rows))
	for _, row := range rep.Rows {
		out[row.Values["Metric"].(string)] = row.Values["Value"]
	}
	return out
}
