// Package report builds exportable summaries of a finished crawl: the
// coverage tracker's final snapshot and the per-page classification/dedup
// outcome log the orchestrator accumulates as it runs.
package report

import (
	"fmt"

	"github.com/demomirror/crawler/internal/model"
)

// ReportType defines the type of report.
type ReportType string

const (
	ReportCoverageSummary ReportType = "coverage_summary"
	ReportPageOutcomes    ReportType = "page_outcomes"
)

// ReportDefinition defines a report type.
type ReportDefinition struct {
	Type        ReportType
	Name        string
	Description string
	Category    string
	Columns     []string
}

// AllReports returns all available report definitions.
func AllReports() []*ReportDefinition {
	return []*ReportDefinition{
		{ReportCoverageSummary, "Coverage Summary", "Final coverage, velocity, and quality-trend metrics for one run", "Summary", []string{"Metric", "Value"}},
		{ReportPageOutcomes, "Page Outcomes", "Per-page classification verdict and dedup outcome", "Pages", []string{"URL", "Site Type", "Worthy", "Confidence", "Method", "Dedup Outcome", "HTTP Status"}},
	}
}

// ReportRow represents a single row in a report.
type ReportRow struct {
	Values map[string]interface{}
}

// Report represents a generated report.
type Report struct {
	Definition *ReportDefinition
	Rows       []*ReportRow
	TotalCount int
	Generated  string // Timestamp
}

// PageOutcome is one crawled page's classification and dedup result, the
// unit the orchestrator logs as it drains the frontier.
type PageOutcome struct {
	URL           string
	SiteType      model.SiteType
	Classification model.ClassificationResult
	DedupOutcome  string
	HTTPStatus    int
}

// Generator builds reports from one run's final coverage snapshot and
// accumulated page outcomes.
type Generator struct {
	snapshot model.CoverageSnapshot
	outcomes []PageOutcome
}

// NewGenerator creates a report generator for one run.
func NewGenerator(snapshot model.CoverageSnapshot, outcomes []PageOutcome) *Generator {
	return &Generator{snapshot: snapshot, outcomes: outcomes}
}

// Generate generates a report of the specified type.
func (g *Generator) Generate(reportType ReportType) (*Report, error) {
	def := g.getDefinition(reportType)
	if def == nil {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}

	report := &Report{Definition: def, Rows: make([]*ReportRow, 0)}

	switch reportType {
	case ReportCoverageSummary:
		g.generateCoverageSummary(report)
	case ReportPageOutcomes:
		g.generatePageOutcomes(report)
	default:
		return nil, fmt.Errorf("report generator not implemented: %s", reportType)
	}

	report.TotalCount = len(report.Rows)
	return report, nil
}

func (g *Generator) getDefinition(reportType ReportType) *ReportDefinition {
	for _, def := range AllReports() {
		if def.Type == reportType {
			return def
		}
	}
	return nil
}

func (g *Generator) generateCoverageSummary(report *Report) {
	s := g.snapshot
	metric := func(name string, value interface{}) {
		report.Rows = append(report.Rows, &ReportRow{Values: map[string]interface{}{"Metric": name, "Value": value}})
	}

	metric("Run ID", s.RunID)
	metric("Phase", string(s.Phase))
	metric("Coverage %", fmt.Sprintf("%.1f", s.CoveragePct))
	metric("Pages Crawled", s.PagesCrawled)
	metric("Total Known URLs", s.TotalKnownURLs)
	metric("Initial Sitemap URLs", s.InitialSitemapURLs)
	metric("Discovered URLs", s.DiscoveredURLs)
	metric("Recent Quality", fmt.Sprintf("%.2f", s.RecentQuality))
	metric("Quality Trend", string(s.QualityTrend))
	metric("Velocity (pages/min)", fmt.Sprintf("%.2f", s.VelocityPerMin))
	if s.ETASeconds != nil {
		metric("ETA (seconds)", fmt.Sprintf("%.0f", *s.ETASeconds))
	} else {
		metric("ETA (seconds)", "n/a")
	}
	metric("Plateau Detected", s.PlateauDetected)
	metric("Stop Reason", s.StopReason)
	metric("Estimated LLM Cost (USD)", fmt.Sprintf("%.4f", s.TotalEstimatedCost))
}

func (g *Generator) generatePageOutcomes(report *Report) {
	for _, o := range g.outcomes {
		report.Rows = append(report.Rows, &ReportRow{
			Values: map[string]interface{}{
				"URL":           o.URL,
				"Site Type":     string(o.SiteType),
				"Worthy":        o.Classification.IsWorthy,
				"Confidence":    fmt.Sprintf("%.2f", o.Classification.Confidence),
				"Method":        string(o.Classification.Method),
				"Dedup Outcome": o.DedupOutcome,
				"HTTP Status":   o.HTTPStatus,
			},
		})
	}
}
