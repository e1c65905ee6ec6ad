package llmclassifier

import (
	"testing"

	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsKeysWithoutSkPrefix(t *testing.T) {
	_, err := New(Config{APIKey: "not-a-key"})
	require.Error(t, err)
}

func TestNewAppliesPricingDefaults(t *testing.T) {
	c, err := New(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", c.cfg.Model)
	require.InDelta(t, 0.00015, c.cfg.InputPricePer1K, 1e-9)
	require.InDelta(t, 0.0006, c.cfg.OutputPricePer1K, 1e-9)
}

func TestParseVerdictExplicitFields(t *testing.T) {
	content := "WORTHY: true\nCONFIDENCE: 0.85\nREASONING: Clear pricing information customers search for."
	worthy, confidence, reasoning := parseVerdict(content)
	require.True(t, worthy)
	require.InDelta(t, 0.85, confidence, 1e-9)
	require.Equal(t, "Clear pricing information customers search for.", reasoning)
}

func TestParseVerdictFalseValue(t *testing.T) {
	content := "Worthy: false, Confidence: 0.4, Reasoning: duplicate content"
	worthy, confidence, _ := parseVerdict(content)
	require.False(t, worthy)
	require.InDelta(t, 0.4, confidence, 1e-9)
}

func TestParseVerdictConfidenceOver1ScaledToPercent(t *testing.T) {
	content := "WORTHY: true CONFIDENCE: 85 REASONING: strong match"
	_, confidence, _ := parseVerdict(content)
	require.InDelta(t, 0.85, confidence, 1e-9)
}

func TestParseVerdictUnclearWorthyDefaultsFalse(t *testing.T) {
	content := "WORTHY: maybe CONFIDENCE: 0.5 REASONING: ambiguous"
	worthy, _, _ := parseVerdict(content)
	require.False(t, worthy)
}

func TestParseVerdictMissingFieldsUseDefaults(t *testing.T) {
	content := "This page looks like a solid product overview."
	worthy, confidence, reasoning := parseVerdict(content)
	require.False(t, worthy)
	require.InDelta(t, 0.7, confidence, 1e-9)
	require.Equal(t, content, reasoning)
}

func TestBuildPromptUsesSiteGuidanceAndTruncatesContent(t *testing.T) {
	longContent := make([]byte, 2000)
	for i := range longContent {
		longContent[i] = 'a'
	}
	prompt := buildPrompt("https://example.com/accounts", "Accounts", string(longContent), model.SiteBanking)
	require.Contains(t, prompt, "Site Type: banking")
	require.Contains(t, prompt, "Banking customers search for")
	require.Less(t, len(prompt), len(longContent)+400)
}

func TestBuildPromptFallsBackToGenericGuidanceForUnmappedSiteType(t *testing.T) {
	prompt := buildPrompt("https://example.com/", "Home", "", model.SiteUnknown)
	require.Contains(t, prompt, "Use general judgment")
}
