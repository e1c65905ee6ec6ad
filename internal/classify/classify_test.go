package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestClassifyTier1RejectsBinaryFile(t *testing.T) {
	c := New("example.com")
	result, err := c.Classify(context.Background(), "https://example.com/logo.png", "", "", model.SiteCorporate)
	require.NoError(t, err)
	require.False(t, result.IsWorthy)
	require.Equal(t, model.MethodBasic, result.Method)
}

func TestClassifyTier2AcceptsPricingPage(t *testing.T) {
	c := New("example.com")
	result, err := c.Classify(context.Background(), "https://example.com/pricing", "Pricing", "Our pricing plans for every business.", model.SiteCorporate)
	require.NoError(t, err)
	require.True(t, result.IsWorthy)
	require.Equal(t, model.MethodHeuristic, result.Method)
}

func TestClassifyTier2RejectsErrorPage(t *testing.T) {
	c := New("example.com")
	result, err := c.Classify(context.Background(), "https://example.com/404", "Not Found", "", model.SiteCorporate)
	require.NoError(t, err)
	require.False(t, result.IsWorthy)
}

func TestClassifyCachesSecondLookup(t *testing.T) {
	c := New("example.com")
	first, err := c.Classify(context.Background(), "https://example.com/pricing", "Pricing", "Our pricing plans.", model.SiteCorporate)
	require.NoError(t, err)
	require.Equal(t, model.MethodHeuristic, first.Method)

	second, err := c.Classify(context.Background(), "https://example.com/pricing", "Pricing", "Our pricing plans.", model.SiteCorporate)
	require.NoError(t, err)
	require.Equal(t, model.MethodCache, second.Method)
	require.Equal(t, first.IsWorthy, second.IsWorthy)
}

type stubLLM struct {
	result model.ClassificationResult
	err    error
	calls  int
}

func (s *stubLLM) Classify(ctx context.Context, url, title, content string, siteType model.SiteType) (model.ClassificationResult, error) {
	s.calls++
	return s.result, s.err
}

func TestClassifyUsesLLMTierWhenAttached(t *testing.T) {
	llm := &stubLLM{result: model.ClassificationResult{IsWorthy: true, Confidence: 0.9, Method: model.MethodLLM}}
	c := New("example.com", WithLLMTier(llm))

	result, err := c.Classify(context.Background(), "https://example.com/about", "About", "We build things.", model.SiteCorporate)
	require.NoError(t, err)
	require.Equal(t, model.MethodLLM, result.Method)
	require.Equal(t, 1, llm.calls)
}

func TestClassifyFallsBackToHeuristicOnLLMError(t *testing.T) {
	llm := &stubLLM{err: errBoom}
	c := New("example.com", WithLLMTier(llm))

	result, err := c.Classify(context.Background(), "https://example.com/pricing", "Pricing", "Our pricing plans.", model.SiteCorporate)
	require.NoError(t, err)
	require.Equal(t, model.MethodHeuristic, result.Method)
}

func TestClassifyURLOnlyUsesURLOnlyCacheKey(t *testing.T) {
	c := New("example.com")
	a := cacheKey("https://example.com/pricing?x=1", "", "")
	b := cacheKey("https://example.com/pricing?x=2", "", "")
	require.Equal(t, a, b)
	_ = c
}
