package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDemoCrawlConfigDisablesRobotsEnforcement(t *testing.T) {
	cfg := NewDemoCrawlConfig("https://example.com/", "example.com", "crawl_ab12cd34_1700000000", "/tmp/out")

	require.False(t, cfg.RespectRobotsTxt)
	require.False(t, cfg.RespectRobots)
	require.Equal(t, []string{"https://example.com/"}, cfg.Seeds)
	require.Equal(t, "example.com", cfg.SiteDomain)
	require.Equal(t, "crawl_ab12cd34_1700000000", cfg.RunID)
	require.Equal(t, "/tmp/out", cfg.OutputRoot)
	require.Equal(t, RenderAdaptive, cfg.RenderMode)
}

func TestDefaultConfigStillRespectsRobotsTxt(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.RespectRobotsTxt)
}

func TestValidateClampsInvalidValues(t *testing.T) {
	cfg := &CrawlConfig{Concurrency: 0, MaxRetries: -1, MaxRedirects: -5}
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.Concurrency)
	require.Equal(t, 0, cfg.MaxRetries)
	require.Equal(t, 0, cfg.MaxRedirects)
}
