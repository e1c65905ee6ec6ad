package runlog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForRunAttachesRunIDAndSiteDomain(t *testing.T) {
	var buf bytes.Buffer
	logger := ForRun(New(Options{Writer: &buf}), "crawl_ab12cd34_1700000000", "example.com")

	logger.Info().Msg("started")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "crawl_ab12cd34_1700000000", line["run_id"])
	require.Equal(t, "example.com", line["site_domain"])
	require.Equal(t, "started", line["message"])
}

func TestNewDefaultsLevelToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf})

	logger.Debug().Msg("should be dropped")
	require.Zero(t, buf.Len())

	logger.Info().Msg("should appear")
	require.NotZero(t, buf.Len())
}
