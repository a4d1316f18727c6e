package sim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maemo32/memsim/internal/config"
)

func smallConfig() config.Config {
	cfg := config.NewBuilder(
		config.WithGeometry(4, 2, 6),
		config.WithLatency(1, 1),
		config.WithRemapping(4096, 8192, 2, 1000),
	)
	cfg.PeriodPS = 1 // keep the cache ticking every scheduler step in tests
	return cfg
}

func TestSimulatorRunsTraceToCompletion(t *testing.T) {
	traceText := "0x40 R\n0x80 W\n0x40 R\n0xc0 P\n"
	var stats strings.Builder

	s, err := New(smallConfig(), WithTrace(strings.NewReader(traceText)), WithStatsFile(&stats))
	require.NoError(t, err)

	err = s.Run()
	require.NoError(t, err)

	code, closeErr := s.Close(err)
	require.NoError(t, closeErr)
	require.Equal(t, 0, code)

	require.Contains(t, stats.String(), "remapping_request_queue_congestion")
}

func TestSimulatorRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Sets = 0
	_, err := New(cfg, WithTrace(strings.NewReader("")))
	require.Error(t, err)
}
