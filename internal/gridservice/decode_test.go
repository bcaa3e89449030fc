package gridservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStats(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"n_buses":              float64(57),
		"n_lines":              float64(63),
		"total_load_mw":        1250.8,
		"total_gen_mw":         1278.9,
		"min_voltage_pu":       0.936,
		"max_voltage_pu":       1.04,
		"max_line_loading_pct": 82.3,
	}
	stats, err := decodeStats(raw)
	require.NoError(t, err)
	assert.Equal(t, 57, stats.BusCount)
	assert.Equal(t, 63, stats.LineCount)
	assert.InDelta(t, 1250.8, stats.TotalLoadMW, 1e-9)
	assert.InDelta(t, 0.936, stats.MinVoltagePU, 1e-9)
}

func TestDecodeStatsRejectsPartial(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]any{
		"missing buses":    {"total_load_mw": 1.0, "total_gen_mw": 1.0, "max_line_loading_pct": 1.0},
		"null load":        {"n_buses": 5.0, "total_load_mw": nil, "total_gen_mw": 1.0, "max_line_loading_pct": 1.0},
		"string gen":       {"n_buses": 5.0, "total_load_mw": 1.0, "total_gen_mw": "lots", "max_line_loading_pct": 1.0},
		"zero buses":       {"n_buses": 0.0, "total_load_mw": 1.0, "total_gen_mw": 1.0, "max_line_loading_pct": 1.0},
		"fractional buses": {"n_buses": 57.9, "total_load_mw": 1.0, "total_gen_mw": 1.0, "max_line_loading_pct": 1.0},
		"huge buses":       {"n_buses": 1e30, "total_load_mw": 1.0, "total_gen_mw": 1.0, "max_line_loading_pct": 1.0},
		"fractional lines": {"n_buses": 5.0, "n_lines": 6.5, "total_load_mw": 1.0, "total_gen_mw": 1.0, "max_line_loading_pct": 1.0},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			stats, err := decodeStats(raw)
			assert.Error(t, err)
			assert.Zero(t, stats)
		})
	}
}

func TestDecodeOptionalStats(t *testing.T) {
	t.Parallel()

	stats, err := decodeOptionalStats(nil)
	require.NoError(t, err)
	assert.Nil(t, stats)

	stats, err = decodeOptionalStats(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, stats, "an empty object means the service had no stats to report")

	_, err = decodeOptionalStats([]any{1})
	assert.Error(t, err)
}
