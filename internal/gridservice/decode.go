package gridservice

import (
	"fmt"
	"math"
	"reflect"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/mitchellh/mapstructure"
)

// requiredStats holds the keys a stats payload must carry.
type requiredStats struct {
	TotalLoadMW       float64 `mapstructure:"total_load_mw"`
	TotalGenMW        float64 `mapstructure:"total_gen_mw"`
	BusCount          int     `mapstructure:"n_buses"`
	MaxLineLoadingPct float64 `mapstructure:"max_line_loading_pct"`
}

// optionalStats holds informational keys that may be absent.
type optionalStats struct {
	LineCount    int     `mapstructure:"n_lines"`
	MinVoltagePU float64 `mapstructure:"min_voltage_pu"`
	MaxVoltagePU float64 `mapstructure:"max_voltage_pu"`
}

var requiredStatKeys = []string{"total_load_mw", "total_gen_mw", "n_buses", "max_line_loading_pct"}

// decodeStats converts a loosely typed stats object into GridStatistics.
// Every required key must be present and non-null; partial payloads are rejected.
func decodeStats(raw map[string]any) (domain.GridStatistics, error) {
	for _, key := range requiredStatKeys {
		v, ok := raw[key]
		if !ok || v == nil {
			return domain.GridStatistics{}, fmt.Errorf("stats missing %q", key)
		}
	}

	var req requiredStats
	if err := decodeInto(raw, &req, true); err != nil {
		return domain.GridStatistics{}, err
	}
	var opt optionalStats
	if err := decodeInto(raw, &opt, false); err != nil {
		return domain.GridStatistics{}, err
	}

	stats := domain.GridStatistics{
		TotalLoadMW:       req.TotalLoadMW,
		TotalGenMW:        req.TotalGenMW,
		BusCount:          req.BusCount,
		MaxLineLoadingPct: req.MaxLineLoadingPct,
		LineCount:         opt.LineCount,
		MinVoltagePU:      opt.MinVoltagePU,
		MaxVoltagePU:      opt.MaxVoltagePU,
	}
	if err := stats.Validate(); err != nil {
		return domain.GridStatistics{}, err
	}
	return stats, nil
}

// decodeOptionalStats treats a missing, null or empty stats object as "no stats".
func decodeOptionalStats(v any) (*domain.GridStatistics, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stats has type %T, want object", v)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	stats, err := decodeStats(raw)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func decodeInto(raw map[string]any, out any, errorUnset bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		ErrorUnset: errorUnset,
		DecodeHook: integralFloatHook,
	})
	if err != nil {
		return fmt.Errorf("build stats decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	return nil
}

// integralFloatHook rejects JSON numbers that cannot be an exact int, such as
// 57.9 or 1e30, instead of letting them truncate or wrap.
var integralFloatHook mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("%v is not an integer count", f)
	}
	return int64(f), nil
}
