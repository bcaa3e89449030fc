// Package domain holds the value types shared by the session core and its surfaces.
package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidStats is returned when a statistics value is not fully populated.
var ErrInvalidStats = errors.New("invalid grid statistics")

// GridStatistics is the aggregate state of a loaded case.
// It is replaced as a whole; fields are never updated individually.
type GridStatistics struct {
	TotalLoadMW       float64 `json:"total_load_mw"`
	TotalGenMW        float64 `json:"total_gen_mw"`
	BusCount          int     `json:"n_buses"`
	MaxLineLoadingPct float64 `json:"max_line_loading_pct"`

	// Informational; zero when the service does not report them.
	LineCount    int     `json:"n_lines,omitempty"`
	MinVoltagePU float64 `json:"min_voltage_pu,omitempty"`
	MaxVoltagePU float64 `json:"max_voltage_pu,omitempty"`
}

// Validate reports whether the required fields hold usable values.
func (s GridStatistics) Validate() error {
	for name, v := range map[string]float64{
		"total_load_mw":        s.TotalLoadMW,
		"total_gen_mw":         s.TotalGenMW,
		"max_line_loading_pct": s.MaxLineLoadingPct,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidStats, name)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidStats, name)
		}
	}
	if s.BusCount <= 0 {
		return fmt.Errorf("%w: n_buses must be positive, got %d", ErrInvalidStats, s.BusCount)
	}
	return nil
}

// Balance returns generation minus load in MW.
func (s GridStatistics) Balance() float64 {
	return s.TotalGenMW - s.TotalLoadMW
}
