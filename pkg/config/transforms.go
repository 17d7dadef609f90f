package config

import (
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// ControlScaler maps optimizer-space control values back to user space with
// a per-control affine transform: user = value*scale + offset. It
// implements results.VariableTransform.
type ControlScaler struct {
	scales  []float64
	offsets []float64
}

// NewControlScaler builds the transform from the configured control
// groups. Returns nil when no group declares a scale or offset, so callers
// can skip transforming entirely.
func NewControlScaler(cfg *Config) *ControlScaler {
	scaled := false
	var scales, offsets []float64
	for _, group := range cfg.Controls {
		scale := group.Scale
		if scale == 0 {
			scale = 1
		}
		if scale != 1 || group.Offset != 0 {
			scaled = true
		}
		for range group.Variables {
			scales = append(scales, scale)
			offsets = append(offsets, group.Offset)
		}
	}
	if !scaled {
		return nil
	}
	return &ControlScaler{scales: scales, offsets: offsets}
}

// ToUserVariable implements results.VariableTransform. Indices outside the
// configured controls pass through unchanged.
func (s *ControlScaler) ToUserVariable(index int, value float64) float64 {
	if index < 0 || index >= len(s.scales) {
		return value
	}
	return value*s.scales[index] + s.offsets[index]
}

var _ results.VariableTransform = (*ControlScaler)(nil)
