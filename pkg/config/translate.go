package config

import (
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

// ToOptimizerConfig translates the user-facing configuration into the
// engine's flat optimizer configuration. Control groups are flattened in
// declaration order; objective and realization weights are normalized to
// sum to one.
func ToOptimizerConfig(cfg *Config) *engine.OptimizerConfig {
	out := &engine.OptimizerConfig{
		Method:       cfg.Optimization.Algorithm,
		MaxFunctions: cfg.Optimization.MaxFunctionEvaluations,
		Tolerance:    cfg.Optimization.Tolerance,
	}

	for _, group := range cfg.Controls {
		for _, variable := range group.Variables {
			out.InitialValues = append(out.InitialValues, variable.InitialGuess)
			out.LowerBounds = append(out.LowerBounds, variable.Min)
			out.UpperBounds = append(out.UpperBounds, variable.Max)
			out.PerturbationMagnitudes = append(out.PerturbationMagnitudes, group.PerturbationMagnitude)
		}
	}

	weights := make([]float64, len(cfg.Objectives))
	for i, objective := range cfg.Objectives {
		weights[i] = objective.Weight
	}
	out.ObjectiveWeights = normalizeWeights(weights)

	if len(cfg.Model.RealizationWeights) > 0 {
		out.RealizationWeights = normalizeWeights(cfg.Model.RealizationWeights)
	} else {
		out.RealizationWeights = normalizeWeights(make([]float64, len(cfg.Model.Realizations)))
	}

	return out
}

// normalizeWeights scales weights to sum to one. All-zero input yields
// equal weights.
func normalizeWeights(weights []float64) []float64 {
	if len(weights) == 0 {
		return nil
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make([]float64, len(weights))
	if total == 0 {
		equal := 1.0 / float64(len(weights))
		for i := range out {
			out[i] = equal
		}
		return out
	}
	for i, w := range weights {
		out[i] = w / total
	}
	return out
}
