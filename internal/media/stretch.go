package media

import "fmt"

// Single-invocation bounds of the atempo time-stretch operator.
const (
	MinStretchFactor = 0.5
	MaxStretchFactor = 2.0
)

// StretchStages decomposes an arbitrary positive stretch factor into a plan
// of per-invocation factors, each within [MinStretchFactor, MaxStretchFactor].
// The stage factors multiply back to the requested factor. A factor of 3.0
// becomes [2.0, 1.5].
func StretchStages(factor float64) ([]float64, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("invalid stretch factor %v", factor)
	}
	var stages []float64
	for factor > MaxStretchFactor {
		stages = append(stages, MaxStretchFactor)
		factor /= MaxStretchFactor
	}
	for factor < MinStretchFactor {
		stages = append(stages, MinStretchFactor)
		factor /= MinStretchFactor
	}
	stages = append(stages, factor)
	return stages, nil
}

// ClampStretch bounds a single-segment speed factor to the supported range.
// Used where cascading is not an option; the approximation is documented.
func ClampStretch(factor float64) float64 {
	if factor < MinStretchFactor {
		return MinStretchFactor
	}
	if factor > MaxStretchFactor {
		return MaxStretchFactor
	}
	return factor
}
