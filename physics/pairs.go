package physics

import (
	"errors"
	"fmt"

	"github.com/limnoml/lake-pgnn/tensor"
)

var errExactlyOneInput = errors.New("DensityOp requires exactly 1 input")

// DepthPairs holds feature vectors sampled at the same time context but at
// two depths, the first shallower than the second. The pairs carry no
// temperature labels; they exist only to score density consistency.
type DepthPairs struct {
	Shallow *tensor.Tensor // [pairs, features]
	Deep    *tensor.Tensor // [pairs, features]
}

// NewDepthPairs validates that the two feature matrices describe the same
// pairs.
func NewDepthPairs(shallow, deep *tensor.Tensor) (*DepthPairs, error) {
	if len(shallow.Shape) != 2 || len(deep.Shape) != 2 {
		return nil, fmt.Errorf("depth pair features must be 2D, got shapes %v and %v", shallow.Shape, deep.Shape)
	}
	if shallow.Shape[0] != deep.Shape[0] {
		return nil, fmt.Errorf("depth pair count mismatch: %d shallow vs %d deep", shallow.Shape[0], deep.Shape[0])
	}
	if shallow.Shape[1] != deep.Shape[1] {
		return nil, fmt.Errorf("depth pair feature dimension mismatch: %d vs %d", shallow.Shape[1], deep.Shape[1])
	}
	return &DepthPairs{Shallow: shallow, Deep: deep}, nil
}

// Len returns the number of pairs.
func (dp *DepthPairs) Len() int {
	return dp.Shallow.Shape[0]
}

// FeatureDim returns the feature dimension shared by both sides of the pairs.
func (dp *DepthPairs) FeatureDim() int {
	return dp.Shallow.Shape[1]
}

// ViolationsFromPredictions computes the per-pair density difference
// density(shallow) - density(deep) on the autograd graph. A positive value
// violates the density-depth law; values at or below zero are consistent.
func ViolationsFromPredictions(shallowPred, deepPred *tensor.Tensor) (*tensor.Tensor, error) {
	rhoShallow, err := DensityAutograd(shallowPred)
	if err != nil {
		return nil, fmt.Errorf("density of shallow predictions: %w", err)
	}
	rhoDeep, err := DensityAutograd(deepPred)
	if err != nil {
		return nil, fmt.Errorf("density of deep predictions: %w", err)
	}
	return tensor.SubAutograd(rhoShallow, rhoDeep)
}

// MeanViolation is the monitoring metric mean(max(0, diff)): the average
// magnitude of density-depth violations, with consistent pairs contributing
// zero.
func MeanViolation(diffs []float64) float64 {
	if len(diffs) == 0 {
		return 0
	}
	total := 0.0
	for _, d := range diffs {
		if d > 0 {
			total += d
		}
	}
	return total / float64(len(diffs))
}
