package training

import (
	"fmt"

	"github.com/limnoml/lake-pgnn/tensor"
)

// Loss interface defines methods that all loss functions must implement. The
// returned tensor is a scalar on the autograd graph.
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
}

// MSELoss implements Mean Squared Error loss function
type MSELoss struct {
	reduction string // "mean" or "sum"
}

// NewMSELoss creates a new Mean Squared Error loss function
func NewMSELoss(reduction string) *MSELoss {
	if reduction == "" {
		reduction = "mean"
	}
	return &MSELoss{reduction: reduction}
}

// Forward computes the MSE loss: L = (1/N) * sum((y_pred - y_true)^2)
func (mse *MSELoss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := tensor.SubAutograd(predicted, target)
	if err != nil {
		return nil, fmt.Errorf("subtraction failed: %w", err)
	}

	squared, err := tensor.MulAutograd(diff, diff)
	if err != nil {
		return nil, fmt.Errorf("multiplication failed: %w", err)
	}

	switch mse.reduction {
	case "mean":
		return tensor.MeanAutograd(squared)
	case "sum":
		mean, err := tensor.MeanAutograd(squared)
		if err != nil {
			return nil, err
		}
		return tensor.ScaleAutograd(mean, float64(squared.NumElems))
	default:
		return nil, fmt.Errorf("unknown reduction %q", mse.reduction)
	}
}

// PhysicsInformedLoss combines empirical fit error with a density-depth
// consistency penalty:
//
//	total = mean((y_pred - y_true)^2) + lambda * mean(max(0, diff))
//
// where diff is the per-pair density difference density(shallow) -
// density(deep). Only violating pairs (diff > 0) are penalized; with
// lambda = 0 the loss degenerates to plain MSE.
type PhysicsInformedLoss struct {
	base   *MSELoss
	lambda float64
}

// NewPhysicsInformedLoss creates a physics-guided loss with the given
// penalty weight. lambda must not be negative.
func NewPhysicsInformedLoss(lambda float64) (*PhysicsInformedLoss, error) {
	if lambda < 0 {
		return nil, fmt.Errorf("lambda must be non-negative, got %g", lambda)
	}
	return &PhysicsInformedLoss{
		base:   NewMSELoss("mean"),
		lambda: lambda,
	}, nil
}

// Lambda returns the penalty weight.
func (p *PhysicsInformedLoss) Lambda() float64 {
	return p.lambda
}

// Forward computes the plain empirical term. Use Compose to include the
// physics penalty; the violation values are always passed explicitly rather
// than captured by the loss.
func (p *PhysicsInformedLoss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	return p.base.Forward(predicted, target)
}

// Compose computes the full physics-guided loss. violations holds the
// per-pair density differences for the current parameters; it may be nil,
// in which case only the empirical term remains.
func (p *PhysicsInformedLoss) Compose(predicted, target, violations *tensor.Tensor) (*tensor.Tensor, error) {
	empirical, err := p.base.Forward(predicted, target)
	if err != nil {
		return nil, fmt.Errorf("empirical loss: %w", err)
	}

	if violations == nil || p.lambda == 0 {
		return empirical, nil
	}

	rectified, err := tensor.ReLUAutograd(violations)
	if err != nil {
		return nil, fmt.Errorf("violation rectification failed: %w", err)
	}

	penalty, err := tensor.MeanAutograd(rectified)
	if err != nil {
		return nil, fmt.Errorf("penalty reduction failed: %w", err)
	}

	weighted, err := tensor.ScaleAutograd(penalty, p.lambda)
	if err != nil {
		return nil, fmt.Errorf("penalty weighting failed: %w", err)
	}

	return tensor.AddAutograd(empirical, weighted)
}
