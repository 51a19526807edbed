// Package physics implements the water density law used to constrain the
// lake temperature network. Density must not decrease with depth in a stably
// stratified lake, so a prediction pair where the shallower depth comes out
// denser than the deeper one is a physical violation.
package physics

import (
	"github.com/limnoml/lake-pgnn/tensor"
)

// Coefficients of the empirical density-of-water polynomial. Density peaks
// near 3.98 degrees C. The denominator (T + 68.12963) only vanishes near
// -68 degrees C, far outside the liquid range, and is not guarded.
const (
	densityA = 288.9414
	densityB = 3.9863
	densityC = 508929.2
	densityD = 68.12963
)

// Density converts a water temperature in degrees C to density in kg/m^3:
//
//	rho(T) = 1000 * (1 - (T + 288.9414)*(T - 3.9863)^2 / (508929.2*(T + 68.12963)))
func Density(t float64) float64 {
	num := (t + densityA) * (t - densityB) * (t - densityB)
	den := densityC * (t + densityD)
	return 1000 * (1 - num/den)
}

// DensityGrad is the analytic derivative d rho / dT, by the quotient rule.
func DensityGrad(t float64) float64 {
	u := (t + densityA) * (t - densityB) * (t - densityB)
	du := (t-densityB)*(t-densityB) + 2*(t+densityA)*(t-densityB)
	v := densityC * (t + densityD)
	dv := densityC
	return -1000 * (du*v - u*dv) / (v * v)
}

// DensityOp applies the density polynomial elementwise as a differentiable
// operation, so the depth consistency penalty can backpropagate into the
// temperature network.
type DensityOp struct {
	inputs []*tensor.Tensor
}

func (op *DensityOp) Forward(inputs ...*tensor.Tensor) (*tensor.Tensor, error) {
	if len(inputs) != 1 {
		return nil, errExactlyOneInput
	}
	op.inputs = inputs

	result, err := tensor.Zeros(inputs[0].Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range inputs[0].Data {
		result.Data[i] = Density(v)
	}
	return result, nil
}

func (op *DensityOp) Backward(gradOut *tensor.Tensor) ([]*tensor.Tensor, error) {
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	for i := range grad.Data {
		grad.Data[i] *= DensityGrad(op.inputs[0].Data[i])
	}
	return []*tensor.Tensor{grad}, nil
}

func (op *DensityOp) Inputs() []*tensor.Tensor { return op.inputs }

// DensityAutograd converts predicted temperatures to densities on the
// autograd graph.
func DensityAutograd(t *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Apply(&DensityOp{}, t)
}
