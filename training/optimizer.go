package training

import (
	"fmt"
	"math"

	"github.com/limnoml/lake-pgnn/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// clipGradNorm rescales all gradients so their global L2 norm does not
// exceed maxNorm. A maxNorm of zero disables clipping.
func clipGradNorm(parameters []*tensor.Tensor, maxNorm float64) {
	if maxNorm <= 0 {
		return
	}

	total := 0.0
	for _, param := range parameters {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		for _, v := range grad.Data {
			total += v * v
		}
	}

	norm := math.Sqrt(total)
	if norm <= maxNorm {
		return
	}

	scale := maxNorm / norm
	for _, param := range parameters {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		for i := range grad.Data {
			grad.Data[i] *= scale
		}
	}
}

// SGD implements Stochastic Gradient Descent with optional momentum and
// gradient-norm clipping.
type SGD struct {
	parameters   []*tensor.Tensor
	learningRate float64
	momentum     float64
	clipNorm     float64
	velocities   map[*tensor.Tensor][]float64
}

// NewSGD creates a new SGD optimizer
func NewSGD(parameters []*tensor.Tensor, lr, momentum, clipNorm float64) *SGD {
	sgd := &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		clipNorm:     clipNorm,
		velocities:   make(map[*tensor.Tensor][]float64),
	}

	if momentum > 0 {
		for _, param := range parameters {
			if param.RequiresGrad() {
				sgd.velocities[param] = make([]float64, param.NumElems)
			}
		}
	}

	return sgd
}

// Step performs a single optimization step
func (sgd *SGD) Step() error {
	clipGradNorm(sgd.parameters, sgd.clipNorm)

	for _, param := range sgd.parameters {
		grad := param.Grad()
		if !param.RequiresGrad() || grad == nil {
			continue
		}

		if sgd.momentum > 0 {
			velocity := sgd.velocities[param]
			if velocity == nil {
				velocity = make([]float64, param.NumElems)
				sgd.velocities[param] = velocity
			}
			for i := range param.Data {
				velocity[i] = sgd.momentum*velocity[i] + grad.Data[i]
				param.Data[i] -= sgd.learningRate * velocity[i]
			}
		} else {
			for i := range param.Data {
				param.Data[i] -= sgd.learningRate * grad.Data[i]
			}
		}
	}

	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (sgd *SGD) ZeroGrad() {
	tensor.ZeroGrad(sgd.parameters)
}

// GetLR gets the current learning rate
func (sgd *SGD) GetLR() float64 {
	return sgd.learningRate
}

// SetLR sets the learning rate
func (sgd *SGD) SetLR(lr float64) {
	sgd.learningRate = lr
}

// AdamConfig holds hyperparameters for the Adam optimizer.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	ClipNorm     float64 // global gradient-norm bound; 0 disables clipping
}

// DefaultAdamConfig returns the conventional Adam hyperparameters with
// gradient clipping enabled.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 1e-3,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		ClipNorm:     1.0,
	}
}

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	parameters []*tensor.Tensor
	config     AdamConfig
	m          map[*tensor.Tensor][]float64
	v          map[*tensor.Tensor][]float64
	steps      int
}

// NewAdam creates a new Adam optimizer
func NewAdam(parameters []*tensor.Tensor, config AdamConfig) (*Adam, error) {
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Beta1 <= 0 || config.Beta1 >= 1 || config.Beta2 <= 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("betas must be in (0, 1), got %g and %g", config.Beta1, config.Beta2)
	}
	if config.Epsilon <= 0 {
		config.Epsilon = 1e-8
	}

	adam := &Adam{
		parameters: parameters,
		config:     config,
		m:          make(map[*tensor.Tensor][]float64),
		v:          make(map[*tensor.Tensor][]float64),
	}

	for _, param := range parameters {
		if param.RequiresGrad() {
			adam.m[param] = make([]float64, param.NumElems)
			adam.v[param] = make([]float64, param.NumElems)
		}
	}

	return adam, nil
}

// Step performs a single optimization step
func (a *Adam) Step() error {
	clipGradNorm(a.parameters, a.config.ClipNorm)
	a.steps++

	correction1 := 1 - math.Pow(a.config.Beta1, float64(a.steps))
	correction2 := 1 - math.Pow(a.config.Beta2, float64(a.steps))

	for _, param := range a.parameters {
		grad := param.Grad()
		if !param.RequiresGrad() || grad == nil {
			continue
		}

		m := a.m[param]
		v := a.v[param]
		if m == nil || v == nil {
			m = make([]float64, param.NumElems)
			v = make([]float64, param.NumElems)
			a.m[param] = m
			a.v[param] = v
		}

		for i := range param.Data {
			g := grad.Data[i]
			m[i] = a.config.Beta1*m[i] + (1-a.config.Beta1)*g
			v[i] = a.config.Beta2*v[i] + (1-a.config.Beta2)*g*g

			mHat := m[i] / correction1
			vHat := v[i] / correction2
			param.Data[i] -= a.config.LearningRate * mHat / (math.Sqrt(vHat) + a.config.Epsilon)
		}
	}

	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (a *Adam) ZeroGrad() {
	tensor.ZeroGrad(a.parameters)
}

// GetLR gets the current learning rate
func (a *Adam) GetLR() float64 {
	return a.config.LearningRate
}

// SetLR sets the learning rate
func (a *Adam) SetLR(lr float64) {
	a.config.LearningRate = lr
}
