package training

import "math"

// LRScheduler adjusts the learning rate over the course of training.
type LRScheduler interface {
	GetLR(epoch int, baseLR float64) float64
	GetName() string
}

// ConstantLRScheduler keeps the learning rate fixed.
type ConstantLRScheduler struct{}

// NewConstantLRScheduler creates a scheduler that never changes the rate.
func NewConstantLRScheduler() *ConstantLRScheduler {
	return &ConstantLRScheduler{}
}

// GetLR returns the base learning rate unchanged.
func (s *ConstantLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR
}

// GetName returns the scheduler name.
func (s *ConstantLRScheduler) GetName() string {
	return "ConstantLR"
}

// StepLRScheduler decays the learning rate by gamma every stepSize epochs.
type StepLRScheduler struct {
	stepSize int
	gamma    float64
}

// NewStepLRScheduler creates a step decay scheduler.
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 1
	}
	if gamma <= 0 || gamma > 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{stepSize: stepSize, gamma: gamma}
}

// GetLR returns the decayed learning rate for the given epoch.
func (s *StepLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.gamma, float64(epoch/s.stepSize))
}

// GetName returns the scheduler name.
func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}

// ExponentialLRScheduler decays the learning rate by gamma every epoch.
type ExponentialLRScheduler struct {
	gamma float64
}

// NewExponentialLRScheduler creates an exponential decay scheduler.
func NewExponentialLRScheduler(gamma float64) *ExponentialLRScheduler {
	if gamma <= 0 || gamma > 1 {
		gamma = 0.95
	}
	return &ExponentialLRScheduler{gamma: gamma}
}

// GetLR returns the decayed learning rate for the given epoch.
func (s *ExponentialLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.gamma, float64(epoch))
}

// GetName returns the scheduler name.
func (s *ExponentialLRScheduler) GetName() string {
	return "ExponentialLR"
}
