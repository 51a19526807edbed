package tensor

import (
	"fmt"
)

// Apply executes op on inputs and records it in the computation graph. Every
// differentiable operation, including ones defined outside this package, goes
// through here so that Backward can reach it.
func Apply(op Operation, inputs ...*Tensor) (*Tensor, error) {
	result, err := op.Forward(inputs...)
	if err != nil {
		return nil, err
	}

	result.creator = op
	for _, in := range inputs {
		if in.requiresGrad {
			result.requiresGrad = true
			break
		}
	}

	return result, nil
}

// Backward runs reverse-mode differentiation from t, which must be a
// single-element tensor (a scalar loss). Gradients accumulate into the grad
// field of every tensor on the graph that requires them.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("Backward requires a scalar tensor, got shape %v", t.Shape)
	}

	// Topological order over creators, outputs before inputs.
	var order []*Tensor
	visited := make(map[*Tensor]bool)

	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] || node.creator == nil {
			visited[node] = true
			return
		}
		visited[node] = true
		for _, in := range node.creator.Inputs() {
			visit(in)
		}
		order = append(order, node)
	}
	visit(t)

	seed, err := Ones(t.Shape)
	if err != nil {
		return err
	}
	t.grad = seed

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.grad == nil {
			continue
		}

		grads, err := node.creator.Backward(node.grad)
		if err != nil {
			return fmt.Errorf("backward pass failed: %w", err)
		}

		inputs := node.creator.Inputs()
		if len(grads) != len(inputs) {
			return fmt.Errorf("operation returned %d gradients for %d inputs", len(grads), len(inputs))
		}

		for j, in := range inputs {
			if grads[j] == nil {
				continue
			}
			if !in.requiresGrad && in.creator == nil {
				continue
			}
			if err := in.accumulateGrad(grads[j]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *Tensor) accumulateGrad(g *Tensor) error {
	if _, err := checkShapesCompatible(t.Shape, g.Shape); err != nil {
		return fmt.Errorf("gradient shape mismatch: %w", err)
	}
	if t.grad == nil {
		clone, err := g.Clone()
		if err != nil {
			return err
		}
		t.grad = clone
		return nil
	}

	sum, err := Add(t.grad, g)
	if err != nil {
		return err
	}
	t.grad = sum
	return nil
}

// AddOp implements elementwise addition.
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("AddOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	return Add(inputs[0], inputs[1])
}

func (op *AddOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	// d(a + b)/da = 1, d(a + b)/db = 1
	gradA, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	gradB, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradB}, nil
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

// SubOp implements elementwise subtraction.
type SubOp struct {
	inputs []*Tensor
}

func (op *SubOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("SubOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	return Sub(inputs[0], inputs[1])
}

func (op *SubOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	// d(a - b)/da = 1, d(a - b)/db = -1
	gradA, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	gradB, err := Scale(gradOut, -1)
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradB}, nil
}

func (op *SubOp) Inputs() []*Tensor { return op.inputs }

// MulOp implements elementwise multiplication.
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("MulOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	return Mul(inputs[0], inputs[1])
}

func (op *MulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	// d(a * b)/da = b, d(a * b)/db = a
	gradA, err := Mul(gradOut, op.inputs[1])
	if err != nil {
		return nil, err
	}
	gradB, err := Mul(gradOut, op.inputs[0])
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradB}, nil
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

// ScaleOp multiplies a tensor by a constant.
type ScaleOp struct {
	inputs []*Tensor
	c      float64
}

func (op *ScaleOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ScaleOp requires exactly 1 input")
	}
	op.inputs = inputs
	return Scale(inputs[0], op.c)
}

func (op *ScaleOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad, err := Scale(gradOut, op.c)
	if err != nil {
		return nil, err
	}
	return []*Tensor{grad}, nil
}

func (op *ScaleOp) Inputs() []*Tensor { return op.inputs }

// MatMulOp implements matrix multiplication.
type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("MatMulOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	return MatMul(inputs[0], inputs[1])
}

func (op *MatMulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a, b := op.inputs[0], op.inputs[1]

	// d(A @ B)/dA = gradOut @ B^T, d(A @ B)/dB = A^T @ gradOut
	bT, err := Transpose(b)
	if err != nil {
		return nil, err
	}
	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		return nil, err
	}

	aT, err := Transpose(a)
	if err != nil {
		return nil, err
	}
	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		return nil, err
	}

	return []*Tensor{gradA, gradB}, nil
}

func (op *MatMulOp) Inputs() []*Tensor { return op.inputs }

// AddRowOp broadcasts a row vector across the batch dimension. The gradient
// for the row is the column sum of the output gradient.
type AddRowOp struct {
	inputs []*Tensor
}

func (op *AddRowOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("AddRowOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	return AddRow(inputs[0], inputs[1])
}

func (op *AddRowOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	gradA, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}
	gradRow, err := SumColumns(gradOut)
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradRow}, nil
}

func (op *AddRowOp) Inputs() []*Tensor { return op.inputs }

// ReLUOp implements the rectified linear activation.
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("ReLUOp requires exactly 1 input")
	}
	op.inputs = inputs
	return ReLU(inputs[0])
}

func (op *ReLUOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	// dReLU(x)/dx = 1 if x > 0, else 0
	grad, err := gradOut.Clone()
	if err != nil {
		return nil, err
	}

	input := op.inputs[0]
	for i := range grad.Data {
		if input.Data[i] <= 0 {
			grad.Data[i] = 0
		}
	}
	return []*Tensor{grad}, nil
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

// MeanOp reduces a tensor to the mean of its elements.
type MeanOp struct {
	inputs []*Tensor
}

func (op *MeanOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("MeanOp requires exactly 1 input")
	}
	op.inputs = inputs
	return Mean(inputs[0])
}

func (op *MeanOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	input := op.inputs[0]
	grad, err := Full(input.Shape, gradOut.Data[0]/float64(input.NumElems))
	if err != nil {
		return nil, err
	}
	return []*Tensor{grad}, nil
}

func (op *MeanOp) Inputs() []*Tensor { return op.inputs }

// High-level autograd entry points.

// AddAutograd performs addition with automatic differentiation.
func AddAutograd(a, b *Tensor) (*Tensor, error) {
	return Apply(&AddOp{}, a, b)
}

// SubAutograd performs subtraction with automatic differentiation.
func SubAutograd(a, b *Tensor) (*Tensor, error) {
	return Apply(&SubOp{}, a, b)
}

// MulAutograd performs elementwise multiplication with automatic differentiation.
func MulAutograd(a, b *Tensor) (*Tensor, error) {
	return Apply(&MulOp{}, a, b)
}

// ScaleAutograd multiplies by a constant with automatic differentiation.
func ScaleAutograd(a *Tensor, c float64) (*Tensor, error) {
	return Apply(&ScaleOp{c: c}, a)
}

// MatMulAutograd performs matrix multiplication with automatic differentiation.
func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	return Apply(&MatMulOp{}, a, b)
}

// AddRowAutograd broadcasts a bias row with automatic differentiation.
func AddRowAutograd(a, row *Tensor) (*Tensor, error) {
	return Apply(&AddRowOp{}, a, row)
}

// ReLUAutograd performs ReLU activation with automatic differentiation.
func ReLUAutograd(a *Tensor) (*Tensor, error) {
	return Apply(&ReLUOp{}, a)
}

// MeanAutograd reduces to the mean with automatic differentiation.
func MeanAutograd(a *Tensor) (*Tensor, error) {
	return Apply(&MeanOp{}, a)
}
