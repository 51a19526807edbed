package tensor

import (
	"fmt"
	"math"
)

// Clone returns a deep copy of the tensor data. The autograd graph is not
// copied.
func (t *Tensor) Clone() (*Tensor, error) {
	data := make([]float64, t.NumElems)
	copy(data, t.Data)

	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)

	clone, err := NewTensor(shape, data)
	if err != nil {
		return nil, err
	}
	clone.requiresGrad = t.requiresGrad
	return clone, nil
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got shape %v", t.Shape)
	}
	return t.Data[0], nil
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) (float64, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}

	idx := 0
	for i, index := range indices {
		if index < 0 || index >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of bounds for dimension %d (size %d)", index, i, t.Shape[i])
		}
		idx += index * t.Strides[i]
	}
	return t.Data[idx], nil
}

// SetAt sets the element at the given indices.
func (t *Tensor) SetAt(value float64, indices ...int) error {
	if len(indices) != len(t.Shape) {
		return fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}

	idx := 0
	for i, index := range indices {
		if index < 0 || index >= t.Shape[i] {
			return fmt.Errorf("index %d out of bounds for dimension %d (size %d)", index, i, t.Shape[i])
		}
		idx += index * t.Strides[i]
	}
	t.Data[idx] = value
	return nil
}

// Detach returns a copy of the tensor that is cut off from the autograd
// graph and does not require gradients.
func (t *Tensor) Detach() (*Tensor, error) {
	clone, err := t.Clone()
	if err != nil {
		return nil, err
	}
	clone.requiresGrad = false
	return clone, nil
}

// Row returns a copy of row i of a 2D tensor.
func (t *Tensor) Row(i int) ([]float64, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Row requires a 2D tensor, got shape %v", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("row %d out of bounds (rows=%d)", i, t.Shape[0])
	}

	cols := t.Shape[1]
	row := make([]float64, cols)
	copy(row, t.Data[i*cols:(i+1)*cols])
	return row, nil
}

// IsFinite reports whether every element is neither NaN nor infinite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Equal reports whether two tensors have identical shape and data.
func (t *Tensor) Equal(other *Tensor) bool {
	if _, err := checkShapesCompatible(t.Shape, other.Shape); err != nil {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}

// ZeroGrad clears the accumulated gradients of the given tensors.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		if t.grad != nil {
			for i := range t.grad.Data {
				t.grad.Data[i] = 0
			}
		}
	}
}
