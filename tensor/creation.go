package tensor

import (
	"fmt"
)

// NewTensor creates a tensor with the given shape. If data is non-nil its
// length must match the shape; the slice is used directly, not copied.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	strides := calculateStrides(shape)

	if data == nil {
		data = make([]float64, numElems)
	} else if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match tensor size %d", len(data), numElems)
	}

	return &Tensor{
		Shape:    shape,
		Strides:  strides,
		Data:     data,
		NumElems: numElems,
	}, nil
}

func Zeros(shape []int) (*Tensor, error) {
	return NewTensor(shape, nil)
}

func Ones(shape []int) (*Tensor, error) {
	return Full(shape, 1.0)
}

// Full creates a tensor with every element set to value.
func Full(shape []int, value float64) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	data := make([]float64, numElems)
	for i := range data {
		data[i] = value
	}

	return NewTensor(shape, data)
}

// FromScalar creates a single-element tensor holding value.
func FromScalar(value float64) *Tensor {
	t, _ := NewTensor([]int{1}, []float64{value})
	return t
}
