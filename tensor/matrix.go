package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul computes the matrix product of two 2D tensors, delegating to
// gonum's BLAS-backed Dense multiply.
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2D tensors, got shapes %v and %v", t1.Shape, t2.Shape)
	}

	m, k := t1.Shape[0], t1.Shape[1]
	k2, n := t2.Shape[0], t2.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("MatMul dimension mismatch: %v x %v", t1.Shape, t2.Shape)
	}

	a := mat.NewDense(m, k, t1.Data)
	b := mat.NewDense(k2, n, t2.Data)
	c := mat.NewDense(m, n, nil)
	c.Mul(a, b)

	return NewTensor([]int{m, n}, c.RawMatrix().Data)
}

// Transpose returns the transpose of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2D tensor, got shape %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result, err := Zeros([]int{cols, rows})
	if err != nil {
		return nil, err
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result.Data[j*rows+i] = t.Data[i*cols+j]
		}
	}
	return result, nil
}

// Reshape returns a view-copy of t with a new shape of equal element count.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}

	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor of %d elements to shape %v", t.NumElems, newShape)
	}

	data := make([]float64, t.NumElems)
	copy(data, t.Data)
	return NewTensor(newShape, data)
}

// SumColumns reduces a [rows, cols] tensor to a [cols] tensor by summing
// over the row dimension. Used to reduce broadcast gradients.
func SumColumns(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("SumColumns requires a 2D tensor, got shape %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	result, err := Zeros([]int{cols})
	if err != nil {
		return nil, err
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result.Data[j] += t.Data[i*cols+j]
		}
	}
	return result, nil
}
