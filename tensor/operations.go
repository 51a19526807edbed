package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

func checkShapesCompatible(shape1, shape2 []int) ([]int, error) {
	if len(shape1) != len(shape2) {
		return nil, fmt.Errorf("tensor shapes must have same number of dimensions: %v vs %v", shape1, shape2)
	}

	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return nil, fmt.Errorf("tensor shapes must match: %v vs %v", shape1, shape2)
		}
	}

	return shape1, nil
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape)
	if err != nil {
		return nil, err
	}

	floats.AddTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape)
	if err != nil {
		return nil, err
	}

	floats.SubTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape)
	if err != nil {
		return nil, err
	}

	floats.MulTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

func Div(t1, t2 *Tensor) (*Tensor, error) {
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}

	for i, v := range t2.Data {
		if v == 0 {
			return nil, fmt.Errorf("division by zero at index %d", i)
		}
	}

	result, err := Zeros(outputShape)
	if err != nil {
		return nil, err
	}

	floats.DivTo(result.Data, t1.Data, t2.Data)
	return result, nil
}

// Scale multiplies every element by c.
func Scale(t *Tensor, c float64) (*Tensor, error) {
	result, err := t.Clone()
	if err != nil {
		return nil, err
	}

	floats.Scale(c, result.Data)
	return result, nil
}

// AddScalar adds c to every element.
func AddScalar(t *Tensor, c float64) (*Tensor, error) {
	result, err := t.Clone()
	if err != nil {
		return nil, err
	}

	floats.AddConst(c, result.Data)
	return result, nil
}

// AddRow adds a row vector of shape [n] to every row of a [batch, n] tensor.
func AddRow(t, row *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("AddRow expects 2D input, got shape %v", t.Shape)
	}
	if len(row.Shape) != 1 || row.Shape[0] != t.Shape[1] {
		return nil, fmt.Errorf("row shape %v incompatible with input shape %v", row.Shape, t.Shape)
	}

	result, err := t.Clone()
	if err != nil {
		return nil, err
	}

	n := row.Shape[0]
	for i := 0; i < t.Shape[0]; i++ {
		floats.Add(result.Data[i*n:(i+1)*n], row.Data)
	}
	return result, nil
}

func ReLU(t *Tensor) (*Tensor, error) {
	result, err := Zeros(t.Shape)
	if err != nil {
		return nil, err
	}

	for i, v := range t.Data {
		if v > 0 {
			result.Data[i] = v
		}
	}
	return result, nil
}

// Sum reduces all elements to a single-element tensor.
func Sum(t *Tensor) (*Tensor, error) {
	if t.NumElems == 0 {
		return nil, fmt.Errorf("cannot sum empty tensor")
	}
	return FromScalar(floats.Sum(t.Data)), nil
}

// Mean reduces all elements to their arithmetic mean.
func Mean(t *Tensor) (*Tensor, error) {
	if t.NumElems == 0 {
		return nil, fmt.Errorf("cannot take mean of empty tensor")
	}
	return FromScalar(floats.Sum(t.Data) / float64(t.NumElems)), nil
}
