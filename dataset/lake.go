package dataset

import (
	"fmt"

	"github.com/limnoml/lake-pgnn/physics"
	"github.com/limnoml/lake-pgnn/tensor"
	"github.com/limnoml/lake-pgnn/training"
)

// Variable names inside the study's .mat files.
const (
	varTemperature = "Y"
	varFeatures    = "Xc_doy"
	varShallow     = "Xc_doy1"
	varDeep        = "Xc_doy2"
)

// DefaultTrainRows is the fixed positional split used by the study: the
// first 3000 labeled rows train, the remainder test.
const DefaultTrainRows = 3000

// LakeData bundles everything the pipeline consumes: the positional
// train/test split of the labeled samples plus the unlabeled depth pairs.
// All fields are immutable once loaded.
type LakeData struct {
	Train *training.TensorDataset
	Test  *training.TensorDataset
	Pairs *physics.DepthPairs
}

// FeatureDim returns the shared feature dimension D.
func (ld *LakeData) FeatureDim() int {
	return ld.Train.FeatureDim()
}

// Load reads the labeled file (variables Y and Xc_doy) and the unlabeled
// depth-pair file (Xc_doy1, Xc_doy2), validates that every matrix agrees on
// the feature dimension, and splits the labeled samples positionally at
// trainRows. Any shape inconsistency is fatal.
func Load(labeledPath, unlabeledPath string, trainRows int) (*LakeData, error) {
	if trainRows <= 0 {
		trainRows = DefaultTrainRows
	}

	labeled, err := ReadMATFile(labeledPath)
	if err != nil {
		return nil, err
	}

	y, err := lookup(labeled, varTemperature, labeledPath)
	if err != nil {
		return nil, err
	}
	x, err := lookup(labeled, varFeatures, labeledPath)
	if err != nil {
		return nil, err
	}

	y.Squeeze()
	if len(y.Dims) != 1 {
		return nil, fmt.Errorf("%s: variable %q must squeeze to a vector, got dims %v", labeledPath, varTemperature, y.Dims)
	}
	if len(x.Dims) != 2 {
		return nil, fmt.Errorf("%s: variable %q must be a 2D matrix, got dims %v", labeledPath, varFeatures, x.Dims)
	}

	samples, featureDim := x.Dims[0], x.Dims[1]
	if y.Dims[0] != samples {
		return nil, fmt.Errorf("%s: %d temperatures for %d feature rows", labeledPath, y.Dims[0], samples)
	}

	xT, err := tensor.NewTensor([]int{samples, featureDim}, x.Data)
	if err != nil {
		return nil, err
	}
	yT, err := tensor.NewTensor([]int{samples, 1}, y.Data)
	if err != nil {
		return nil, err
	}

	full, err := training.NewTensorDataset(xT, yT)
	if err != nil {
		return nil, err
	}

	if trainRows >= samples {
		return nil, fmt.Errorf("%s: split at %d leaves no test rows (%d samples)", labeledPath, trainRows, samples)
	}
	train, test, err := full.Split(trainRows)
	if err != nil {
		return nil, err
	}

	pairs, err := loadDepthPairs(unlabeledPath, featureDim)
	if err != nil {
		return nil, err
	}

	return &LakeData{
		Train: train,
		Test:  test,
		Pairs: pairs,
	}, nil
}

func loadDepthPairs(path string, featureDim int) (*physics.DepthPairs, error) {
	unlabeled, err := ReadMATFile(path)
	if err != nil {
		return nil, err
	}

	shallow, err := lookup(unlabeled, varShallow, path)
	if err != nil {
		return nil, err
	}
	deep, err := lookup(unlabeled, varDeep, path)
	if err != nil {
		return nil, err
	}

	if len(shallow.Dims) != 2 || len(deep.Dims) != 2 {
		return nil, fmt.Errorf("%s: depth pair variables must be 2D matrices", path)
	}
	if shallow.Dims[1] != featureDim || deep.Dims[1] != featureDim {
		return nil, fmt.Errorf("%s: depth pair feature dimension %dx%d does not match labeled dimension %d",
			path, shallow.Dims[1], deep.Dims[1], featureDim)
	}

	shallowT, err := tensor.NewTensor(shallow.Dims, shallow.Data)
	if err != nil {
		return nil, err
	}
	deepT, err := tensor.NewTensor(deep.Dims, deep.Data)
	if err != nil {
		return nil, err
	}

	return physics.NewDepthPairs(shallowT, deepT)
}

func lookup(arrays map[string]*Array, name, path string) (*Array, error) {
	arr, ok := arrays[name]
	if !ok {
		return nil, fmt.Errorf("%s: variable %q not found", path, name)
	}
	return arr, nil
}
