package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/limnoml/lake-pgnn/tensor"
)

// Dataset interface defines methods that all datasets must implement
type Dataset interface {
	Len() int                                         // Total number of samples
	Get(idx int) (data, label []float64, err error)   // Returns a single sample
	FeatureDim() int                                  // Width of each feature vector
}

// TensorDataset pairs a [samples, features] matrix with a [samples, 1]
// target column.
type TensorDataset struct {
	X *tensor.Tensor
	Y *tensor.Tensor
}

// NewTensorDataset validates shapes and wraps the matrices.
func NewTensorDataset(x, y *tensor.Tensor) (*TensorDataset, error) {
	if len(x.Shape) != 2 {
		return nil, fmt.Errorf("features must be 2D [samples, features], got shape %v", x.Shape)
	}
	if len(y.Shape) != 2 || y.Shape[1] != 1 {
		return nil, fmt.Errorf("targets must be 2D [samples, 1], got shape %v", y.Shape)
	}
	if x.Shape[0] != y.Shape[0] {
		return nil, fmt.Errorf("sample count mismatch: %d features vs %d targets", x.Shape[0], y.Shape[0])
	}
	return &TensorDataset{X: x, Y: y}, nil
}

// Len returns the total number of samples
func (d *TensorDataset) Len() int {
	return d.X.Shape[0]
}

// FeatureDim returns the width of each feature vector
func (d *TensorDataset) FeatureDim() int {
	return d.X.Shape[1]
}

// Get returns a single sample
func (d *TensorDataset) Get(idx int) ([]float64, []float64, error) {
	if idx < 0 || idx >= d.Len() {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, d.Len())
	}

	x, err := d.X.Row(idx)
	if err != nil {
		return nil, nil, err
	}
	y, err := d.Y.Row(idx)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Split partitions the dataset positionally: the first n samples and the
// remainder. No shuffling and no stratification.
func (d *TensorDataset) Split(n int) (*TensorDataset, *TensorDataset, error) {
	total := d.Len()
	if n <= 0 || n >= total {
		return nil, nil, fmt.Errorf("split point %d out of range (1, %d)", n, total)
	}

	cols := d.FeatureDim()
	head, err := tensor.NewTensor([]int{n, cols}, d.X.Data[:n*cols])
	if err != nil {
		return nil, nil, err
	}
	tail, err := tensor.NewTensor([]int{total - n, cols}, d.X.Data[n*cols:])
	if err != nil {
		return nil, nil, err
	}
	headY, err := tensor.NewTensor([]int{n, 1}, d.Y.Data[:n])
	if err != nil {
		return nil, nil, err
	}
	tailY, err := tensor.NewTensor([]int{total - n, 1}, d.Y.Data[n:])
	if err != nil {
		return nil, nil, err
	}

	first := &TensorDataset{X: head, Y: headY}
	second := &TensorDataset{X: tail, Y: tailY}
	return first, second, nil
}

// SplitFraction holds out the trailing fraction of the dataset, the way a
// validation split is carved off the end of the training partition.
func (d *TensorDataset) SplitFraction(holdout float64) (*TensorDataset, *TensorDataset, error) {
	if holdout <= 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("holdout fraction %g out of range (0, 1)", holdout)
	}
	n := d.Len() - int(float64(d.Len())*holdout)
	return d.Split(n)
}

// Batch represents a batch of data and labels
type Batch struct {
	Data   *tensor.Tensor
	Labels *tensor.Tensor
}

// DataLoader provides batching and optional shuffling over a Dataset
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a new DataLoader
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(1)),
		indices:   indices,
	}, nil
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset resets the data loader for a new epoch
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0

	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < dl.dataset.Len()
}

// Next returns the next batch or nil if the epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= dl.dataset.Len() {
		return nil, nil
	}

	end := dl.position + dl.batchSize
	if end > dl.dataset.Len() {
		end = dl.dataset.Len()
	}

	count := end - dl.position
	featureDim := dl.dataset.FeatureDim()
	xData := make([]float64, 0, count*featureDim)
	yData := make([]float64, 0, count)

	for _, idx := range dl.indices[dl.position:end] {
		x, y, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %w", idx, err)
		}
		xData = append(xData, x...)
		yData = append(yData, y...)
	}
	dl.position = end

	data, err := tensor.NewTensor([]int{count, featureDim}, xData)
	if err != nil {
		return nil, err
	}
	labels, err := tensor.NewTensor([]int{count, len(yData) / count}, yData)
	if err != nil {
		return nil, err
	}

	return &Batch{Data: data, Labels: labels}, nil
}

// Iterator returns a channel-based iterator for easy use in training loops
func (dl *DataLoader) Iterator() <-chan *Batch {
	batchChan := make(chan *Batch, 1)

	go func() {
		defer close(batchChan)

		dl.Reset()

		for dl.HasNext() {
			batch, err := dl.Next()
			if err != nil || batch == nil {
				return
			}
			batchChan <- batch
		}
	}()

	return batchChan
}
