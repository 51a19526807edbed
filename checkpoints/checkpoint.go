// Package checkpoints persists trained model state as JSON: parameter
// tensors, training progress, and metadata.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/limnoml/lake-pgnn/tensor"
	"github.com/limnoml/lake-pgnn/training"
)

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// TrainingState captures the training progress at save time
type TrainingState struct {
	Epoch         int     `json:"epoch"`
	LearningRate  float64 `json:"learning_rate"`
	BestValidLoss float64 `json:"best_valid_loss"`
	Lambda        float64 `json:"lambda"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Checkpoint represents a complete model state: weights plus training
// metadata. Weights are stored positionally in the order the model reports
// its parameters.
type Checkpoint struct {
	Weights       []WeightTensor     `json:"weights"`
	TrainingState TrainingState      `json:"training_state"`
	Metadata      CheckpointMetadata `json:"metadata"`
}

// FromModule captures the current parameters of a model.
func FromModule(model training.Module, state TrainingState) (*Checkpoint, error) {
	params := model.Parameters()
	weights := make([]WeightTensor, len(params))
	for i, param := range params {
		data := make([]float64, param.NumElems)
		copy(data, param.Data)

		shape := make([]int, len(param.Shape))
		copy(shape, param.Shape)

		weights[i] = WeightTensor{
			Name:  fmt.Sprintf("param_%d", i),
			Shape: shape,
			Data:  data,
		}
	}

	return &Checkpoint{
		Weights:       weights,
		TrainingState: state,
		Metadata: CheckpointMetadata{
			Version:   "1.0.0",
			Framework: "lake-pgnn",
			CreatedAt: time.Now(),
		},
	}, nil
}

// ApplyTo copies the checkpoint weights into a model with a matching
// parameter layout.
func (c *Checkpoint) ApplyTo(model training.Module) error {
	params := model.Parameters()
	if len(params) != len(c.Weights) {
		return fmt.Errorf("checkpoint has %d weight tensors, model has %d parameters", len(c.Weights), len(params))
	}

	for i, param := range params {
		w := c.Weights[i]
		if len(w.Data) != param.NumElems {
			return fmt.Errorf("weight %s has %d elements, parameter expects %d", w.Name, len(w.Data), param.NumElems)
		}
		if !shapesMatch(w.Shape, param.Shape) {
			return fmt.Errorf("weight %s shape %v does not match parameter shape %v", w.Name, w.Shape, param.Shape)
		}
		copy(param.Data, w.Data)
	}

	return nil
}

// Save writes the checkpoint to path as indented JSON.
func (c *Checkpoint) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	return nil
}

// Load reads a checkpoint from path.
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	for _, w := range checkpoint.Weights {
		if _, err := tensor.NewTensor(w.Shape, w.Data); err != nil {
			return nil, fmt.Errorf("weight %s is malformed: %w", w.Name, err)
		}
	}

	return &checkpoint, nil
}

func shapesMatch(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
