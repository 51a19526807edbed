// Package config holds the experiment configuration for the lake
// temperature pipeline, loaded from YAML with sensible defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full experiment configuration.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Output   OutputConfig   `yaml:"output"`
}

// DataConfig locates the input .mat files and fixes the positional split.
type DataConfig struct {
	Labeled   string `yaml:"labeled"`   // file with Y and Xc_doy
	Unlabeled string `yaml:"unlabeled"` // file with Xc_doy1 and Xc_doy2
	TrainRows int    `yaml:"train_rows"`
}

// ModelConfig describes the network architecture.
type ModelConfig struct {
	Hidden []int `yaml:"hidden"` // hidden layer widths; output layer is implicit
	Seed   int64 `yaml:"seed"`
}

// TrainingConfig holds the optimization hyperparameters.
type TrainingConfig struct {
	Lambda          float64 `yaml:"lambda"` // physics penalty weight
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	Patience        int     `yaml:"patience"`
	LearningRate    float64 `yaml:"learning_rate"`
	ClipNorm        float64 `yaml:"clip_norm"`
	LRSchedule      string  `yaml:"lr_schedule"` // constant, step, exponential
	LogEvery        int     `yaml:"log_every"`
}

// OutputConfig names optional artifacts written after training.
type OutputConfig struct {
	Checkpoint string `yaml:"checkpoint"`
	LossPlot   string `yaml:"loss_plot"`
}

// Default returns the configuration of the published study: a D-12-12-1
// network trained with Adam, lambda 100, and a 100-epoch patience window.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Labeled:   "data/lake.mat",
			Unlabeled: "data/lake_depth_pairs.mat",
			TrainRows: 3000,
		},
		Model: ModelConfig{
			Hidden: []int{12, 12},
			Seed:   1,
		},
		Training: TrainingConfig{
			Lambda:          100,
			Epochs:          1000,
			BatchSize:       1000,
			ValidationSplit: 0.1,
			Patience:        100,
			LearningRate:    1e-3,
			ClipNorm:        1.0,
			LRSchedule:      "constant",
			LogEvery:        10,
		},
	}
}

// Load reads path and overlays it on the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Data.Labeled == "" || c.Data.Unlabeled == "" {
		return fmt.Errorf("both data files must be configured")
	}
	if c.Data.TrainRows <= 0 {
		return fmt.Errorf("train_rows must be positive, got %d", c.Data.TrainRows)
	}
	if len(c.Model.Hidden) == 0 {
		return fmt.Errorf("at least one hidden layer is required")
	}
	for i, h := range c.Model.Hidden {
		if h <= 0 {
			return fmt.Errorf("hidden layer %d has non-positive width %d", i, h)
		}
	}
	if c.Training.Lambda < 0 {
		return fmt.Errorf("lambda must be non-negative, got %g", c.Training.Lambda)
	}
	if c.Training.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Training.Epochs)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Training.BatchSize)
	}
	if c.Training.ValidationSplit <= 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split must be in (0, 1), got %g", c.Training.ValidationSplit)
	}
	if c.Training.Patience <= 0 {
		return fmt.Errorf("patience must be positive, got %d", c.Training.Patience)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.Training.LearningRate)
	}
	switch c.Training.LRSchedule {
	case "", "constant", "step", "exponential":
	default:
		return fmt.Errorf("unknown lr_schedule %q", c.Training.LRSchedule)
	}
	return nil
}
