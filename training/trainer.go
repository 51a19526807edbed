package training

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/limnoml/lake-pgnn/physics"
	"github.com/limnoml/lake-pgnn/tensor"
)

// ErrNonFiniteLoss is returned when the training loss becomes NaN or Inf.
// Training aborts immediately rather than continuing with corrupted
// parameters.
var ErrNonFiniteLoss = errors.New("training loss is not finite")

// TrainingConfig holds configuration for training
type TrainingConfig struct {
	Epochs        int
	EarlyStopping bool // Enable early stopping based on validation loss
	Patience      int  // Number of epochs to wait for improvement before stopping
	LogEvery      int  // Log epoch stats every N epochs (0 = every epoch)
}

// EpochMetrics holds metrics for a single epoch
type EpochMetrics struct {
	Epoch         int
	TrainLoss     float64
	ValidLoss     float64
	PhysicsLoss   float64 // mean(max(0, diff)) on the depth pairs
	EpochDuration time.Duration
	BatchCount    int
}

// Trainer fits a temperature network by minimizing the physics-guided loss
// over the labeled training partition, with the depth-pair consistency term
// recomputed from the current parameters at every step.
type Trainer struct {
	model     Module
	optimizer Optimizer
	criterion *PhysicsInformedLoss
	pairs     *physics.DepthPairs // may be nil for purely empirical training
	scheduler LRScheduler         // may be nil for a constant learning rate
	baseLR    float64
	config    TrainingConfig
	logger    *zap.Logger
	metrics   []EpochMetrics
}

// NewTrainer creates a new Trainer. pairs may be nil to train without the
// physics term; logger may be nil to silence epoch logging.
func NewTrainer(model Module, optimizer Optimizer, criterion *PhysicsInformedLoss, pairs *physics.DepthPairs, config TrainingConfig, logger *zap.Logger) (*Trainer, error) {
	if model == nil || optimizer == nil || criterion == nil {
		return nil, fmt.Errorf("model, optimizer and criterion are required")
	}
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	if config.EarlyStopping && config.Patience <= 0 {
		return nil, fmt.Errorf("early stopping requires a positive patience, got %d", config.Patience)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trainer{
		model:     model,
		optimizer: optimizer,
		criterion: criterion,
		pairs:     pairs,
		config:    config,
		logger:    logger,
		metrics:   make([]EpochMetrics, 0, config.Epochs),
	}, nil
}

// SetScheduler installs a learning-rate schedule applied at each epoch.
func (t *Trainer) SetScheduler(s LRScheduler, baseLR float64) {
	t.scheduler = s
	t.baseLR = baseLR
}

// Metrics returns the per-epoch training history.
func (t *Trainer) Metrics() []EpochMetrics {
	return t.metrics
}

// Train runs the training loop over trainLoader, monitoring validLoader for
// early stopping. On a stalled validation loss the best-so-far parameters
// are restored before returning.
func (t *Trainer) Train(trainLoader, validLoader *DataLoader) error {
	t.logger.Info("starting training",
		zap.Int("epochs", t.config.Epochs),
		zap.Bool("early_stopping", t.config.EarlyStopping),
		zap.Int("patience", t.config.Patience),
		zap.Float64("lambda", t.criterion.Lambda()),
	)

	bestValidLoss := math.Inf(1)
	patienceCounter := 0
	var bestWeights []*tensor.Tensor

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		epochStart := time.Now()

		if t.scheduler != nil {
			t.optimizer.SetLR(t.scheduler.GetLR(epoch, t.baseLR))
		}

		t.model.Train()
		trainLoss, physicsLoss, batchCount, err := t.trainEpoch(trainLoader)
		if err != nil {
			return fmt.Errorf("training epoch %d failed: %w", epoch, err)
		}

		metrics := EpochMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			ValidLoss:     math.NaN(),
			PhysicsLoss:   physicsLoss,
			EpochDuration: time.Since(epochStart),
			BatchCount:    batchCount,
		}

		if validLoader != nil {
			t.model.Eval()
			validLoss, err := t.validateEpoch(validLoader)
			if err != nil {
				return fmt.Errorf("validation epoch %d failed: %w", epoch, err)
			}
			metrics.ValidLoss = validLoss

			if validLoss < bestValidLoss {
				bestValidLoss = validLoss
				patienceCounter = 0
				bestWeights, err = snapshotParameters(t.model)
				if err != nil {
					return fmt.Errorf("failed to snapshot parameters: %w", err)
				}
			} else {
				patienceCounter++
			}
		}

		t.metrics = append(t.metrics, metrics)

		if t.config.LogEvery == 0 || (epoch+1)%t.config.LogEvery == 0 {
			t.logger.Info("epoch complete",
				zap.Int("epoch", epoch),
				zap.Float64("train_loss", metrics.TrainLoss),
				zap.Float64("valid_loss", metrics.ValidLoss),
				zap.Float64("physics_loss", metrics.PhysicsLoss),
				zap.Duration("duration", metrics.EpochDuration),
			)
		}

		if t.config.EarlyStopping && validLoader != nil && patienceCounter >= t.config.Patience {
			t.logger.Info("early stopping triggered",
				zap.Int("epoch", epoch),
				zap.Float64("best_valid_loss", bestValidLoss),
			)
			break
		}
	}

	if bestWeights != nil {
		if err := restoreParameters(t.model, bestWeights); err != nil {
			return fmt.Errorf("failed to restore best parameters: %w", err)
		}
	}
	t.model.Eval()

	return nil
}

// trainEpoch runs one training epoch and returns the sample-weighted average
// loss and the final physics penalty value.
func (t *Trainer) trainEpoch(trainLoader *DataLoader) (float64, float64, int, error) {
	var totalLoss float64
	var totalSamples int
	var batchCount int
	var physicsLoss float64

	for batch := range trainLoader.Iterator() {
		t.optimizer.ZeroGrad()

		output, err := t.model.Forward(batch.Data)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("forward pass failed: %w", err)
		}

		violations, err := t.currentViolations()
		if err != nil {
			return 0, 0, 0, err
		}

		loss, err := t.criterion.Compose(output, batch.Labels, violations)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("loss computation failed: %w", err)
		}

		lossValue, err := loss.Item()
		if err != nil {
			return 0, 0, 0, fmt.Errorf("failed to read loss value: %w", err)
		}
		if math.IsNaN(lossValue) || math.IsInf(lossValue, 0) {
			return 0, 0, 0, fmt.Errorf("aborting at batch %d: %w", batchCount, ErrNonFiniteLoss)
		}

		if err := loss.Backward(); err != nil {
			return 0, 0, 0, fmt.Errorf("backward pass failed: %w", err)
		}

		if err := t.optimizer.Step(); err != nil {
			return 0, 0, 0, fmt.Errorf("optimizer step failed: %w", err)
		}

		if violations != nil {
			physicsLoss = physics.MeanViolation(violations.Data)
		}

		batchSize := batch.Data.Shape[0]
		totalLoss += lossValue * float64(batchSize)
		totalSamples += batchSize
		batchCount++
	}

	if totalSamples == 0 {
		return 0, 0, 0, fmt.Errorf("training loader produced no samples")
	}

	return totalLoss / float64(totalSamples), physicsLoss, batchCount, nil
}

// validateEpoch computes the loss over the held-out split. The physics term
// is included so the monitored quantity matches the training objective.
func (t *Trainer) validateEpoch(validLoader *DataLoader) (float64, error) {
	var totalLoss float64
	var totalSamples int

	for batch := range validLoader.Iterator() {
		output, err := t.model.Forward(batch.Data)
		if err != nil {
			return 0, fmt.Errorf("validation forward pass failed: %w", err)
		}

		violations, err := t.currentViolations()
		if err != nil {
			return 0, err
		}

		loss, err := t.criterion.Compose(output, batch.Labels, violations)
		if err != nil {
			return 0, fmt.Errorf("validation loss computation failed: %w", err)
		}

		lossValue, err := loss.Item()
		if err != nil {
			return 0, fmt.Errorf("failed to read validation loss value: %w", err)
		}
		if math.IsNaN(lossValue) || math.IsInf(lossValue, 0) {
			return 0, fmt.Errorf("validation loss: %w", ErrNonFiniteLoss)
		}

		batchSize := batch.Data.Shape[0]
		totalLoss += lossValue * float64(batchSize)
		totalSamples += batchSize
	}

	if totalSamples == 0 {
		return 0, fmt.Errorf("validation loader produced no samples")
	}

	return totalLoss / float64(totalSamples), nil
}

// currentViolations evaluates the density-depth differences for the current
// parameters over the full set of depth pairs.
func (t *Trainer) currentViolations() (*tensor.Tensor, error) {
	if t.pairs == nil {
		return nil, nil
	}

	shallowPred, err := t.model.Forward(t.pairs.Shallow)
	if err != nil {
		return nil, fmt.Errorf("shallow depth forward pass failed: %w", err)
	}
	deepPred, err := t.model.Forward(t.pairs.Deep)
	if err != nil {
		return nil, fmt.Errorf("deep depth forward pass failed: %w", err)
	}

	return physics.ViolationsFromPredictions(shallowPred, deepPred)
}

func snapshotParameters(model Module) ([]*tensor.Tensor, error) {
	params := model.Parameters()
	snapshot := make([]*tensor.Tensor, len(params))
	for i, param := range params {
		clone, err := param.Detach()
		if err != nil {
			return nil, err
		}
		snapshot[i] = clone
	}
	return snapshot, nil
}

func restoreParameters(model Module, snapshot []*tensor.Tensor) error {
	params := model.Parameters()
	if len(params) != len(snapshot) {
		return fmt.Errorf("snapshot has %d parameters, model has %d", len(snapshot), len(params))
	}
	for i, param := range params {
		if param.NumElems != snapshot[i].NumElems {
			return fmt.Errorf("parameter %d size mismatch: %d vs %d", i, param.NumElems, snapshot[i].NumElems)
		}
		copy(param.Data, snapshot[i].Data)
	}
	return nil
}
