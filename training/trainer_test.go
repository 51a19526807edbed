package training

import (
	"errors"
	"math"
	"testing"

	"github.com/limnoml/lake-pgnn/physics"
	"github.com/limnoml/lake-pgnn/tensor"
)

// linearProblem builds a small y = 2x + 1 regression dataset.
func linearProblem(t *testing.T, samples int) *TensorDataset {
	t.Helper()

	xData := make([]float64, samples)
	yData := make([]float64, samples)
	for i := range xData {
		x := float64(i) / float64(samples)
		xData[i] = x
		yData[i] = 2*x + 1
	}

	x, _ := tensor.NewTensor([]int{samples, 1}, xData)
	y, _ := tensor.NewTensor([]int{samples, 1}, yData)
	ds, err := NewTensorDataset(x, y)
	if err != nil {
		t.Fatalf("NewTensorDataset failed: %v", err)
	}
	return ds
}

func TestNewTrainerValidation(t *testing.T) {
	SetRandomSeed(1)
	model, _ := NewLinear(1, 1, true)
	criterion, _ := NewPhysicsInformedLoss(0)
	optimizer := NewSGD(model.Parameters(), 0.1, 0, 0)

	t.Run("Missing components", func(t *testing.T) {
		if _, err := NewTrainer(nil, optimizer, criterion, nil, TrainingConfig{Epochs: 1}, nil); err == nil {
			t.Error("Expected error for nil model")
		}
	})

	t.Run("Non-positive epochs", func(t *testing.T) {
		if _, err := NewTrainer(model, optimizer, criterion, nil, TrainingConfig{Epochs: 0}, nil); err == nil {
			t.Error("Expected error for zero epochs")
		}
	})

	t.Run("Early stopping without patience", func(t *testing.T) {
		cfg := TrainingConfig{Epochs: 10, EarlyStopping: true}
		if _, err := NewTrainer(model, optimizer, criterion, nil, cfg, nil); err == nil {
			t.Error("Expected error for early stopping with zero patience")
		}
	})
}

func TestTrainingLossDecreases(t *testing.T) {
	SetRandomSeed(42)

	ds := linearProblem(t, 64)
	model, _ := NewLinear(1, 1, true)
	criterion, _ := NewPhysicsInformedLoss(0)
	optimizer := NewSGD(model.Parameters(), 0.3, 0, 0)

	trainer, err := NewTrainer(model, optimizer, criterion, nil, TrainingConfig{Epochs: 200, LogEvery: 50}, nil)
	if err != nil {
		t.Fatalf("NewTrainer failed: %v", err)
	}

	loader, _ := NewDataLoader(ds, 64, false)
	if err := trainer.Train(loader, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	history := trainer.Metrics()
	if len(history) != 200 {
		t.Fatalf("Expected 200 epochs of metrics, got %d", len(history))
	}
	first, last := history[0].TrainLoss, history[len(history)-1].TrainLoss
	if !(last < first) {
		t.Errorf("Loss did not decrease: first %v, last %v", first, last)
	}
	if last > 0.01 {
		t.Errorf("Final loss %v too high for a linear problem", last)
	}
	if model.IsTraining() {
		t.Error("Model should be in eval mode after training")
	}
}

func TestNonFiniteLossAborts(t *testing.T) {
	SetRandomSeed(7)

	// A NaN observation poisons the loss on the first batch.
	x, _ := tensor.NewTensor([]int{4, 1}, []float64{1, 2, 3, 4})
	y, _ := tensor.NewTensor([]int{4, 1}, []float64{1, math.NaN(), 3, 4})
	ds, _ := NewTensorDataset(x, y)

	model, _ := NewLinear(1, 1, true)
	criterion, _ := NewPhysicsInformedLoss(0)
	optimizer := NewSGD(model.Parameters(), 0.1, 0, 0)

	trainer, _ := NewTrainer(model, optimizer, criterion, nil, TrainingConfig{Epochs: 5}, nil)
	loader, _ := NewDataLoader(ds, 4, false)

	err := trainer.Train(loader, nil)
	if err == nil {
		t.Fatal("Expected training to abort on non-finite loss")
	}
	if !errors.Is(err, ErrNonFiniteLoss) {
		t.Errorf("Expected ErrNonFiniteLoss, got %v", err)
	}
}

func TestEarlyStoppingTriggers(t *testing.T) {
	SetRandomSeed(11)

	ds := linearProblem(t, 32)
	valid := linearProblem(t, 8)

	model, _ := NewLinear(1, 1, true)
	criterion, _ := NewPhysicsInformedLoss(0)
	// Zero learning rate: parameters never move, so validation loss stalls
	// immediately and patience runs out.
	optimizer := NewSGD(model.Parameters(), 0, 0, 0)

	trainer, err := NewTrainer(model, optimizer, criterion, nil, TrainingConfig{
		Epochs:        100,
		EarlyStopping: true,
		Patience:      3,
	}, nil)
	if err != nil {
		t.Fatalf("NewTrainer failed: %v", err)
	}

	trainLoader, _ := NewDataLoader(ds, 32, false)
	validLoader, _ := NewDataLoader(valid, 8, false)

	if err := trainer.Train(trainLoader, validLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	history := trainer.Metrics()
	if len(history) >= 100 {
		t.Errorf("Early stopping never triggered: ran all %d epochs", len(history))
	}
	// Epoch 0 improves on +Inf; patience then counts 3 stalled epochs.
	if len(history) != 4 {
		t.Errorf("Expected 4 epochs before stopping, got %d", len(history))
	}
}

func TestBestWeightsRestoredAfterEarlyStop(t *testing.T) {
	SetRandomSeed(13)

	ds := linearProblem(t, 32)
	valid := linearProblem(t, 8)

	model, _ := NewLinear(1, 1, true)
	criterion, _ := NewPhysicsInformedLoss(0)
	optimizer := NewSGD(model.Parameters(), 0, 0, 0)

	trainer, _ := NewTrainer(model, optimizer, criterion, nil, TrainingConfig{
		Epochs:        10,
		EarlyStopping: true,
		Patience:      2,
	}, nil)

	before := make([]float64, 0)
	for _, p := range model.Parameters() {
		before = append(before, append([]float64{}, p.Data...)...)
	}

	trainLoader, _ := NewDataLoader(ds, 32, false)
	validLoader, _ := NewDataLoader(valid, 8, false)
	if err := trainer.Train(trainLoader, validLoader); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// With a zero learning rate the best weights equal the initial weights.
	after := make([]float64, 0)
	for _, p := range model.Parameters() {
		after = append(after, append([]float64{}, p.Data...)...)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Parameter %d changed from %v to %v with lr=0", i, before[i], after[i])
		}
	}
}

func TestTrainingWithPhysicsTerm(t *testing.T) {
	SetRandomSeed(21)

	ds := linearProblem(t, 16)

	shallow, _ := tensor.NewTensor([]int{6, 1}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	deep, _ := tensor.NewTensor([]int{6, 1}, []float64{0.7, 0.8, 0.9, 1.0, 1.1, 1.2})
	pairs, err := physics.NewDepthPairs(shallow, deep)
	if err != nil {
		t.Fatalf("NewDepthPairs failed: %v", err)
	}

	model, _ := NewMLP(1, 4, 1)
	criterion, _ := NewPhysicsInformedLoss(10)
	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.01
	optimizer, _ := NewAdam(model.Parameters(), cfg)

	trainer, err := NewTrainer(model, optimizer, criterion, pairs, TrainingConfig{Epochs: 5}, nil)
	if err != nil {
		t.Fatalf("NewTrainer failed: %v", err)
	}

	loader, _ := NewDataLoader(ds, 16, true)
	if err := trainer.Train(loader, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	for i, m := range trainer.Metrics() {
		if math.IsNaN(m.TrainLoss) || math.IsInf(m.TrainLoss, 0) {
			t.Fatalf("Epoch %d train loss not finite: %v", i, m.TrainLoss)
		}
		if m.PhysicsLoss < 0 {
			t.Errorf("Epoch %d physics loss negative: %v", i, m.PhysicsLoss)
		}
	}
}

func TestSchedulerDrivesLearningRate(t *testing.T) {
	SetRandomSeed(5)

	ds := linearProblem(t, 16)
	model, _ := NewLinear(1, 1, true)
	criterion, _ := NewPhysicsInformedLoss(0)
	optimizer := NewSGD(model.Parameters(), 1.0, 0, 0)

	trainer, _ := NewTrainer(model, optimizer, criterion, nil, TrainingConfig{Epochs: 3}, nil)
	trainer.SetScheduler(NewExponentialLRScheduler(0.5), 0.1)

	loader, _ := NewDataLoader(ds, 16, false)
	if err := trainer.Train(loader, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// Last epoch is 2: lr = 0.1 * 0.5^2
	want := 0.1 * 0.25
	if math.Abs(optimizer.GetLR()-want) > 1e-12 {
		t.Errorf("Final learning rate %v, want %v", optimizer.GetLR(), want)
	}
}
