package training

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPlotLossCurves(t *testing.T) {
	history := []EpochMetrics{
		{Epoch: 0, TrainLoss: 1.0, ValidLoss: 1.1, PhysicsLoss: 0.5},
		{Epoch: 1, TrainLoss: 0.7, ValidLoss: 0.8, PhysicsLoss: 0.3},
		{Epoch: 2, TrainLoss: 0.5, ValidLoss: 0.7, PhysicsLoss: 0.1},
	}

	path := filepath.Join(t.TempDir(), "loss.png")
	if err := PlotLossCurves(history, path); err != nil {
		t.Fatalf("PlotLossCurves failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Plot file not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Plot file is empty")
	}
}

func TestPlotLossCurvesWithoutValidation(t *testing.T) {
	// NaN validation losses mark epochs trained without a holdout; the
	// validation line is simply omitted.
	history := []EpochMetrics{
		{Epoch: 0, TrainLoss: 1.0, ValidLoss: math.NaN(), PhysicsLoss: 0.2},
		{Epoch: 1, TrainLoss: 0.8, ValidLoss: math.NaN(), PhysicsLoss: 0.1},
	}

	path := filepath.Join(t.TempDir(), "loss.png")
	if err := PlotLossCurves(history, path); err != nil {
		t.Fatalf("PlotLossCurves failed: %v", err)
	}
}

func TestPlotLossCurvesEmptyHistory(t *testing.T) {
	if err := PlotLossCurves(nil, "unused.png"); err == nil {
		t.Error("Expected error for empty history")
	}
}
