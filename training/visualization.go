package training

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotLossCurves renders the training history as a PNG: training loss,
// validation loss (when recorded), and the physics penalty per epoch.
func PlotLossCurves(history []EpochMetrics, path string) error {
	if len(history) == 0 {
		return fmt.Errorf("no training history to plot")
	}

	p := plot.New()
	p.Title.Text = "Training history"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Legend.Top = true

	trainPts := make(plotter.XYs, 0, len(history))
	validPts := make(plotter.XYs, 0, len(history))
	physicsPts := make(plotter.XYs, 0, len(history))

	for _, m := range history {
		trainPts = append(trainPts, plotter.XY{X: float64(m.Epoch), Y: m.TrainLoss})
		if !math.IsNaN(m.ValidLoss) {
			validPts = append(validPts, plotter.XY{X: float64(m.Epoch), Y: m.ValidLoss})
		}
		physicsPts = append(physicsPts, plotter.XY{X: float64(m.Epoch), Y: m.PhysicsLoss})
	}

	trainLine, err := plotter.NewLine(trainPts)
	if err != nil {
		return fmt.Errorf("failed to build training loss line: %w", err)
	}
	p.Add(trainLine)
	p.Legend.Add("train", trainLine)

	if len(validPts) > 0 {
		validLine, err := plotter.NewLine(validPts)
		if err != nil {
			return fmt.Errorf("failed to build validation loss line: %w", err)
		}
		validLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(validLine)
		p.Legend.Add("validation", validLine)
	}

	physicsLine, err := plotter.NewLine(physicsPts)
	if err != nil {
		return fmt.Errorf("failed to build physics penalty line: %w", err)
	}
	physicsLine.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
	p.Add(physicsLine)
	p.Legend.Add("physics penalty", physicsLine)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save loss plot: %w", err)
	}
	return nil
}
