package training

import (
	"fmt"
	"math"

	"github.com/limnoml/lake-pgnn/physics"
	"github.com/limnoml/lake-pgnn/tensor"
)

// RegressionMetrics holds regression evaluation metrics
type RegressionMetrics struct {
	MAE  float64 // Mean Absolute Error
	MSE  float64 // Mean Squared Error
	RMSE float64 // Root Mean Squared Error
	R2   float64 // R-squared
}

// CalculateRegressionMetrics computes regression metrics over paired
// prediction and observation slices.
func CalculateRegressionMetrics(predictions, trueValues []float64) (*RegressionMetrics, error) {
	if len(predictions) != len(trueValues) {
		return nil, fmt.Errorf("prediction count %d does not match observation count %d", len(predictions), len(trueValues))
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("cannot compute metrics over zero samples")
	}

	n := float64(len(predictions))

	meanTrue := 0.0
	for _, v := range trueValues {
		meanTrue += v
	}
	meanTrue /= n

	sumAbsErr := 0.0
	sumSqErr := 0.0
	sumSqTotal := 0.0

	for i := range predictions {
		err := predictions[i] - trueValues[i]
		sumAbsErr += math.Abs(err)
		sumSqErr += err * err
		sumSqTotal += (trueValues[i] - meanTrue) * (trueValues[i] - meanTrue)
	}

	mae := sumAbsErr / n
	mse := sumSqErr / n

	r2 := 0.0
	if sumSqTotal > 0 {
		r2 = 1.0 - sumSqErr/sumSqTotal
	}

	return &RegressionMetrics{
		MAE:  mae,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		R2:   r2,
	}, nil
}

// EvalReport is the final evaluation output: held-out prediction error plus
// the mean physics-violation magnitude. The violation metric is computed on
// the same depth pairs used during training, not a held-out physics set; a
// known limitation of the original study design.
type EvalReport struct {
	Metrics       *RegressionMetrics
	MeanViolation float64
}

// Evaluate runs the trained model over the test partition and the depth
// pairs. The forward pass is deterministic: evaluating the same parameters
// twice yields identical numbers.
func Evaluate(model Module, test *TensorDataset, pairs *physics.DepthPairs) (*EvalReport, error) {
	model.Eval()

	predictions, err := model.Forward(test.X)
	if err != nil {
		return nil, fmt.Errorf("test forward pass failed: %w", err)
	}

	metrics, err := CalculateRegressionMetrics(predictions.Data, test.Y.Data)
	if err != nil {
		return nil, err
	}

	report := &EvalReport{Metrics: metrics}

	if pairs != nil {
		diffs, err := physicsViolations(model, pairs)
		if err != nil {
			return nil, err
		}
		report.MeanViolation = physics.MeanViolation(diffs.Data)
	}

	return report, nil
}

func physicsViolations(model Module, pairs *physics.DepthPairs) (*tensor.Tensor, error) {
	shallowPred, err := model.Forward(pairs.Shallow)
	if err != nil {
		return nil, fmt.Errorf("shallow depth forward pass failed: %w", err)
	}
	deepPred, err := model.Forward(pairs.Deep)
	if err != nil {
		return nil, fmt.Errorf("deep depth forward pass failed: %w", err)
	}
	return physics.ViolationsFromPredictions(shallowPred, deepPred)
}
