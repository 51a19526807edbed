package training

import (
	"math"
	"testing"

	"github.com/limnoml/lake-pgnn/tensor"
)

func TestMSELoss(t *testing.T) {
	predicted, _ := tensor.NewTensor([]int{4, 1}, []float64{1, 2, 3, 4})
	target, _ := tensor.NewTensor([]int{4, 1}, []float64{1, 2, 2, 6})

	t.Run("Mean reduction", func(t *testing.T) {
		loss := NewMSELoss("mean")
		out, err := loss.Forward(predicted, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		// errors: 0, 0, 1, -2 -> squared sum 5, mean 1.25
		v, _ := out.Item()
		if math.Abs(v-1.25) > 1e-12 {
			t.Errorf("MSE = %v, want 1.25", v)
		}
	})

	t.Run("Sum reduction", func(t *testing.T) {
		loss := NewMSELoss("sum")
		out, err := loss.Forward(predicted, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		v, _ := out.Item()
		if math.Abs(v-5) > 1e-12 {
			t.Errorf("Sum MSE = %v, want 5", v)
		}
	})

	t.Run("Default reduction is mean", func(t *testing.T) {
		loss := NewMSELoss("")
		out, err := loss.Forward(predicted, target)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		v, _ := out.Item()
		if math.Abs(v-1.25) > 1e-12 {
			t.Errorf("MSE = %v, want 1.25", v)
		}
	})

	t.Run("Unknown reduction", func(t *testing.T) {
		loss := NewMSELoss("median")
		if _, err := loss.Forward(predicted, target); err == nil {
			t.Error("Expected error for unknown reduction")
		}
	})

	t.Run("Shape mismatch", func(t *testing.T) {
		loss := NewMSELoss("mean")
		bad, _ := tensor.NewTensor([]int{3, 1}, nil)
		if _, err := loss.Forward(predicted, bad); err == nil {
			t.Error("Expected shape mismatch error")
		}
	})
}

func TestNewPhysicsInformedLoss(t *testing.T) {
	if _, err := NewPhysicsInformedLoss(-1); err == nil {
		t.Error("Expected error for negative lambda")
	}

	loss, err := NewPhysicsInformedLoss(100)
	if err != nil {
		t.Fatalf("NewPhysicsInformedLoss failed: %v", err)
	}
	if loss.Lambda() != 100 {
		t.Errorf("Lambda() = %v, want 100", loss.Lambda())
	}
}

func TestComposeZeroLambdaEqualsMSE(t *testing.T) {
	predicted, _ := tensor.NewTensor([]int{3, 1}, []float64{1, 2, 3})
	target, _ := tensor.NewTensor([]int{3, 1}, []float64{0, 2, 5})
	violations, _ := tensor.NewTensor([]int{4}, []float64{10, 20, -5, 0})

	plain := NewMSELoss("mean")
	want, _ := plain.Forward(predicted, target)
	wantV, _ := want.Item()

	loss, _ := NewPhysicsInformedLoss(0)
	out, err := loss.Compose(predicted, target, violations)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	v, _ := out.Item()
	if v != wantV {
		t.Errorf("Compose with lambda=0 = %v, want plain MSE %v", v, wantV)
	}
}

func TestComposeNilViolations(t *testing.T) {
	predicted, _ := tensor.NewTensor([]int{2, 1}, []float64{1, 3})
	target, _ := tensor.NewTensor([]int{2, 1}, []float64{0, 0})

	loss, _ := NewPhysicsInformedLoss(50)
	out, err := loss.Compose(predicted, target, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	// (1 + 9) / 2 = 5 with no penalty term
	v, _ := out.Item()
	if math.Abs(v-5) > 1e-12 {
		t.Errorf("Compose with nil violations = %v, want 5", v)
	}
}

func TestComposePenaltyOnlyCountsViolations(t *testing.T) {
	// Zero empirical error isolates the penalty term.
	predicted, _ := tensor.NewTensor([]int{2, 1}, []float64{5, 5})
	target, _ := tensor.NewTensor([]int{2, 1}, []float64{5, 5})

	// Negative diffs are physically consistent and contribute nothing;
	// mean(max(0, diff)) = (2 + 0 + 0 + 6) / 4 = 2
	violations, _ := tensor.NewTensor([]int{4}, []float64{2, -3, 0, 6})

	loss, _ := NewPhysicsInformedLoss(10)
	out, err := loss.Compose(predicted, target, violations)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	v, _ := out.Item()
	if math.Abs(v-20) > 1e-12 {
		t.Errorf("Penalty = %v, want 20", v)
	}
}

func TestComposeScalesWithLambda(t *testing.T) {
	predicted, _ := tensor.NewTensor([]int{2, 1}, []float64{1, 1})
	target, _ := tensor.NewTensor([]int{2, 1}, []float64{1, 1})
	violations, _ := tensor.NewTensor([]int{2}, []float64{1, 3})

	lossAt := func(lambda float64) float64 {
		loss, _ := NewPhysicsInformedLoss(lambda)
		out, err := loss.Compose(predicted, target, violations)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		v, _ := out.Item()
		return v
	}

	if l1, l10 := lossAt(1), lossAt(10); math.Abs(l10-10*l1) > 1e-12 {
		t.Errorf("Penalty should scale linearly with lambda: got %v and %v", l1, l10)
	}
}

func TestComposeGradientFlowsThroughPenalty(t *testing.T) {
	// The penalty term must contribute gradients to whatever produced the
	// violations, not only through the empirical term.
	predicted, _ := tensor.NewTensor([]int{2, 1}, []float64{1, 1})
	target, _ := tensor.NewTensor([]int{2, 1}, []float64{1, 1})

	violations, _ := tensor.NewTensor([]int{2}, []float64{0.5, -0.5})
	violations.SetRequiresGrad(true)

	loss, _ := NewPhysicsInformedLoss(4)
	out, err := loss.Compose(predicted, target, violations)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if err := out.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	grad := violations.Grad()
	if grad == nil {
		t.Fatal("Expected gradient on violations")
	}
	// d/dv lambda * mean(relu(v)): lambda/N for positive entries, 0 otherwise
	if math.Abs(grad.Data[0]-2) > 1e-12 {
		t.Errorf("grad[0] = %v, want 2", grad.Data[0])
	}
	if grad.Data[1] != 0 {
		t.Errorf("grad[1] = %v, want 0 for consistent pair", grad.Data[1])
	}
}
