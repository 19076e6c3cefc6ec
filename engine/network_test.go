package engine

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// testParams builds a small fixed parameter set for H=2.
func testParams() *ParamSet {
	p := NewParamSet(2)
	copy(p.W1, []float64{0.3, -0.2, 0.5, 0.4}) // w1[i][j] at i*2+j
	copy(p.B1, []float64{0.1, -0.1})
	copy(p.W2, []float64{0.7, -0.6})
	copy(p.B2, []float64{0.05})
	return p
}

func TestForwardHandComputed(t *testing.T) {
	p := NewParamSet(2)
	copy(p.W1, []float64{1, 2, 3, 4})
	copy(p.B1, []float64{0.5, -0.5})
	copy(p.W2, []float64{1, -1})
	copy(p.B2, []float64{0.25})
	h := Hyper{Hidden: ActivationLinear, Output: ActivationLinear}

	// x=(1,1): z1 = (0.5+1+3, -0.5+2+4) = (4.5, 5.5); z2 = 0.25 + 4.5 - 5.5
	tr := forward([2]float64{1, 1}, p, h)
	if math.Abs(tr.yhat-(-0.75)) > 1e-12 {
		t.Errorf("linear forward = %v, want -0.75", tr.yhat)
	}

	// x=(0,1) only uses the second input row
	tr = forward([2]float64{0, 1}, p, h)
	want := 0.25 + (0.5+3)*1 + (-0.5+4)*(-1)
	if math.Abs(tr.yhat-want) > 1e-12 {
		t.Errorf("linear forward = %v, want %v", tr.yhat, want)
	}

	// ReLU hidden zeroes negative pre-activations
	p2 := NewParamSet(1)
	copy(p2.W1, []float64{-1, -1})
	copy(p2.B1, []float64{0})
	copy(p2.W2, []float64{5})
	copy(p2.B2, []float64{0.5})
	tr = forward([2]float64{1, 1}, p2, Hyper{Hidden: ActivationReLU, Output: ActivationLinear})
	if tr.yhat != 0.5 {
		t.Errorf("dead ReLU unit leaked: yhat = %v, want 0.5", tr.yhat)
	}
}

// flatten and unflatten map a parameter set onto one vector for the numerical
// gradient check.
func flatten(p *ParamSet) []float64 {
	out := append([]float64(nil), p.W1...)
	out = append(out, p.B1...)
	out = append(out, p.W2...)
	out = append(out, p.B2...)
	return out
}

func unflatten(x []float64, hidden int) *ParamSet {
	p := NewParamSet(hidden)
	i := 0
	i += copy(p.W1, x[i:i+2*hidden])
	i += copy(p.B1, x[i:i+hidden])
	i += copy(p.W2, x[i:i+hidden])
	copy(p.B2, x[i:i+1])
	return p
}

func TestBackwardMatchesNumericalGradient(t *testing.T) {
	// smooth configurations only; ReLU kinks would break central differences
	hypers := []Hyper{
		{Hidden: ActivationTanh, Output: ActivationSigmoid, Loss: LossCrossEntropy},
		{Hidden: ActivationSigmoid, Output: ActivationTanh, Loss: LossSquaredHinge},
		{Hidden: ActivationTanh, Output: ActivationLinear, Loss: LossSquaredHinge01},
	}
	samples := []Sample{
		{Category: Cat01, Input: [2]float64{0, 1}, Label: 1},
		{Category: Cat11, Input: [2]float64{1, 1}, Label: 0},
	}

	p := testParams()
	x0 := flatten(p)

	for _, h := range hypers {
		for _, s := range samples {
			lossAt := func(x []float64) float64 {
				q := unflatten(x, p.Hidden)
				tr := forward(s.Input, q, h)
				return lossValue(tr.yhat, s.Label, h.Loss)
			}

			numeric := fd.Gradient(nil, lossAt, x0, nil)

			tr := forward(s.Input, p, h)
			g := backward(s.Input, s.Label, tr, p, h)
			analytic := flatten(&ParamSet{Hidden: p.Hidden, W1: g.W1, B1: g.B1, W2: g.W2, B2: g.B2})

			if !floats.EqualApprox(numeric, analytic, 1e-5) {
				t.Errorf("%s/%s/%s on %s:\n numeric  %v\n analytic %v",
					h.Hidden, h.Output, h.Loss, s.Category, numeric, analytic)
			}
		}
	}
}

func TestStepIsPure(t *testing.T) {
	p := testParams()
	before := p.Clone()
	h := Hyper{LearningRate: 0.1, Hidden: ActivationTanh, Output: ActivationSigmoid, Loss: LossCrossEntropy}
	s := Sample{Category: Cat10, Input: [2]float64{1, 0}, Label: 1}

	next1, loss1 := Step(s, p, h)
	if !p.Equal(before) {
		t.Fatal("Step mutated its input parameters")
	}
	next2, loss2 := Step(s, p, h)
	if !next1.Equal(next2) || loss1 != loss2 {
		t.Fatal("Step is not deterministic for identical inputs")
	}
	if p.Equal(next1) {
		t.Fatal("Step produced no update")
	}

	// the returned loss is evaluated with the updated parameters
	tr := forward(s.Input, next1, h)
	if want := lossValue(tr.yhat, s.Label, h.Loss); loss1 != want {
		t.Errorf("step loss = %v, want %v from updated parameters", loss1, want)
	}
}

func TestStepDescendsOnSmoothLoss(t *testing.T) {
	p := testParams()
	h := Hyper{LearningRate: 0.01, Hidden: ActivationTanh, Output: ActivationSigmoid, Loss: LossCrossEntropy}
	s := Sample{Category: Cat01, Input: [2]float64{0, 1}, Label: 1}

	before := forward(s.Input, p, h)
	lossBefore := lossValue(before.yhat, s.Label, h.Loss)
	_, lossAfter := Step(s, p, h)

	// one small SGD step on a smooth loss moves downhill on that sample
	if lossAfter >= lossBefore {
		t.Errorf("loss went from %v to %v after a gradient step", lossBefore, lossAfter)
	}
}

func TestPredictAveragesAllInputs(t *testing.T) {
	p := testParams()
	h := Hyper{Hidden: ActivationTanh, Output: ActivationSigmoid, Loss: LossCrossEntropy}

	pred := Predict(p, h, XORTruth)
	sum := 0.0
	for c := 0; c < NumCategories; c++ {
		tr := forward(Category(c).Input(), p, h)
		if pred.YHat[c] != tr.yhat {
			t.Errorf("yhat[%s] = %v, want %v", Category(c), pred.YHat[c], tr.yhat)
		}
		want := lossValue(tr.yhat, XORTruth[c], h.Loss)
		if pred.LossPer[c] != want {
			t.Errorf("loss[%s] = %v, want %v", Category(c), pred.LossPer[c], want)
		}
		sum += want
	}
	if math.Abs(pred.AvgLoss-sum/NumCategories) > 1e-15 {
		t.Errorf("avg loss = %v, want %v", pred.AvgLoss, sum/NumCategories)
	}
}
