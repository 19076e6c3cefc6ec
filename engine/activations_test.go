package engine

import (
	"math"
	"testing"
)

func TestActivationValues(t *testing.T) {
	cases := []struct {
		act  ActivationType
		in   float64
		want float64
	}{
		{ActivationReLU, 2.5, 2.5},
		{ActivationReLU, -2.5, 0},
		{ActivationSigmoid, 0, 0.5},
		{ActivationTanh, 0, 0},
		{ActivationLeakyReLU, 3, 3},
		{ActivationLeakyReLU, -3, -0.3},
		{ActivationLinear, -7.25, -7.25},
		{ActivationBinaryStep, 0.01, 1},
		{ActivationBinaryStep, 0, 0},
		{ActivationBinaryStep, -0.01, 0},
	}
	for _, c := range cases {
		if got := activate(c.in, c.act); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s(%v) = %v, want %v", c.act, c.in, got, c.want)
		}
	}

	if got := activate(2, ActivationSigmoid); math.Abs(got-1/(1+math.Exp(-2))) > 1e-12 {
		t.Errorf("sigmoid(2) = %v", got)
	}
}

func TestSigmoidOverflowSafe(t *testing.T) {
	for _, v := range []float64{-1000, -100, 100, 1000} {
		got := activate(v, ActivationSigmoid)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("sigmoid(%v) = %v", v, got)
		}
		if got < 0 || got > 1 {
			t.Errorf("sigmoid(%v) = %v outside [0,1]", v, got)
		}
	}
	if activate(1000, ActivationSigmoid) < 0.999 {
		t.Error("sigmoid(1000) should be near 1")
	}
	if activate(-1000, ActivationSigmoid) > 0.001 {
		t.Error("sigmoid(-1000) should be near 0")
	}
}

func TestActivationDerivatives(t *testing.T) {
	cases := []struct {
		act  ActivationType
		pre  float64
		want float64
	}{
		{ActivationReLU, 1.5, 1},
		{ActivationReLU, 0, 0}, // zero at the kink
		{ActivationReLU, -1.5, 0},
		{ActivationTanh, 0, 1},
		{ActivationLeakyReLU, 2, 1},
		{ActivationLeakyReLU, -2, leakySlope},
		{ActivationLinear, 99, 1},
		{ActivationBinaryStep, 5, 0},
		{ActivationBinaryStep, -5, 0},
	}
	for _, c := range cases {
		if got := activateDerivative(c.pre, c.act); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s'(%v) = %v, want %v", c.act, c.pre, got, c.want)
		}
	}

	// sigmoid' = s(1-s), clamped away from zero in the saturated tails
	if got := activateDerivative(0, ActivationSigmoid); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("sigmoid'(0) = %v, want 0.25", got)
	}
	if got := activateDerivative(1000, ActivationSigmoid); got <= 0 {
		t.Errorf("sigmoid'(1000) = %v, want > 0", got)
	}
}
