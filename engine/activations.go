package engine

import (
	"math"
)

// activate applies the activation function to a pre-activation value.
func activate(v float64, activation ActivationType) float64 {
	switch activation {
	case ActivationReLU:
		if v < 0 {
			return 0
		}
		return v
	case ActivationSigmoid:
		// exp(min(v,0)) / (1 + exp(-|v|)) avoids overflow on large |v|
		return math.Exp(math.Min(v, 0)) / (1 + math.Exp(-math.Abs(v)))
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationLeakyReLU:
		if v < 0 {
			return v * leakySlope
		}
		return v
	case ActivationLinear:
		return v
	case ActivationBinaryStep:
		if v > 0 {
			return 1
		}
		return 0
	default:
		return v
	}
}

// activateDerivative computes the derivative with respect to the
// pre-activation value.
func activateDerivative(pre float64, activation ActivationType) float64 {
	switch activation {
	case ActivationReLU:
		// 0 at and below 0
		if pre > 0 {
			return 1
		}
		return 0
	case ActivationSigmoid:
		s := activate(pre, ActivationSigmoid)
		// clamp to (0,1) so the product never collapses against the
		// cross-entropy clamp
		s = math.Min(math.Max(s, Epsilon), 1-Epsilon)
		return s * (1 - s)
	case ActivationTanh:
		t := math.Tanh(pre)
		return 1 - t*t
	case ActivationLeakyReLU:
		if pre > 0 {
			return 1
		}
		return leakySlope
	case ActivationLinear:
		return 1
	case ActivationBinaryStep:
		// gradient stop
		return 0
	default:
		return 1
	}
}
