package engine

import (
	"math"
)

// clampUnit clips a prediction to [Epsilon, 1-Epsilon] to keep log() finite.
func clampUnit(a float64) float64 {
	return math.Min(math.Max(a, Epsilon), 1-Epsilon)
}

// signedLabel maps a {0,1} label to {-1,1} for the hinge losses.
func signedLabel(y float64) float64 {
	if y == 0 {
		return -1
	}
	return y
}

// lossValue computes the per-sample loss of prediction a against label y.
func lossValue(a, y float64, loss LossType) float64 {
	switch loss {
	case LossCrossEntropy:
		ac := clampUnit(a)
		return -(y*math.Log(ac) + (1-y)*math.Log(1-ac))
	case LossHinge:
		return math.Max(0, 1-signedLabel(y)*a)
	case LossSquaredHinge:
		m := math.Max(0, 1-signedLabel(y)*a)
		return m * m
	case LossHinge01:
		return math.Max(0, 1-signedLabel(y)*(2*a-1))
	case LossSquaredHinge01:
		m := math.Max(0, 1-signedLabel(y)*(2*a-1))
		return m * m
	default:
		return 0
	}
}

// lossDerivative computes dL/da of prediction a against label y.
func lossDerivative(a, y float64, loss LossType) float64 {
	switch loss {
	case LossCrossEntropy:
		ac := clampUnit(a)
		return -(y/ac + (y-1)/(1-ac))
	case LossHinge:
		ys := signedLabel(y)
		if ys*a < 1 {
			return -ys
		}
		return 0
	case LossSquaredHinge:
		ys := signedLabel(y)
		return -2 * ys * math.Max(0, 1-ys*a)
	case LossHinge01:
		ys := signedLabel(y)
		if ys*(2*a-1) < 1 {
			return -2 * ys
		}
		return 0
	case LossSquaredHinge01:
		ys := signedLabel(y)
		return -4 * ys * math.Max(0, 1-ys*(2*a-1))
	default:
		return 0
	}
}
