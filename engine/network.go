package engine

// forwardTrace holds the intermediate values of one forward pass, needed by
// the backward pass.
type forwardTrace struct {
	z1, a1 []float64
	z2     float64
	yhat   float64
}

// forward runs one input pair through the network.
func forward(x [2]float64, p *ParamSet, h Hyper) forwardTrace {
	hid := p.Hidden
	tr := forwardTrace{
		z1: make([]float64, hid),
		a1: make([]float64, hid),
	}
	for j := 0; j < hid; j++ {
		sum := p.B1[j]
		for i := 0; i < 2; i++ {
			sum += x[i] * p.W1[i*hid+j]
		}
		tr.z1[j] = sum
		tr.a1[j] = activate(sum, h.Hidden)
	}
	z2 := p.B2[0]
	for j := 0; j < hid; j++ {
		z2 += tr.a1[j] * p.W2[j]
	}
	tr.z2 = z2
	tr.yhat = activate(z2, h.Output)
	return tr
}

// Gradients holds dLoss/dParam for every scalar, in ParamSet layout.
type Gradients struct {
	W1 []float64
	B1 []float64
	W2 []float64
	B2 []float64
}

// backward computes exact gradients of the loss at the traced forward pass.
func backward(x [2]float64, label float64, tr forwardTrace, p *ParamSet, h Hyper) Gradients {
	hid := p.Hidden
	g := Gradients{
		W1: make([]float64, 2*hid),
		B1: make([]float64, hid),
		W2: make([]float64, hid),
		B2: make([]float64, 1),
	}

	// delta2 = dL/da2 * da2/dz2
	delta2 := lossDerivative(tr.yhat, label, h.Loss) * activateDerivative(tr.z2, h.Output)

	g.B2[0] = delta2
	for j := 0; j < hid; j++ {
		g.W2[j] = tr.a1[j] * delta2

		// delta1_j = w2_j * delta2 * da1_j/dz1_j
		delta1 := p.W2[j] * delta2 * activateDerivative(tr.z1[j], h.Hidden)
		g.B1[j] = delta1
		for i := 0; i < 2; i++ {
			g.W1[i*hid+j] = x[i] * delta1
		}
	}
	return g
}

// Step runs one forward+backward+SGD update for a single sample. Pure: the
// input parameter set is never mutated, there is no hidden state, and the
// same inputs always produce the same outputs. The returned loss is the
// sample's loss evaluated with the updated parameters. Clip bounds and lock
// pinning are the caller's normalization step, not part of the update rule.
func Step(s Sample, p *ParamSet, h Hyper) (*ParamSet, float64) {
	tr := forward(s.Input, p, h)
	g := backward(s.Input, s.Label, tr, p, h)

	next := p.Clone()
	lr := h.LearningRate
	for i := range next.W1 {
		next.W1[i] -= lr * g.W1[i]
	}
	for j := range next.B1 {
		next.B1[j] -= lr * g.B1[j]
	}
	for j := range next.W2 {
		next.W2[j] -= lr * g.W2[j]
	}
	next.B2[0] -= lr * g.B2[0]

	after := forward(s.Input, next, h)
	return next, lossValue(after.yhat, s.Label, h.Loss)
}

// Prediction is the network's output over all four inputs plus the loss per
// input and its mean, evaluated against the given truth table.
type Prediction struct {
	YHat    [NumCategories]float64 `json:"y_hat"`
	LossPer [NumCategories]float64 `json:"loss_per_input"`
	AvgLoss float64                `json:"avg_loss"`
}

// Predict evaluates the network on all four input pairs.
func Predict(p *ParamSet, h Hyper, truth TruthTable) Prediction {
	var out Prediction
	for c := 0; c < NumCategories; c++ {
		tr := forward(Category(c).Input(), p, h)
		out.YHat[c] = tr.yhat
		out.LossPer[c] = lossValue(tr.yhat, truth[c], h.Loss)
		out.AvgLoss += out.LossPer[c]
	}
	out.AvgLoss /= NumCategories
	return out
}
