package engine

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Epsilon clamps predictions away from 0 and 1 so the cross-entropy loss
// never evaluates log(0).
const Epsilon = 1e-7

// leakySlope is the negative-side slope of the leaky ReLU.
const leakySlope = 0.1

// distTolerance is how far a distribution may stray from summing to 1.
const distTolerance = 1e-7

// Category indexes the four possible input pairs of the truth table.
type Category int

const (
	Cat00 Category = 0 // input (0,0)
	Cat01 Category = 1 // input (0,1)
	Cat10 Category = 2 // input (1,0)
	Cat11 Category = 3 // input (1,1)

	// CatNone marks the baseline ledger record, which has no drawn sample.
	CatNone Category = -1

	// NumCategories is the number of input pairs.
	NumCategories = 4
)

// categoryInputs maps a category to its input pair.
var categoryInputs = [NumCategories][2]float64{
	{0, 0},
	{0, 1},
	{1, 0},
	{1, 1},
}

// Input returns the input pair for the category.
func (c Category) Input() [2]float64 {
	return categoryInputs[c]
}

func (c Category) String() string {
	if c == CatNone {
		return "none"
	}
	in := categoryInputs[c]
	return fmt.Sprintf("%d^%d", int(in[0]), int(in[1]))
}

// Sample is one drawn input pair with the truth-table label current at draw
// time. Immutable once drawn.
type Sample struct {
	Category Category   `json:"category"`
	Input    [2]float64 `json:"input"`
	Label    float64    `json:"label"`
}

// TruthTable maps each input category to its target label. Editable by the
// user; never touched by randomization.
type TruthTable [NumCategories]float64

// XORTruth is the default truth table.
var XORTruth = TruthTable{0, 1, 1, 0}

// Distribution assigns a probability to each input category.
type Distribution [NumCategories]float64

// UniformDistribution assigns 0.25 to every category.
var UniformDistribution = Distribution{0.25, 0.25, 0.25, 0.25}

// Validate reports ErrInvalidDistribution if any probability is negative or
// the probabilities do not sum to 1 within tolerance.
func (d Distribution) Validate() error {
	for i, p := range d {
		if p < 0 {
			return fmt.Errorf("%w: category %s has probability %v", ErrInvalidDistribution, Category(i), p)
		}
	}
	if sum := floats.Sum(d[:]); sum < 1-distTolerance || sum > 1+distTolerance {
		return fmt.Errorf("%w: probabilities sum to %v, want 1", ErrInvalidDistribution, sum)
	}
	return nil
}

// WithProbability returns a copy with category c set to p and the remaining
// probability mass spread evenly over the other categories.
func (d Distribution) WithProbability(c Category, p float64) (Distribution, error) {
	if p < 0 || p > 1 {
		return d, fmt.Errorf("%w: probability %v out of [0,1]", ErrInvalidDistribution, p)
	}
	out := d
	out[c] = p
	rest := (1 - p) / float64(NumCategories-1)
	for i := range out {
		if Category(i) != c {
			out[i] = rest
		}
	}
	return out, nil
}

// ActivationType selects the activation function of a layer.
type ActivationType int

const (
	ActivationReLU       ActivationType = 0 // max(0, v)
	ActivationSigmoid    ActivationType = 1 // 1 / (1 + exp(-v))
	ActivationTanh       ActivationType = 2 // tanh(v)
	ActivationLeakyReLU  ActivationType = 3 // v if v > 0, else v * 0.1
	ActivationLinear     ActivationType = 4 // v
	ActivationBinaryStep ActivationType = 5 // 1 if v > 0, else 0 (zero gradient)
)

func (a ActivationType) String() string {
	switch a {
	case ActivationReLU:
		return "relu"
	case ActivationSigmoid:
		return "sigmoid"
	case ActivationTanh:
		return "tanh"
	case ActivationLeakyReLU:
		return "leaky_relu"
	case ActivationLinear:
		return "linear"
	case ActivationBinaryStep:
		return "binary_step"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// HiddenActivations lists the activations allowed on the hidden layer, in the
// order the hyper-parameter randomizer draws from.
var HiddenActivations = []ActivationType{
	ActivationReLU, ActivationSigmoid, ActivationTanh, ActivationLeakyReLU, ActivationLinear,
}

// OutputActivations lists the activations allowed on the output unit.
var OutputActivations = []ActivationType{
	ActivationSigmoid, ActivationTanh, ActivationLinear, ActivationBinaryStep,
}

// ValidHidden reports whether the activation may be used on the hidden layer.
func (a ActivationType) ValidHidden() bool {
	for _, h := range HiddenActivations {
		if h == a {
			return true
		}
	}
	return false
}

// ValidOutput reports whether the activation may be used on the output unit.
func (a ActivationType) ValidOutput() bool {
	for _, o := range OutputActivations {
		if o == a {
			return true
		}
	}
	return false
}

// LossType selects the loss function.
type LossType int

const (
	LossCrossEntropy   LossType = 0 // binary cross-entropy with epsilon clamp
	LossHinge          LossType = 1 // hinge on [-1,1] outputs, labels mapped {0,1}->{-1,1}
	LossSquaredHinge   LossType = 2 // squared hinge on [-1,1] outputs
	LossHinge01        LossType = 3 // hinge with outputs rescaled [0,1]->[-1,1]
	LossSquaredHinge01 LossType = 4 // squared hinge with outputs rescaled [0,1]->[-1,1]
)

func (l LossType) String() string {
	switch l {
	case LossCrossEntropy:
		return "cross_entropy"
	case LossHinge:
		return "hinge"
	case LossSquaredHinge:
		return "squared_hinge"
	case LossHinge01:
		return "hinge_0_1"
	case LossSquaredHinge01:
		return "squared_hinge_0_1"
	default:
		return fmt.Sprintf("loss(%d)", int(l))
	}
}

// Losses lists the loss functions, in randomizer draw order.
var Losses = []LossType{
	LossCrossEntropy, LossHinge, LossSquaredHinge, LossHinge01, LossSquaredHinge01,
}

// Valid reports whether the loss is one of the supported functions.
func (l LossType) Valid() bool {
	for _, x := range Losses {
		if x == l {
			return true
		}
	}
	return false
}

// Hyper holds the training hyper-parameters attached to a model. Each field
// can be pinned across hyper-parameter randomization via HyperLock.
type Hyper struct {
	LearningRate float64        `json:"learning_rate"`
	Hidden       ActivationType `json:"hidden_activation"`
	Output       ActivationType `json:"output_activation"`
	Loss         LossType       `json:"loss"`
	ClipMin      float64        `json:"clip_min"`
	ClipMax      float64        `json:"clip_max"`
}

// validate rejects hyper-parameter values no other mutation path would
// accept. Shared by SetHyper and Import so a crafted blob cannot smuggle in
// settings the live edits refuse.
func (h Hyper) validate() error {
	if h.LearningRate <= 0 {
		return fmt.Errorf("learning rate %v, want > 0", h.LearningRate)
	}
	if !h.Hidden.ValidHidden() {
		return fmt.Errorf("%s not allowed on the hidden layer", h.Hidden)
	}
	if !h.Output.ValidOutput() {
		return fmt.Errorf("%s not allowed on the output unit", h.Output)
	}
	if !h.Loss.Valid() {
		return fmt.Errorf("unknown loss %s", h.Loss)
	}
	if h.ClipMin > h.ClipMax {
		return fmt.Errorf("clip range [%v,%v] inverted", h.ClipMin, h.ClipMax)
	}
	return nil
}

// HyperLock is a bitmask pinning hyper-parameter fields across randomization.
type HyperLock uint

const (
	LockLearningRate HyperLock = 1 << iota
	LockClipRange
	LockHiddenActivation
	LockOutputActivation
	LockLoss
)

// Config is recognized at model creation. Zero fields take defaults.
type Config struct {
	Seed             int64
	HiddenUnits      int
	LearningRate     float64
	Activation       ActivationType // hidden layer, default ReLU
	OutputActivation ActivationType // output unit, default sigmoid
	Loss             LossType
	Distribution     *Distribution // default uniform
	Truth            *TruthTable   // default XOR
	FillSteps        int           // default horizon for FillFromCurrent
	ClipMin, ClipMax float64       // initial clip bounds on every scalar
}

// withDefaults fills unset fields and validates the rest.
func (c Config) withDefaults() (Config, error) {
	if c.HiddenUnits == 0 {
		c.HiddenUnits = 2
	}
	if c.HiddenUnits < 1 {
		return c, fmt.Errorf("config: hidden units %d, want >= 1", c.HiddenUnits)
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.LearningRate < 0 {
		return c, fmt.Errorf("config: learning rate %v, want > 0", c.LearningRate)
	}
	if !c.Activation.ValidHidden() {
		return c, fmt.Errorf("config: %s not allowed on the hidden layer", c.Activation)
	}
	if c.OutputActivation == ActivationReLU {
		// zero value: the output unit defaults to sigmoid
		c.OutputActivation = ActivationSigmoid
	}
	if !c.OutputActivation.ValidOutput() {
		return c, fmt.Errorf("config: %s not allowed on the output unit", c.OutputActivation)
	}
	if c.Distribution == nil {
		d := UniformDistribution
		c.Distribution = &d
	}
	if err := c.Distribution.Validate(); err != nil {
		return c, err
	}
	if c.Truth == nil {
		t := XORTruth
		c.Truth = &t
	}
	if c.FillSteps == 0 {
		c.FillSteps = 100
	}
	if c.ClipMin == 0 && c.ClipMax == 0 {
		c.ClipMin, c.ClipMax = -20, 20
	}
	if c.ClipMin > c.ClipMax {
		return c, fmt.Errorf("config: clip range [%v,%v] inverted", c.ClipMin, c.ClipMax)
	}
	return c, nil
}
