package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

const (
	bundleType    = "nnstudy/model"
	bundleVersion = 1
)

// ModelBundle is the versioned envelope of an exported model.
type ModelBundle struct {
	Type    string     `json:"type"`
	Version int        `json:"version"`
	Model   ModelState `json:"model"`
}

// ModelState is everything needed to reproduce a model: seed, distribution,
// truth table, the working parameter set with locks and clips, the full step
// ledger, and the current position.
type ModelState struct {
	ModelID      string       `json:"id"`
	Seed         int64        `json:"seed"`
	DrawOffset   int          `json:"draw_offset"`
	Position     int          `json:"position"`
	FillSteps    int          `json:"fill_steps"`
	PrngDraws    int          `json:"prng_draws"`
	Hyper        Hyper        `json:"hyper"`
	Truth        TruthTable   `json:"truth"`
	Distribution Distribution `json:"distribution"`
	Params       ParamState   `json:"params"`
	Steps        []StepState  `json:"steps"`
}

// ParamState serializes a full parameter set, masks and bounds included.
type ParamState struct {
	Hidden int       `json:"hidden"`
	W1     []float64 `json:"w1"`
	B1     []float64 `json:"b1"`
	W2     []float64 `json:"w2"`
	B2     []float64 `json:"b2"`
	LockW1 []bool    `json:"lock_w1"`
	LockB1 []bool    `json:"lock_b1"`
	LockW2 []bool    `json:"lock_w2"`
	LockB2 []bool    `json:"lock_b2"`
	ClipW1 []Clip    `json:"clip_w1"`
	ClipB1 []Clip    `json:"clip_b1"`
	ClipW2 []Clip    `json:"clip_w2"`
	ClipB2 []Clip    `json:"clip_b2"`
}

// BlockValues serializes just the scalar values of a parameter set; ledger
// records share the working set's masks and bounds on import.
type BlockValues struct {
	W1 []float64 `json:"w1"`
	B1 []float64 `json:"b1"`
	W2 []float64 `json:"w2"`
	B2 []float64 `json:"b2"`
}

// StepState serializes one ledger record.
type StepState struct {
	Position int                `json:"position"`
	Sample   Sample             `json:"sample"`
	Hits     [NumCategories]int `json:"hits"`
	Before   BlockValues        `json:"before"`
	After    BlockValues        `json:"after"`
	Loss     float64            `json:"loss"`
	AvgLoss  float64            `json:"avg_loss"`
}

func paramState(p *ParamSet) ParamState {
	return ParamState{
		Hidden: p.Hidden,
		W1:     append([]float64(nil), p.W1...),
		B1:     append([]float64(nil), p.B1...),
		W2:     append([]float64(nil), p.W2...),
		B2:     append([]float64(nil), p.B2...),
		LockW1: append([]bool(nil), p.lockW1...),
		LockB1: append([]bool(nil), p.lockB1...),
		LockW2: append([]bool(nil), p.lockW2...),
		LockB2: append([]bool(nil), p.lockB2...),
		ClipW1: append([]Clip(nil), p.clipW1...),
		ClipB1: append([]Clip(nil), p.clipB1...),
		ClipW2: append([]Clip(nil), p.clipW2...),
		ClipB2: append([]Clip(nil), p.clipB2...),
	}
}

func (ps ParamState) paramSet() (*ParamSet, error) {
	h := ps.Hidden
	if h < 1 {
		return nil, fmt.Errorf("import: hidden units %d, want >= 1", h)
	}
	if len(ps.W1) != 2*h || len(ps.B1) != h || len(ps.W2) != h || len(ps.B2) != 1 {
		return nil, fmt.Errorf("import: parameter block sizes do not match H=%d", h)
	}
	p := NewParamSet(h)
	copy(p.W1, ps.W1)
	copy(p.B1, ps.B1)
	copy(p.W2, ps.W2)
	copy(p.B2, ps.B2)
	copy(p.lockW1, ps.LockW1)
	copy(p.lockB1, ps.LockB1)
	copy(p.lockW2, ps.LockW2)
	copy(p.lockB2, ps.LockB2)
	copy(p.clipW1, ps.ClipW1)
	copy(p.clipB1, ps.ClipB1)
	copy(p.clipW2, ps.ClipW2)
	copy(p.clipB2, ps.ClipB2)
	return p, nil
}

func blockValues(p *ParamSet) BlockValues {
	return BlockValues{
		W1: append([]float64(nil), p.W1...),
		B1: append([]float64(nil), p.B1...),
		W2: append([]float64(nil), p.W2...),
		B2: append([]float64(nil), p.B2...),
	}
}

// attach builds a parameter set from serialized values, carrying over the
// masks and bounds of the given template.
func (bv BlockValues) attach(template *ParamSet) (*ParamSet, error) {
	p := template.Clone()
	if len(bv.W1) != len(p.W1) || len(bv.B1) != len(p.B1) ||
		len(bv.W2) != len(p.W2) || len(bv.B2) != len(p.B2) {
		return nil, fmt.Errorf("import: step block sizes do not match H=%d", p.Hidden)
	}
	copy(p.W1, bv.W1)
	copy(p.B1, bv.B1)
	copy(p.W2, bv.W2)
	copy(p.B2, bv.B2)
	return p, nil
}

// Export serializes the whole model state as a versioned JSON blob. The
// format is owned by this package; callers treat it as opaque.
func (c *Controller) Export() ([]byte, error) {
	state := ModelState{
		ModelID:      c.ModelID,
		Seed:         c.seq.Seed(),
		DrawOffset:   c.drawOffset,
		Position:     c.pos,
		FillSteps:    c.cfg.FillSteps,
		PrngDraws:    c.prngSrc.drawn,
		Hyper:        c.hyper,
		Truth:        c.truth,
		Distribution: c.seq.Distribution(),
		Params:       paramState(c.params),
	}
	state.Steps = make([]StepState, c.ledger.Len())
	for i := 0; i < c.ledger.Len(); i++ {
		rec, err := c.ledger.At(i)
		if err != nil {
			return nil, err
		}
		state.Steps[i] = StepState{
			Position: rec.Position,
			Sample:   rec.Sample,
			Hits:     rec.Hits,
			Before:   blockValues(rec.Before),
			After:    blockValues(rec.After),
			Loss:     rec.Loss,
			AvgLoss:  rec.AvgLoss,
		}
	}
	return json.MarshalIndent(ModelBundle{Type: bundleType, Version: bundleVersion, Model: state}, "", "  ")
}

// Import reconstructs a controller from an exported blob, validating the
// envelope and every structural invariant before accepting it.
func Import(blob []byte) (*Controller, error) {
	var bundle ModelBundle
	if err := json.Unmarshal(blob, &bundle); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	if bundle.Type != bundleType {
		return nil, fmt.Errorf("import: bundle type %q, want %q", bundle.Type, bundleType)
	}
	if bundle.Version != bundleVersion {
		return nil, fmt.Errorf("import: unsupported version %d, supported: %d", bundle.Version, bundleVersion)
	}
	state := bundle.Model

	if err := state.Distribution.Validate(); err != nil {
		return nil, err
	}
	if err := state.Hyper.validate(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	params, err := state.Params.paramSet()
	if err != nil {
		return nil, err
	}
	if len(state.Steps) == 0 {
		return nil, fmt.Errorf("import: no baseline record")
	}

	seq := &Sequencer{seed: state.Seed, dist: state.Distribution}
	c := &Controller{
		ModelID: state.ModelID,
		cfg: Config{
			Seed:             state.Seed,
			HiddenUnits:      params.Hidden,
			LearningRate:     state.Hyper.LearningRate,
			Activation:       state.Hyper.Hidden,
			OutputActivation: state.Hyper.Output,
			Loss:             state.Hyper.Loss,
			FillSteps:        state.FillSteps,
			ClipMin:          state.Hyper.ClipMin,
			ClipMax:          state.Hyper.ClipMax,
		},
		hyper:      state.Hyper,
		truth:      state.Truth,
		seq:        seq,
		drawOffset: state.DrawOffset,
		params:     params,
		pos:        state.Position,
	}
	c.prngSrc = newCountingSource(state.Seed)
	c.prngSrc.skipTo(state.PrngDraws)
	c.prng = rand.New(c.prngSrc)

	for i, ss := range state.Steps {
		if ss.Position != i {
			return nil, &OutOfOrderError{Got: ss.Position, Want: i}
		}
		before, err := ss.Before.attach(params)
		if err != nil {
			return nil, err
		}
		after, err := ss.After.attach(params)
		if err != nil {
			return nil, err
		}
		rec := &StepRecord{
			Position: ss.Position,
			Sample:   ss.Sample,
			Hits:     ss.Hits,
			Before:   before,
			After:    after,
			Loss:     ss.Loss,
			AvgLoss:  ss.AvgLoss,
		}
		if i == 0 {
			c.ledger = NewLedger(rec)
		} else if err := c.ledger.Append(rec); err != nil {
			return nil, err
		}
	}
	if c.pos < 0 || c.pos > c.ledger.LastPosition() {
		return nil, &PositionNotReachedError{Position: c.pos, Len: c.ledger.Len()}
	}
	c.realignStream()
	return c, nil
}
