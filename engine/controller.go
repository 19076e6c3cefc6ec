package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// StepObserver receives every record the controller appends, after the
// mutation is complete. Optional; used by presentation layers for live plots.
type StepObserver func(*StepRecord)

// RandomizeScope selects which scalars a Randomize call may redraw.
type RandomizeScope int

const (
	// ScopeUnlocked redraws only unlocked scalars, honoring position rules.
	ScopeUnlocked RandomizeScope = iota
	// ScopeAll is an explicit user action and overrides lock flags.
	ScopeAll
)

// countingSource wraps a deterministic rand source and counts the values it
// hands out, so a clone or an import can fast-forward a fresh source to the
// same point of the redraw stream.
type countingSource struct {
	src   rand.Source
	drawn int
}

func newCountingSource(seed int64) *countingSource {
	return &countingSource{src: rand.NewSource(seed)}
}

func (s *countingSource) Int63() int64 {
	s.drawn++
	return s.src.Int63()
}

func (s *countingSource) Seed(seed int64) {
	s.src.Seed(seed)
	s.drawn = 0
}

func (s *countingSource) skipTo(n int) {
	for s.drawn < n {
		s.src.Int63()
		s.drawn++
	}
}

// Controller owns one model: its sequencer, parameter set and ledger. It is
// the sole writer of all three; operations are synchronous and atomic, never
// leaving the ledger or parameters half-applied. One controller per model,
// with no shared mutable state across controllers.
type Controller struct {
	// ModelID identifies the handle across the presentation layer.
	ModelID string

	cfg   Config
	hyper Hyper
	truth TruthTable

	seq    *Sequencer
	stream *Stream
	// drawOffset counts draws consumed before this ledger's baseline, so a
	// rebased or restarted model keeps advancing the same underlying stream.
	drawOffset int

	params *ParamSet // working set at the current position, may hold pending edits
	ledger *Ledger
	pos    int

	// parameter redraw stream, distinct from the sample stream
	prng    *rand.Rand
	prngSrc *countingSource

	observer StepObserver
}

// NewModel creates a controller from the configuration, randomizes the
// initial parameters and materializes position 0.
func NewModel(cfg Config) (*Controller, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	seq, err := NewSequencer(cfg.Seed, *cfg.Distribution)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		ModelID: uuid.NewString(),
		cfg:     cfg,
		hyper: Hyper{
			LearningRate: cfg.LearningRate,
			Hidden:       cfg.Activation,
			Output:       cfg.OutputActivation,
			Loss:         cfg.Loss,
			ClipMin:      cfg.ClipMin,
			ClipMax:      cfg.ClipMax,
		},
		truth: *cfg.Truth,
		seq:   seq,
	}
	c.prngSrc = newCountingSource(cfg.Seed)
	c.prng = rand.New(c.prngSrc)
	c.params = NewParamSet(cfg.HiddenUnits)
	if err := c.params.SetClipAll(cfg.ClipMin, cfg.ClipMax); err != nil {
		return nil, err
	}
	c.params.Randomize(c.prng, true)
	c.ledger = NewLedger(c.makeBaseline())
	c.stream = seq.Stream()
	return c, nil
}

// makeBaseline builds the position-0 record from the working parameters.
func (c *Controller) makeBaseline() *StepRecord {
	pred := Predict(c.params, c.hyper, c.truth)
	return &StepRecord{
		Position: 0,
		Sample:   Sample{Category: CatNone},
		Before:   c.params.Clone(),
		After:    c.params.Clone(),
		Loss:     pred.AvgLoss,
		AvgLoss:  pred.AvgLoss,
	}
}

// realignStream restarts the sample stream and fast-forwards it to the
// ledger's end, so the next draw is deterministic after any truncation.
func (c *Controller) realignStream() {
	c.stream = c.seq.Stream()
	c.stream.Skip(c.drawOffset + c.ledger.LastPosition())
}

// afterEdit is the unconditional response to any accepted edit at the
// current position: forward history is discarded and, at position 0, the
// baseline record is rebuilt from the edited working state.
func (c *Controller) afterEdit() {
	c.ledger.TruncateAfter(c.pos)
	if c.pos == 0 {
		c.ledger = NewLedger(c.makeBaseline())
	}
	c.realignStream()
}

// Position returns the current materialized position.
func (c *Controller) Position() int { return c.pos }

// LastPosition returns the highest materialized ledger position.
func (c *Controller) LastPosition() int { return c.ledger.LastPosition() }

// Snapshot returns a copy of the working parameter set at the current
// position, including pending edits.
func (c *Controller) Snapshot() *ParamSet { return c.params.Clone() }

// Truth returns the current truth table.
func (c *Controller) Truth() TruthTable { return c.truth }

// Distribution returns the current category distribution.
func (c *Controller) Distribution() Distribution { return c.seq.Distribution() }

// HyperParams returns the current hyper-parameters.
func (c *Controller) HyperParams() Hyper { return c.hyper }

// SetObserver installs the step observer. Pass nil to remove it.
func (c *Controller) SetObserver(obs StepObserver) { c.observer = obs }

// extend materializes one new position past the ledger's end, starting from
// the working parameter set. Hit counts chain from the last ledger record,
// not from the stream's own counters: the stream also counts the prefix
// skipped on realignment, which a rebased ledger has already subtracted.
func (c *Controller) extend() (*StepRecord, error) {
	prev, err := c.ledger.At(c.ledger.LastPosition())
	if err != nil {
		return nil, err
	}
	cat, _ := c.stream.Next()
	hits := prev.Hits
	hits[cat]++
	s := Sample{Category: cat, Input: cat.Input(), Label: c.truth[cat]}

	before := c.params.Clone()
	next, _ := Step(s, c.params, c.hyper)
	next.clipAll()
	next.pinLockedFrom(before)

	tr := forward(s.Input, next, c.hyper)
	pred := Predict(next, c.hyper, c.truth)

	rec := &StepRecord{
		Position: c.ledger.LastPosition() + 1,
		Sample:   s,
		Hits:     hits,
		Before:   before,
		After:    next,
		Loss:     lossValue(tr.yhat, s.Label, c.hyper.Loss),
		AvgLoss:  pred.AvgLoss,
	}
	if err := c.ledger.Append(rec); err != nil {
		return nil, err
	}
	c.params = next.Clone()
	c.pos = rec.Position
	if c.observer != nil {
		c.observer(rec)
	}
	return rec, nil
}

// AdvanceOne moves to position P+1: from the ledger when it is already
// materialized, otherwise by running one training step.
func (c *Controller) AdvanceOne() (*StepRecord, error) {
	if c.pos < c.ledger.LastPosition() {
		rec, err := c.ledger.At(c.pos + 1)
		if err != nil {
			return nil, err
		}
		c.pos = rec.Position
		c.params.adoptValues(rec.After)
		return rec, nil
	}
	return c.extend()
}

// GoTo seeks to position p: backward or within history from the ledger in
// O(1), forward past the end by repeated single-step advancement.
func (c *Controller) GoTo(p int) (*StepRecord, error) {
	if p < 0 {
		return nil, fmt.Errorf("go to: negative position %d", p)
	}
	if p > c.ledger.LastPosition() {
		// jump to the frontier, then extend step by step
		last, err := c.ledger.At(c.ledger.LastPosition())
		if err != nil {
			return nil, err
		}
		c.pos = last.Position
		c.params.adoptValues(last.After)
		for c.ledger.LastPosition() < p {
			if _, err := c.extend(); err != nil {
				return nil, err
			}
		}
	}
	rec, err := c.ledger.At(p)
	if err != nil {
		return nil, err
	}
	c.pos = p
	c.params.adoptValues(rec.After)
	return rec, nil
}

// FillFromCurrent discards any stale forward history, then replays forward
// from the current (possibly hand-edited) parameters for the given number of
// steps. steps <= 0 uses the configured fill horizon.
func (c *Controller) FillFromCurrent(steps int) ([]*StepRecord, error) {
	if steps <= 0 {
		steps = c.cfg.FillSteps
	}
	c.afterEdit()
	out := make([]*StepRecord, 0, steps)
	for i := 0; i < steps; i++ {
		rec, err := c.extend()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reset is "new model": history is discarded, the sample stream restarts at
// draw 0 and every unlocked scalar, weight matrices included, is redrawn.
func (c *Controller) Reset() {
	c.pos = 0
	c.drawOffset = 0
	c.params.Randomize(c.prng, true)
	c.ledger = NewLedger(c.makeBaseline())
	c.realignStream()
}

// NewModelFromHere keeps the current (locked) values as the new position-0
// baseline, redraws the unlocked scalars, and continues the sample stream
// where it left off instead of repeating consumed draws.
func (c *Controller) NewModelFromHere() {
	c.drawOffset += c.pos
	c.pos = 0
	c.params.Randomize(c.prng, true)
	c.ledger = NewLedger(c.makeBaseline())
	c.realignStream()
}

// Randomize redraws parameters at the current position and truncates forward
// history. ScopeUnlocked honors lock flags and the position-zero weight rule;
// ScopeAll is an explicit user override of every lock. Returns a snapshot of
// the resulting parameters.
func (c *Controller) Randomize(scope RandomizeScope) *ParamSet {
	switch scope {
	case ScopeAll:
		c.params.RandomizeAll(c.prng)
	default:
		c.params.Randomize(c.prng, c.pos == 0)
	}
	c.afterEdit()
	return c.params.Clone()
}

// SetParam writes one scalar as a user edit (locks do not apply, clip does)
// and truncates forward history. The edit lives in the working set until the
// next extension materializes it into a record; at position 0 it rewrites the
// baseline record, at any later position a seek back to the same position
// re-adopts the stored record's values and discards the pending edit.
func (c *Controller) SetParam(path Path, v float64) error {
	if err := c.params.Set(path, v, OriginUser); err != nil {
		return err
	}
	c.afterEdit()
	return nil
}

// SetLock sets or clears one scalar's lock flag and truncates forward
// history.
func (c *Controller) SetLock(path Path, locked bool) error {
	if err := c.params.SetLock(path, locked); err != nil {
		return err
	}
	c.afterEdit()
	return nil
}

// SetClip installs one scalar's clip bound, saturating the stored value, and
// truncates forward history.
func (c *Controller) SetClip(path Path, min, max float64) error {
	if err := c.params.SetClip(path, min, max); err != nil {
		return err
	}
	c.afterEdit()
	return nil
}

// SetTruth rewrites one truth-table label and truncates forward history.
// Randomization never touches the truth table; this is the only mutator.
func (c *Controller) SetTruth(cat Category, label float64) error {
	if cat < 0 || cat >= NumCategories {
		return fmt.Errorf("set truth: category %d out of range", cat)
	}
	c.truth[cat] = label
	c.afterEdit()
	return nil
}

// SetDistribution replaces the category distribution. On a malformed
// distribution the edit is rejected and the prior one kept.
func (c *Controller) SetDistribution(dist Distribution) error {
	if err := c.seq.SetDistribution(dist); err != nil {
		return err
	}
	c.afterEdit()
	return nil
}

// SetProbability sets one category's probability, renormalizing the other
// categories evenly.
func (c *Controller) SetProbability(cat Category, p float64) error {
	dist, err := c.seq.Distribution().WithProbability(cat, p)
	if err != nil {
		return err
	}
	return c.SetDistribution(dist)
}

// SetHyper replaces the training hyper-parameters and truncates forward
// history. The clip range is pushed onto every scalar.
func (c *Controller) SetHyper(h Hyper) error {
	if err := h.validate(); err != nil {
		return fmt.Errorf("set hyper: %w", err)
	}
	c.hyper = h
	if err := c.params.SetClipAll(h.ClipMin, h.ClipMax); err != nil {
		return err
	}
	c.afterEdit()
	return nil
}

// RandomizeHyper redraws the hyper-parameters not pinned by locks from the
// given seed. One variate per field is consumed whether or not the field is
// locked, so the drawn values depend only on the seed.
func (c *Controller) RandomizeHyper(seed int64, locks HyperLock) error {
	rng := rand.New(rand.NewSource(seed))

	lr := math.Round((rng.Float64()*0.98+0.01)*100) / 100
	if locks&LockLearningRate == 0 {
		c.hyper.LearningRate = lr
	}

	clipMin := float64(rng.Intn(40) - 20)          // [-20, 19]
	clipMax := clipMin + 1 + float64(rng.Intn(20)) // (clipMin, clipMin+20]
	if clipMax > 20 {
		clipMax = 20
	}
	if locks&LockClipRange == 0 {
		c.hyper.ClipMin, c.hyper.ClipMax = clipMin, clipMax
		if err := c.params.SetClipAll(clipMin, clipMax); err != nil {
			return err
		}
	}

	hidden := HiddenActivations[rng.Intn(len(HiddenActivations))]
	if locks&LockHiddenActivation == 0 {
		c.hyper.Hidden = hidden
	}

	output := OutputActivations[rng.Intn(len(OutputActivations))]
	if locks&LockOutputActivation == 0 {
		c.hyper.Output = output
	}

	loss := Losses[rng.Intn(len(Losses))]
	if locks&LockLoss == 0 {
		c.hyper.Loss = loss
	}

	c.afterEdit()
	return nil
}

// DeleteBefore drops history before position p, making p the new position 0.
// The sample stream is unaffected: the dropped prefix stays consumed.
func (c *Controller) DeleteBefore(p int) error {
	if p <= 0 {
		return nil
	}
	if err := c.ledger.RebaseTo(p); err != nil {
		return err
	}
	c.drawOffset += p
	if c.pos >= p {
		c.pos -= p
	} else {
		c.pos = 0
	}
	rec, err := c.ledger.At(c.pos)
	if err != nil {
		return err
	}
	c.params.adoptValues(rec.After)
	return nil
}

// Clone returns an independent controller with identical state under a fresh
// ModelID. Nothing mutable is shared with the original; the redraw stream is
// fast-forwarded to the original's position so both randomize identically
// from here on.
func (c *Controller) Clone() *Controller {
	out := &Controller{
		ModelID:    uuid.NewString(),
		cfg:        c.cfg,
		hyper:      c.hyper,
		truth:      c.truth,
		drawOffset: c.drawOffset,
		params:     c.params.Clone(),
		ledger:     c.ledger.clone(),
		pos:        c.pos,
		seq:        &Sequencer{seed: c.seq.seed, dist: c.seq.dist},
	}
	out.prngSrc = newCountingSource(c.cfg.Seed)
	out.prngSrc.skipTo(c.prngSrc.drawn)
	out.prng = rand.New(out.prngSrc)
	out.realignStream()
	return out
}
