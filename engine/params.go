package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// Block names one of the four learnable blocks of the network.
type Block int

const (
	BlockW1 Block = 0 // 2 x H input-to-hidden weights
	BlockB1 Block = 1 // H hidden biases
	BlockW2 Block = 2 // H x 1 hidden-to-output weights
	BlockB2 Block = 3 // 1 output bias
)

func (b Block) String() string {
	switch b {
	case BlockW1:
		return "w1"
	case BlockB1:
		return "b1"
	case BlockW2:
		return "w2"
	case BlockB2:
		return "b2"
	default:
		return fmt.Sprintf("block(%d)", int(b))
	}
}

// Path addresses one scalar inside a ParamSet. For BlockW1 the row is the
// input index (0..1) and the column the hidden index; for BlockB1 and BlockW2
// only the column (hidden index) is used; BlockB2 ignores both.
type Path struct {
	Block Block `json:"block"`
	Row   int   `json:"row"`
	Col   int   `json:"col"`
}

func (p Path) String() string {
	switch p.Block {
	case BlockW1:
		return fmt.Sprintf("w1[%d][%d]", p.Row, p.Col)
	case BlockB1:
		return fmt.Sprintf("b1[%d]", p.Col)
	case BlockW2:
		return fmt.Sprintf("w2[%d]", p.Col)
	case BlockB2:
		return "b2"
	default:
		return fmt.Sprintf("%s[%d][%d]", p.Block, p.Row, p.Col)
	}
}

// W1At addresses the weight from input i to hidden unit j.
func W1At(i, j int) Path { return Path{Block: BlockW1, Row: i, Col: j} }

// B1At addresses the bias of hidden unit j.
func B1At(j int) Path { return Path{Block: BlockB1, Col: j} }

// W2At addresses the weight from hidden unit j to the output.
func W2At(j int) Path { return Path{Block: BlockW2, Col: j} }

// B2 addresses the output bias.
func B2() Path { return Path{Block: BlockB2} }

// Clip is a per-scalar saturation bound applied after every write.
type Clip struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Has bool    `json:"has"`
}

// apply saturates v into the bound. A zero Clip is unbounded.
func (c Clip) apply(v float64) float64 {
	if !c.Has {
		return v
	}
	return math.Min(math.Max(v, c.Min), c.Max)
}

// Origin distinguishes who is writing a scalar: user edits always succeed,
// randomization is blocked by lock flags.
type Origin int

const (
	OriginUser Origin = iota
	OriginRandomize
)

// ParamSet is the learnable state of the 2 -> H -> 1 network: two weight
// blocks and two bias blocks stored as flat slices, with parallel lock masks
// and clip bounds of the same shape. Every stored scalar lies within its clip
// bound after any mutation completes.
type ParamSet struct {
	Hidden int

	W1 []float64 // [2*H], index i*H + j
	B1 []float64 // [H]
	W2 []float64 // [H]
	B2 []float64 // [1]

	lockW1, lockB1, lockW2, lockB2 []bool
	clipW1, clipB1, clipW2, clipB2 []Clip
}

// NewParamSet allocates a zeroed parameter set for H hidden units, all
// scalars unlocked and unbounded.
func NewParamSet(hidden int) *ParamSet {
	p := &ParamSet{Hidden: hidden}
	p.alloc()
	return p
}

func (p *ParamSet) alloc() {
	h := p.Hidden
	p.W1 = make([]float64, 2*h)
	p.B1 = make([]float64, h)
	p.W2 = make([]float64, h)
	p.B2 = make([]float64, 1)
	p.lockW1 = make([]bool, 2*h)
	p.lockB1 = make([]bool, h)
	p.lockW2 = make([]bool, h)
	p.lockB2 = make([]bool, 1)
	p.clipW1 = make([]Clip, 2*h)
	p.clipB1 = make([]Clip, h)
	p.clipW2 = make([]Clip, h)
	p.clipB2 = make([]Clip, 1)
}

// slot resolves a path to its backing slices and flat index.
func (p *ParamSet) slot(path Path) (vals []float64, locks []bool, clips []Clip, idx int, err error) {
	switch path.Block {
	case BlockW1:
		if path.Row < 0 || path.Row > 1 || path.Col < 0 || path.Col >= p.Hidden {
			return nil, nil, nil, 0, fmt.Errorf("path %s out of range for H=%d", path, p.Hidden)
		}
		return p.W1, p.lockW1, p.clipW1, path.Row*p.Hidden + path.Col, nil
	case BlockB1:
		if path.Col < 0 || path.Col >= p.Hidden {
			return nil, nil, nil, 0, fmt.Errorf("path %s out of range for H=%d", path, p.Hidden)
		}
		return p.B1, p.lockB1, p.clipB1, path.Col, nil
	case BlockW2:
		if path.Col < 0 || path.Col >= p.Hidden {
			return nil, nil, nil, 0, fmt.Errorf("path %s out of range for H=%d", path, p.Hidden)
		}
		return p.W2, p.lockW2, p.clipW2, path.Col, nil
	case BlockB2:
		return p.B2, p.lockB2, p.clipB2, 0, nil
	default:
		return nil, nil, nil, 0, fmt.Errorf("unknown block %s", path.Block)
	}
}

// Get returns the scalar at path.
func (p *ParamSet) Get(path Path) (float64, error) {
	vals, _, _, idx, err := p.slot(path)
	if err != nil {
		return 0, err
	}
	return vals[idx], nil
}

// Set writes the scalar at path and immediately re-applies its clip bound.
// Randomization-origin writes to locked scalars fail with
// LockedParameterError; user edits always succeed.
func (p *ParamSet) Set(path Path, v float64, origin Origin) error {
	vals, locks, clips, idx, err := p.slot(path)
	if err != nil {
		return err
	}
	if origin == OriginRandomize && locks[idx] {
		return &LockedParameterError{Path: path}
	}
	vals[idx] = clips[idx].apply(v)
	return nil
}

// Locked reports the lock flag at path.
func (p *ParamSet) Locked(path Path) (bool, error) {
	_, locks, _, idx, err := p.slot(path)
	if err != nil {
		return false, err
	}
	return locks[idx], nil
}

// SetLock sets or clears the lock flag at path.
func (p *ParamSet) SetLock(path Path, locked bool) error {
	_, locks, _, idx, err := p.slot(path)
	if err != nil {
		return err
	}
	locks[idx] = locked
	return nil
}

// ClipBound returns the clip bound at path.
func (p *ParamSet) ClipBound(path Path) (Clip, error) {
	_, _, clips, idx, err := p.slot(path)
	if err != nil {
		return Clip{}, err
	}
	return clips[idx], nil
}

// SetClip installs a clip bound at path and immediately saturates the stored
// value into it.
func (p *ParamSet) SetClip(path Path, min, max float64) error {
	if min > max {
		return fmt.Errorf("clip range [%v,%v] inverted for %s", min, max, path)
	}
	vals, _, clips, idx, err := p.slot(path)
	if err != nil {
		return err
	}
	clips[idx] = Clip{Min: min, Max: max, Has: true}
	vals[idx] = clips[idx].apply(vals[idx])
	return nil
}

// ClearClip removes the clip bound at path.
func (p *ParamSet) ClearClip(path Path) error {
	_, _, clips, idx, err := p.slot(path)
	if err != nil {
		return err
	}
	clips[idx] = Clip{}
	return nil
}

// SetClipAll installs the same clip bound on every scalar, saturating stored
// values.
func (p *ParamSet) SetClipAll(min, max float64) error {
	if min > max {
		return fmt.Errorf("clip range [%v,%v] inverted", min, max)
	}
	p.forEachBlock(func(vals []float64, _ []bool, clips []Clip) {
		for i := range clips {
			clips[i] = Clip{Min: min, Max: max, Has: true}
			vals[i] = clips[i].apply(vals[i])
		}
	})
	return nil
}

func (p *ParamSet) forEachBlock(fn func(vals []float64, locks []bool, clips []Clip)) {
	fn(p.W1, p.lockW1, p.clipW1)
	fn(p.B1, p.lockB1, p.clipB1)
	fn(p.W2, p.lockW2, p.clipW2)
	fn(p.B2, p.lockB2, p.clipB2)
}

// defaultPrior is the redraw interval used when a scalar has no clip bound.
const defaultPriorMin, defaultPriorMax = -10.0, 10.0

// redraw draws a fresh value inside the scalar's clip bound, or the default
// prior when unbounded.
func redraw(rng *rand.Rand, c Clip) float64 {
	lo, hi := defaultPriorMin, defaultPriorMax
	if c.Has {
		lo, hi = c.Min, c.Max
	}
	return lo + rng.Float64()*(hi-lo)
}

// Randomize redraws unlocked scalars from the prior. At position zero every
// unlocked scalar is redrawn, weights included. At a later position the
// weight blocks are only re-saturated against their clip bounds and just the
// unlocked bias entries are redrawn, keeping the prior trajectory plausible.
// Locked scalars are never touched.
func (p *ParamSet) Randomize(rng *rand.Rand, positionIsZero bool) {
	redrawBlock := func(vals []float64, locks []bool, clips []Clip) {
		for i := range vals {
			if locks[i] {
				continue
			}
			vals[i] = clips[i].apply(redraw(rng, clips[i]))
		}
	}
	clipBlock := func(vals []float64, locks []bool, clips []Clip) {
		for i := range vals {
			if locks[i] {
				continue
			}
			vals[i] = clips[i].apply(vals[i])
		}
	}
	if positionIsZero {
		redrawBlock(p.W1, p.lockW1, p.clipW1)
		redrawBlock(p.W2, p.lockW2, p.clipW2)
	} else {
		clipBlock(p.W1, p.lockW1, p.clipW1)
		clipBlock(p.W2, p.lockW2, p.clipW2)
	}
	redrawBlock(p.B1, p.lockB1, p.clipB1)
	redrawBlock(p.B2, p.lockB2, p.clipB2)
}

// RandomizeAll redraws every scalar, locked or not. Used for the explicit
// "randomize all" scope, which is a user action and therefore overrides locks.
func (p *ParamSet) RandomizeAll(rng *rand.Rand) {
	p.forEachBlock(func(vals []float64, _ []bool, clips []Clip) {
		for i := range vals {
			vals[i] = clips[i].apply(redraw(rng, clips[i]))
		}
	})
}

// clipAll re-saturates every stored scalar into its bound.
func (p *ParamSet) clipAll() {
	p.forEachBlock(func(vals []float64, _ []bool, clips []Clip) {
		for i := range vals {
			vals[i] = clips[i].apply(vals[i])
		}
	})
}

// pinLockedFrom restores locked scalars to their values in prev. Applied
// after every gradient step so a locked scalar pins its turning-point value
// across training updates.
func (p *ParamSet) pinLockedFrom(prev *ParamSet) {
	restore := func(dst, src []float64, locks []bool) {
		for i := range dst {
			if locks[i] {
				dst[i] = src[i]
			}
		}
	}
	restore(p.W1, prev.W1, p.lockW1)
	restore(p.B1, prev.B1, p.lockB1)
	restore(p.W2, prev.W2, p.lockW2)
	restore(p.B2, prev.B2, p.lockB2)
}

// adoptValues copies the scalar values of src into p, keeping p's lock flags
// and clip bounds and re-saturating against them. Seeking adopts a record's
// values this way so locks and bounds set later survive the seek.
func (p *ParamSet) adoptValues(src *ParamSet) {
	copy(p.W1, src.W1)
	copy(p.B1, src.B1)
	copy(p.W2, src.W2)
	copy(p.B2, src.B2)
	p.clipAll()
}

// Resize changes the hidden width. Surviving scalars keep their values, lock
// flags and clip bounds; removed scalars are discarded and new scalars start
// zeroed, unlocked and unbounded.
func (p *ParamSet) Resize(hidden int) error {
	if hidden < 1 {
		return fmt.Errorf("resize: hidden units %d, want >= 1", hidden)
	}
	if hidden == p.Hidden {
		return nil
	}
	old := p.Clone()
	p.Hidden = hidden
	p.alloc()
	keep := old.Hidden
	if hidden < keep {
		keep = hidden
	}
	for j := 0; j < keep; j++ {
		for i := 0; i < 2; i++ {
			p.W1[i*hidden+j] = old.W1[i*old.Hidden+j]
			p.lockW1[i*hidden+j] = old.lockW1[i*old.Hidden+j]
			p.clipW1[i*hidden+j] = old.clipW1[i*old.Hidden+j]
		}
		p.B1[j], p.lockB1[j], p.clipB1[j] = old.B1[j], old.lockB1[j], old.clipB1[j]
		p.W2[j], p.lockW2[j], p.clipW2[j] = old.W2[j], old.lockW2[j], old.clipW2[j]
	}
	p.B2[0], p.lockB2[0], p.clipB2[0] = old.B2[0], old.lockB2[0], old.clipB2[0]
	return nil
}

// Clone returns a deep copy.
func (p *ParamSet) Clone() *ParamSet {
	out := &ParamSet{Hidden: p.Hidden}
	out.W1 = append([]float64(nil), p.W1...)
	out.B1 = append([]float64(nil), p.B1...)
	out.W2 = append([]float64(nil), p.W2...)
	out.B2 = append([]float64(nil), p.B2...)
	out.lockW1 = append([]bool(nil), p.lockW1...)
	out.lockB1 = append([]bool(nil), p.lockB1...)
	out.lockW2 = append([]bool(nil), p.lockW2...)
	out.lockB2 = append([]bool(nil), p.lockB2...)
	out.clipW1 = append([]Clip(nil), p.clipW1...)
	out.clipB1 = append([]Clip(nil), p.clipB1...)
	out.clipW2 = append([]Clip(nil), p.clipW2...)
	out.clipB2 = append([]Clip(nil), p.clipB2...)
	return out
}

// Equal reports whether the stored values of two parameter sets are
// bit-identical. Lock flags and clip bounds are not compared.
func (p *ParamSet) Equal(other *ParamSet) bool {
	if p.Hidden != other.Hidden {
		return false
	}
	eq := func(a, b []float64) bool {
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	return eq(p.W1, other.W1) && eq(p.B1, other.B1) && eq(p.W2, other.W2) && eq(p.B2, other.B2)
}
