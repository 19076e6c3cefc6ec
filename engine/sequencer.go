package engine

import (
	"math/rand"
)

// Sequencer produces the deterministic sample sequence of one model. It owns
// a seed and a category distribution; every replay starts from a fresh
// rand.Source, so independent replays never share generator state.
type Sequencer struct {
	seed int64
	dist Distribution
}

// NewSequencer validates the distribution and returns a sequencer.
func NewSequencer(seed int64, dist Distribution) (*Sequencer, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{seed: seed, dist: dist}, nil
}

// Seed returns the generator seed.
func (s *Sequencer) Seed() int64 { return s.seed }

// Distribution returns the current category distribution.
func (s *Sequencer) Distribution() Distribution { return s.dist }

// SetDistribution replaces the distribution. The underlying uniform stream is
// unchanged, so draws already consumed stay consumed and the sequence remains
// deterministic from any position.
func (s *Sequencer) SetDistribution(dist Distribution) error {
	if err := dist.Validate(); err != nil {
		return err
	}
	s.dist = dist
	return nil
}

// Stream returns a fresh cursor over the sequence, positioned before draw 0.
type Stream struct {
	rng  *rand.Rand
	seq  *Sequencer
	pos  int
	hits [NumCategories]int
}

// Stream starts a new deterministic replay of the sequence.
func (s *Sequencer) Stream() *Stream {
	return &Stream{rng: rand.New(rand.NewSource(s.seed)), seq: s, pos: -1}
}

// Next draws the next category and returns it together with the cumulative
// per-category hit counts including this draw.
func (st *Stream) Next() (Category, [NumCategories]int) {
	c := pick(st.rng.Float64(), st.seq.dist)
	st.pos++
	st.hits[c]++
	return c, st.hits
}

// Skip consumes n draws without classifying them. One uniform variate is
// consumed per draw regardless of the distribution, so a skipped prefix keeps
// the remainder of the stream identical to a fully-consumed one.
func (st *Stream) Skip(n int) {
	for i := 0; i < n; i++ {
		c := pick(st.rng.Float64(), st.seq.dist)
		st.pos++
		st.hits[c]++
	}
}

// Pos returns the index of the last consumed draw, -1 before the first.
func (st *Stream) Pos() int { return st.pos }

// Hits returns the cumulative per-category counts up to the current draw.
func (st *Stream) Hits() [NumCategories]int { return st.hits }

// pick maps a uniform variate in [0,1) onto the distribution.
func pick(u float64, dist Distribution) Category {
	acc := 0.0
	for i := 0; i < NumCategories-1; i++ {
		acc += dist[i]
		if u < acc {
			return Category(i)
		}
	}
	return Category(NumCategories - 1)
}

// SampleAt returns the category drawn at the given position. Pure: the same
// (seed, dist, position) always yields the same category, independent of any
// other stream or prior consumption.
func SampleAt(seed int64, dist Distribution, position int) (Category, error) {
	seq, err := NewSequencer(seed, dist)
	if err != nil {
		return CatNone, err
	}
	st := seq.Stream()
	st.Skip(position)
	c, _ := st.Next()
	return c, nil
}

// HitsAt returns the cumulative per-category counts over draws 0..position.
// The counts always sum to position+1 and exactly one category increments per
// draw.
func HitsAt(seed int64, dist Distribution, position int) ([NumCategories]int, error) {
	seq, err := NewSequencer(seed, dist)
	if err != nil {
		return [NumCategories]int{}, err
	}
	st := seq.Stream()
	st.Skip(position + 1)
	return st.Hits(), nil
}
