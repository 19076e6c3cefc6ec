package engine

import (
	"errors"
	"testing"
)

func TestSampleAtDeterministic(t *testing.T) {
	for pos := 0; pos < 50; pos++ {
		a, err := SampleAt(42, UniformDistribution, pos)
		if err != nil {
			t.Fatalf("SampleAt(%d): %v", pos, err)
		}
		b, err := SampleAt(42, UniformDistribution, pos)
		if err != nil {
			t.Fatalf("SampleAt(%d): %v", pos, err)
		}
		if a != b {
			t.Errorf("position %d: got %s then %s from the same seed", pos, a, b)
		}
	}
}

func TestStreamMatchesSampleAt(t *testing.T) {
	seq, err := NewSequencer(7, UniformDistribution)
	if err != nil {
		t.Fatal(err)
	}
	st := seq.Stream()
	for pos := 0; pos < 100; pos++ {
		got, _ := st.Next()
		want, err := SampleAt(7, UniformDistribution, pos)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("position %d: stream drew %s, SampleAt says %s", pos, got, want)
		}
	}
}

func TestSkipKeepsStreamAligned(t *testing.T) {
	seq, err := NewSequencer(99, UniformDistribution)
	if err != nil {
		t.Fatal(err)
	}
	full := seq.Stream()
	for i := 0; i < 25; i++ {
		full.Next()
	}

	skipped := seq.Stream()
	skipped.Skip(25)

	if full.Pos() != skipped.Pos() {
		t.Fatalf("positions diverged: %d vs %d", full.Pos(), skipped.Pos())
	}
	if full.Hits() != skipped.Hits() {
		t.Fatalf("hits diverged: %v vs %v", full.Hits(), skipped.Hits())
	}
	a, _ := full.Next()
	b, _ := skipped.Next()
	if a != b {
		t.Errorf("draw 25: %s vs %s after skip", a, b)
	}
}

func TestHitsInvariants(t *testing.T) {
	seq, err := NewSequencer(3, UniformDistribution)
	if err != nil {
		t.Fatal(err)
	}
	st := seq.Stream()
	var prev [NumCategories]int
	for pos := 0; pos < 200; pos++ {
		cat, hits := st.Next()

		sum := 0
		for _, h := range hits {
			sum += h
		}
		if sum != pos+1 {
			t.Fatalf("position %d: hits sum to %d, want %d", pos, sum, pos+1)
		}

		// exactly one category incremented, and it is the drawn one
		for c := 0; c < NumCategories; c++ {
			delta := hits[c] - prev[c]
			switch {
			case Category(c) == cat && delta != 1:
				t.Fatalf("position %d: drawn %s incremented by %d", pos, cat, delta)
			case Category(c) != cat && delta != 0:
				t.Fatalf("position %d: %s incremented without being drawn", pos, Category(c))
			}
		}
		prev = hits
	}
}

func TestHitsAtMatchesStream(t *testing.T) {
	want, err := HitsAt(11, UniformDistribution, 49)
	if err != nil {
		t.Fatal(err)
	}
	seq, _ := NewSequencer(11, UniformDistribution)
	st := seq.Stream()
	for i := 0; i < 50; i++ {
		st.Next()
	}
	if got := st.Hits(); got != want {
		t.Errorf("HitsAt = %v, stream = %v", want, got)
	}
}

func TestSkewedDistributionFrequency(t *testing.T) {
	dist := Distribution{0.7, 0.1, 0.1, 0.1}
	hits, err := HitsAt(1, dist, 9999)
	if err != nil {
		t.Fatal(err)
	}
	if hits[Cat00] < 6500 || hits[Cat00] > 7500 {
		t.Errorf("category %s drawn %d times out of 10000, want around 7000", Cat00, hits[Cat00])
	}
}

func TestDistributionEditKeepsConsumedDraws(t *testing.T) {
	seq, err := NewSequencer(5, UniformDistribution)
	if err != nil {
		t.Fatal(err)
	}
	st := seq.Stream()
	st.Skip(10)

	// A skewed distribution still consumes one variate per draw, so the
	// underlying stream position is unchanged by the edit.
	if err := seq.SetDistribution(Distribution{0.97, 0.01, 0.01, 0.01}); err != nil {
		t.Fatal(err)
	}
	heavy := 0
	for i := 0; i < 100; i++ {
		if c, _ := st.Next(); c == Cat00 {
			heavy++
		}
	}
	if heavy < 80 {
		t.Errorf("after edit, %s drawn %d/100 times under p=0.97", Cat00, heavy)
	}
	if st.Pos() != 109 {
		t.Errorf("stream position %d, want 109", st.Pos())
	}
}

func TestInvalidDistribution(t *testing.T) {
	cases := []Distribution{
		{0.5, 0.5, 0.5, 0.5},
		{-0.1, 0.4, 0.4, 0.3},
		{0, 0, 0, 0},
	}
	for _, d := range cases {
		if _, err := NewSequencer(1, d); !errors.Is(err, ErrInvalidDistribution) {
			t.Errorf("distribution %v: got %v, want ErrInvalidDistribution", d, err)
		}
	}
	if _, err := NewSequencer(1, UniformDistribution); err != nil {
		t.Errorf("uniform distribution rejected: %v", err)
	}
}

func TestWithProbabilityRenormalizes(t *testing.T) {
	d, err := UniformDistribution.WithProbability(Cat11, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	if d[Cat11] != 0.4 {
		t.Errorf("edited probability %v, want 0.4", d[Cat11])
	}
	if err := d.Validate(); err != nil {
		t.Errorf("renormalized distribution invalid: %v", err)
	}
	if d[Cat00] != d[Cat01] || d[Cat01] != d[Cat10] {
		t.Errorf("remaining mass not spread evenly: %v", d)
	}

	if _, err := UniformDistribution.WithProbability(Cat00, 1.5); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("probability 1.5 accepted: %v", err)
	}
}
