package engine

// StepRecord is one step of the training trajectory. Owned by the Ledger and
// read-only once appended. Position 0 is the baseline: no sample, Before and
// After both hold the initial parameters.
type StepRecord struct {
	Position int
	Sample   Sample
	Hits     [NumCategories]int

	Before *ParamSet // parameters before the update
	After  *ParamSet // parameters after update, clip and lock pinning

	Loss    float64 // drawn-sample loss with After
	AvgLoss float64 // mean loss over all four inputs with After
}

// clone deep-copies the record.
func (r *StepRecord) clone() *StepRecord {
	out := *r
	out.Before = r.Before.Clone()
	out.After = r.After.Clone()
	return &out
}

// Ledger is the append-only, replay-capable log of step records, indexed by
// position. The Ledger stores; the controller advances.
type Ledger struct {
	records []*StepRecord
}

// NewLedger starts a ledger at the given baseline record, which must carry
// position 0.
func NewLedger(baseline *StepRecord) *Ledger {
	baseline.Position = 0
	return &Ledger{records: []*StepRecord{baseline}}
}

// Len returns the number of stored positions (last position + 1).
func (l *Ledger) Len() int { return len(l.records) }

// LastPosition returns the highest materialized position.
func (l *Ledger) LastPosition() int { return len(l.records) - 1 }

// Append adds the record at the immediate next position. Any other position
// fails with OutOfOrderError.
func (l *Ledger) Append(r *StepRecord) error {
	if r.Position != len(l.records) {
		return &OutOfOrderError{Got: r.Position, Want: len(l.records)}
	}
	l.records = append(l.records, r)
	return nil
}

// At returns the record at position p, or PositionNotReachedError when p is
// beyond the materialized history. Extension is the controller's job.
func (l *Ledger) At(p int) (*StepRecord, error) {
	if p < 0 || p >= len(l.records) {
		return nil, &PositionNotReachedError{Position: p, Len: len(l.records)}
	}
	return l.records[p], nil
}

// TruncateAfter discards every record with position > p. Called whenever an
// accepted edit at p invalidates the forward trajectory.
func (l *Ledger) TruncateAfter(p int) {
	if p < 0 {
		p = 0
	}
	if p+1 < len(l.records) {
		l.records = l.records[:p+1]
	}
}

// RebaseTo drops all records before p and renumbers the survivors so p
// becomes position 0. The new baseline keeps p's parameters but loses its
// sample; hit counts of the survivors are rebased by subtracting p's counts,
// so per-step increments stay intact.
func (l *Ledger) RebaseTo(p int) error {
	if p <= 0 {
		return nil
	}
	if p >= len(l.records) {
		return &PositionNotReachedError{Position: p, Len: len(l.records)}
	}
	base := l.records[p]
	baseHits := base.Hits

	records := make([]*StepRecord, 0, len(l.records)-p)
	newBase := base.clone()
	newBase.Position = 0
	newBase.Sample = Sample{Category: CatNone}
	newBase.Hits = [NumCategories]int{}
	newBase.Before = newBase.After.Clone()
	records = append(records, newBase)

	for i := p + 1; i < len(l.records); i++ {
		r := l.records[i].clone()
		r.Position = i - p
		for c := range r.Hits {
			r.Hits[c] -= baseHits[c]
		}
		records = append(records, r)
	}
	l.records = records
	return nil
}

// clone deep-copies the ledger.
func (l *Ledger) clone() *Ledger {
	records := make([]*StepRecord, len(l.records))
	for i, r := range l.records {
		records[i] = r.clone()
	}
	return &Ledger{records: records}
}
