package vault

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// #region record

// record pairs a candidate with its mutation lock and review bookkeeping.
// At most one mutation runs per candidate; reads copy under the same lock so
// no torn append is ever observed.
type record struct {
	mu             sync.Mutex
	c              Candidate
	unstableStreak int // consecutive samples with stability below threshold
}

// #endregion record

// #region vault

// Vault owns candidate lifecycle state, resonance history, and the
// promotion/quarantine rules. Blended scores arrive as resonance samples.
type Vault struct {
	mu       sync.RWMutex
	records  map[string]*record
	config   Config
	recorder Recorder
	verifier Verifier
	log      *zap.Logger
	now      func() time.Time
}

// New creates a vault. recorder may be nil (events are dropped); verifier may
// be nil, in which case every promotion is blocked as unverifiable.
func New(config Config, recorder Recorder, verifier Verifier, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		records:  make(map[string]*record),
		config:   config,
		recorder: recorder,
		verifier: verifier,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// #endregion vault

// #region admit

// Admit registers a never-seen candidate in QUARANTINED. Admitting an existing
// candidate is a no-op returning the stored record with admitted=false; the
// caller uses that to avoid re-indexing. The admission event is recorded before
// the candidate is registered, so a failed write leaves the vault unchanged and
// a retry admits cleanly.
func (v *Vault) Admit(principle string, vector []float32) (Candidate, bool, error) {
	id := HashID(principle)

	v.mu.RLock()
	existing, ok := v.records[id]
	v.mu.RUnlock()
	if ok {
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return cloneCandidate(existing.c), false, nil
	}

	now := v.now()
	if v.recorder != nil {
		if err := v.recorder.RecordTransition(id, "", Quarantined, "first observation", now); err != nil {
			return Candidate{}, false, fmt.Errorf("record admission: %w", err)
		}
	}

	v.mu.Lock()
	// A concurrent admission of the same principle may have won the race; the
	// duplicate lifecycle event is harmless in an append-only log.
	if rec, ok := v.records[id]; ok {
		v.mu.Unlock()
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return cloneCandidate(rec.c), false, nil
	}
	rec := &record{c: Candidate{
		ID:        id,
		Principle: principle,
		Vector:    append([]float32(nil), vector...),
		State:     Quarantined,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	v.records[id] = rec
	v.mu.Unlock()

	v.log.Info("candidate quarantined", zap.String("candidate", id))
	return cloneCandidate(rec.c), true, nil
}

// #endregion admit

// #region lookup

func (v *Vault) lookup(id string) (*record, error) {
	v.mu.RLock()
	rec, ok := v.records[id]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}
	return rec, nil
}

// Get returns a copy of the candidate.
func (v *Vault) Get(id string) (Candidate, error) {
	rec, err := v.lookup(id)
	if err != nil {
		return Candidate{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneCandidate(rec.c), nil
}

// #endregion lookup

// #region record-resonance

// RecordResonance appends a per-domain sample and re-evaluates transition
// eligibility. The persistence collaborator is written before the in-memory
// append so a failed write leaves the candidate unchanged; the caller owns
// retry policy.
func (v *Vault) RecordResonance(id, domain string, value float64) (Candidate, error) {
	if value < 0 || value > 1 {
		return Candidate{}, fmt.Errorf("%w: %.4f", ErrInvalidResonance, value)
	}
	rec, err := v.lookup(id)
	if err != nil {
		return Candidate{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.c.State.Terminal() {
		return cloneCandidate(rec.c), fmt.Errorf("%w: candidate %s is %s", ErrIllegalTransition, id, rec.c.State)
	}

	at := v.now()
	if v.recorder != nil {
		if err := v.recorder.AppendResonance(id, domain, value, at); err != nil {
			return cloneCandidate(rec.c), fmt.Errorf("append resonance: %w", err)
		}
	}

	rec.c.History = append(rec.c.History, Sample{Domain: domain, Value: value, At: at})
	if len(rec.c.History) == 1 {
		rec.c.Resonance = value
	} else {
		rec.c.Resonance = v.config.ResonanceDecay*rec.c.Resonance + (1-v.config.ResonanceDecay)*value
	}
	rec.c.UpdatedAt = at

	evalErr := v.evaluate(rec, true)
	return cloneCandidate(rec.c), evalErr
}

// #endregion record-resonance

// #region note-query

// NoteQuery bumps the candidate's query volume after a similarity match.
// Terminal candidates are left untouched; being matched is passive and must
// not mutate a closed record.
func (v *Vault) NoteQuery(id string) (Candidate, error) {
	rec, err := v.lookup(id)
	if err != nil {
		return Candidate{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.c.State.Terminal() {
		return cloneCandidate(rec.c), nil
	}
	rec.c.QueryVolume++
	rec.c.UpdatedAt = v.now()

	evalErr := v.evaluate(rec, false)
	return cloneCandidate(rec.c), evalErr
}

// #endregion note-query

// #region manual-review

// Promote moves an UNDER_REVIEW candidate to PROMOTED after a human review,
// still subject to safety verification. note is stored on the candidate.
func (v *Vault) Promote(id, note string) (Candidate, error) {
	rec, err := v.lookup(id)
	if err != nil {
		return Candidate{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.c.State != UnderReview {
		return cloneCandidate(rec.c), fmt.Errorf("%w: promote from %s", ErrIllegalTransition, rec.c.State)
	}
	rec.c.ReviewNotes = note
	if err := v.tryPromote(rec, "human review: "+note); err != nil {
		return cloneCandidate(rec.c), err
	}
	return cloneCandidate(rec.c), nil
}

// Reject moves an UNDER_REVIEW candidate to REJECTED with a reviewer note.
func (v *Vault) Reject(id, note string) (Candidate, error) {
	rec, err := v.lookup(id)
	if err != nil {
		return Candidate{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.c.State != UnderReview {
		return cloneCandidate(rec.c), fmt.Errorf("%w: reject from %s", ErrIllegalTransition, rec.c.State)
	}
	rec.c.ReviewNotes = note
	if err := v.transition(rec, Rejected, "human review: "+note); err != nil {
		return cloneCandidate(rec.c), err
	}
	return cloneCandidate(rec.c), nil
}

// #endregion manual-review

// #region aggregates

// MeanResonance returns the arithmetic mean over all samples across domains.
// hasData is false (and the mean zero) when no sample exists.
func (v *Vault) MeanResonance(id string) (mean float64, hasData bool, err error) {
	rec, err := v.lookup(id)
	if err != nil {
		return 0, false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	mean, hasData = meanOf(rec.c.History)
	return mean, hasData, nil
}

// DomainDiversity counts distinct domains with at least one sample.
func (v *Vault) DomainDiversity(id string) (int, error) {
	rec, err := v.lookup(id)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return domainDiversity(rec.c.History), nil
}

// Stability returns 1 minus the normalized standard deviation of the
// candidate's resonance samples.
func (v *Vault) Stability(id string) (float64, error) {
	rec, err := v.lookup(id)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return stability(rec.c.History), nil
}

// RequiresHumanReview returns UNDER_REVIEW candidates stuck oscillating:
// stability under threshold for more than the configured consecutive samples.
func (v *Vault) RequiresHumanReview() []Candidate {
	v.mu.RLock()
	recs := make([]*record, 0, len(v.records))
	for _, rec := range v.records {
		recs = append(recs, rec)
	}
	v.mu.RUnlock()

	var out []Candidate
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.c.State == UnderReview && rec.unstableStreak > v.config.OscillationWindow {
			out = append(out, cloneCandidate(rec.c))
		}
		rec.mu.Unlock()
	}
	return out
}

// DashboardSummary aggregates per-state counts plus the oscillation flag count.
func (v *Vault) DashboardSummary() Summary {
	v.mu.RLock()
	recs := make([]*record, 0, len(v.records))
	for _, rec := range v.records {
		recs = append(recs, rec)
	}
	v.mu.RUnlock()

	var s Summary
	for _, rec := range recs {
		rec.mu.Lock()
		switch rec.c.State {
		case Quarantined:
			s.Quarantined++
		case UnderReview:
			s.UnderReview++
			if rec.unstableStreak > v.config.OscillationWindow {
				s.RequiresReview++
			}
		case Promoted:
			s.Promoted++
		case Rejected:
			s.Rejected++
		}
		rec.mu.Unlock()
	}
	s.Total = s.Quarantined + s.UnderReview + s.Promoted + s.Rejected
	return s
}

// ByState returns copies of all candidates in the given state.
func (v *Vault) ByState(state State) []Candidate {
	v.mu.RLock()
	recs := make([]*record, 0, len(v.records))
	for _, rec := range v.records {
		recs = append(recs, rec)
	}
	v.mu.RUnlock()

	var out []Candidate
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.c.State == state {
			out = append(out, cloneCandidate(rec.c))
		}
		rec.mu.Unlock()
	}
	return out
}

// #endregion aggregates

// #region helpers

func cloneCandidate(c Candidate) Candidate {
	out := c
	out.Vector = append([]float32(nil), c.Vector...)
	out.History = append([]Sample(nil), c.History...)
	return out
}

// #endregion helpers
