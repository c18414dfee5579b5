package vault

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// #region transition-evaluation

// evaluate re-checks transition eligibility after a mutation. Called with the
// record lock held. observed marks a fresh resonance sample, which is what
// advances the oscillation streak.
//
// A candidate entering UNDER_REVIEW is never promoted in the same call:
// promotion checks only run on records that were already under review, so
// the mandatory review stage is always observable.
func (v *Vault) evaluate(rec *record, observed bool) error {
	switch rec.c.State {
	case Quarantined:
		mean, hasData := meanOf(rec.c.History)
		diversity := domainDiversity(rec.c.History)
		if hasData && mean >= v.config.ReviewMeanThreshold && diversity >= v.config.MinDomainDiversity {
			return v.transition(rec, UnderReview,
				fmt.Sprintf("mean resonance %.3f across %d domains", mean, diversity))
		}
		if rec.c.QueryVolume > v.config.QueryVolumeThreshold {
			return v.transition(rec, UnderReview,
				fmt.Sprintf("query volume %d exceeds threshold %d", rec.c.QueryVolume, v.config.QueryVolumeThreshold))
		}

	case UnderReview:
		stab := stability(rec.c.History)
		if observed {
			if stab < v.config.StabilityThreshold {
				rec.unstableStreak++
			} else {
				rec.unstableStreak = 0
			}
		}

		mean, hasData := meanOf(rec.c.History)
		if !hasData {
			return nil
		}
		if mean < v.config.RejectionMeanThreshold {
			return v.transition(rec, Rejected,
				fmt.Sprintf("mean resonance %.3f below rejection threshold %.2f", mean, v.config.RejectionMeanThreshold))
		}
		if mean >= v.config.PromotionMeanThreshold && stab >= v.config.StabilityThreshold {
			return v.tryPromote(rec,
				fmt.Sprintf("mean resonance %.3f, stability %.3f", mean, stab))
		}
	}
	return nil
}

// tryPromote consults the safety collaborator before committing a promotion.
// A missing or failing verifier blocks promotion; the candidate stays under
// review and the failure propagates to the caller.
func (v *Vault) tryPromote(rec *record, reason string) error {
	if v.verifier == nil {
		return fmt.Errorf("%w: no verifier configured", ErrVerificationUnavailable)
	}
	safe, counterexample, err := v.verifier.VerifyRule(rec.c.Principle)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if !safe {
		r := "safety verification failed"
		if counterexample != "" {
			r = fmt.Sprintf("safety verification failed: %s", counterexample)
		}
		return v.transition(rec, Rejected, r)
	}
	return v.transition(rec, Promoted, reason)
}

// transition applies a state change already validated by the caller, emits the
// lifecycle event, and logs it. Recorder failures propagate but do not undo
// the in-memory change.
func (v *Vault) transition(rec *record, to State, reason string) error {
	from := rec.c.State
	rec.c.State = to
	rec.c.UpdatedAt = v.now()

	v.log.Info("lifecycle transition",
		zap.String("candidate", rec.c.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)

	if v.recorder != nil {
		if err := v.recorder.RecordTransition(rec.c.ID, from, to, reason, rec.c.UpdatedAt); err != nil {
			return fmt.Errorf("record transition %s->%s: %w", from, to, err)
		}
	}
	return nil
}

// #endregion transition-evaluation

// #region statistics

// meanOf computes the arithmetic mean over all samples regardless of domain.
func meanOf(history []Sample) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range history {
		sum += s.Value
	}
	return sum / float64(len(history)), true
}

// domainDiversity counts distinct domains represented in the history.
func domainDiversity(history []Sample) int {
	domains := make(map[string]struct{}, len(history))
	for _, s := range history {
		domains[s.Domain] = struct{}{}
	}
	return len(domains)
}

// stability is 1 minus the normalized standard deviation of the sample values.
// Values live in [0,1], where the largest possible deviation is 0.5, so the
// deviation is normalized by 2. An empty or single-sample history is fully
// stable.
func stability(history []Sample) float64 {
	if len(history) < 2 {
		return 1.0
	}
	mean, _ := meanOf(history)
	var variance float64
	for _, s := range history {
		d := s.Value - mean
		variance += d * d
	}
	variance /= float64(len(history))
	norm := 2 * math.Sqrt(variance)
	if norm > 1 {
		norm = 1
	}
	return 1 - norm
}

// #endregion statistics
