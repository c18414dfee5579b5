package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// #region errors

var (
	// ErrInvalidResonance is returned for resonance values outside [0,1].
	ErrInvalidResonance = errors.New("resonance value outside [0,1]")
	// ErrUnknownCandidate is returned for operations on nonexistent identifiers.
	ErrUnknownCandidate = errors.New("unknown candidate")
	// ErrIllegalTransition is returned for state changes the lifecycle forbids.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrVerificationUnavailable is returned when the safety collaborator is
	// unreachable. Absence of a safety signal never reads as safety.
	ErrVerificationUnavailable = errors.New("safety verification unavailable")
)

// #endregion errors

// #region state

// State is a candidate's lifecycle stage. PROMOTED and REJECTED are terminal;
// the only legal path is QUARANTINED -> UNDER_REVIEW -> {PROMOTED, REJECTED}.
type State string

const (
	Quarantined State = "QUARANTINED"
	UnderReview State = "UNDER_REVIEW"
	Promoted    State = "PROMOTED"
	Rejected    State = "REJECTED"
)

// Terminal reports whether no transition leaves this state.
func (s State) Terminal() bool {
	return s == Promoted || s == Rejected
}

// #endregion state

// #region candidate

// Sample is one per-domain resonance observation.
type Sample struct {
	Domain string
	Value  float64
	At     time.Time
}

// Candidate is one proposed behavioral principle and its resonance record.
type Candidate struct {
	ID          string
	Principle   string
	Vector      []float32
	State       State
	History     []Sample
	QueryVolume int
	Resonance   float64 // exponential moving average of samples
	ReviewNotes string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HashID derives the stable candidate identifier from principle content.
func HashID(principle string) string {
	sum := sha256.Sum256([]byte(principle))
	return hex.EncodeToString(sum[:16])
}

// #endregion candidate

// #region config

// Config holds the lifecycle thresholds. The constants below mirror the
// original policy but are illustrative, not validated tuning; keep them
// adjustable.
type Config struct {
	ReviewMeanThreshold    float64 // QUARANTINED -> UNDER_REVIEW on mean resonance
	MinDomainDiversity     int     // distinct domains required alongside the mean
	QueryVolumeThreshold   int     // QUARANTINED -> UNDER_REVIEW on volume alone
	PromotionMeanThreshold float64 // UNDER_REVIEW -> PROMOTED mean requirement
	StabilityThreshold     float64 // UNDER_REVIEW -> PROMOTED stability requirement
	RejectionMeanThreshold float64 // UNDER_REVIEW -> REJECTED below this mean
	OscillationWindow      int     // consecutive unstable observations before flagging
	ResonanceDecay         float64 // EMA retention factor
}

// DefaultConfig returns the standard lifecycle policy: rejection is easy,
// promotion requires sustained, diverse, stable evidence.
func DefaultConfig() Config {
	return Config{
		ReviewMeanThreshold:    0.75,
		MinDomainDiversity:     3,
		QueryVolumeThreshold:   10,
		PromotionMeanThreshold: 0.8,
		StabilityThreshold:     0.7,
		RejectionMeanThreshold: 0.4,
		OscillationWindow:      5,
		ResonanceDecay:         0.9,
	}
}

// #endregion config

// #region collaborators

// Recorder receives the vault's append-only output: resonance records and
// lifecycle events. Implementations own persistence; the vault never retries.
type Recorder interface {
	AppendResonance(candidateID, domain string, value float64, at time.Time) error
	RecordTransition(candidateID string, from, to State, reason string, at time.Time) error
}

// Verifier is the external safety-verification collaborator consulted before
// any promotion. counterexample is optional and only meaningful when !safe.
type Verifier interface {
	VerifyRule(rule string) (safe bool, counterexample string, err error)
}

// #endregion collaborators

// #region summary

// Summary is the dashboard aggregate. Total always equals the sum of the four
// state counts.
type Summary struct {
	Total          int `json:"total_candidates"`
	Quarantined    int `json:"quarantined"`
	UnderReview    int `json:"under_review"`
	Promoted       int `json:"promoted"`
	Rejected       int `json:"rejected"`
	RequiresReview int `json:"requires_review"`
}

// #endregion summary
