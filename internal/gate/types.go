package gate

// #region action

// Action is the gate's discrete verdict for one decision episode.
type Action string

const (
	Proceed Action = "PROCEED"
	Recurse Action = "RECURSE"
	Clarify Action = "CLARIFY"
)

// Severity orders actions by risk: PROCEED < RECURSE < CLARIFY.
func (a Action) Severity() int {
	switch a {
	case Proceed:
		return 0
	case Recurse:
		return 1
	case Clarify:
		return 2
	}
	return 2
}

// #endregion action

// #region gate-config

// Config holds the penalty and confidence thresholds for gate decisions.
type Config struct {
	SimilarityFloor float64 // penalize similarity below this
	ConflictLimit   int     // penalize this many cross-framework conflicts or more
	MaxDepth        int     // penalize recursion deeper than this
	PenaltyStep     float64 // confidence lost per penalty
	ConfidenceFloor float64 // confidence never drops below this
	ClarifyBelow    float64 // confidence below this asks a question
	ProceedAt       float64 // confidence at or above this proceeds
}

// DefaultConfig returns the standard thresholds. The depth penalty is what
// terminates RECURSE loops: each re-run raises depth until confidence falls
// out of the recurse band.
func DefaultConfig() Config {
	return Config{
		SimilarityFloor: 0.65,
		ConflictLimit:   2,
		MaxDepth:        3,
		PenaltyStep:     0.2,
		ConfidenceFloor: 0.1,
		ClarifyBelow:    0.5,
		ProceedAt:       0.75,
	}
}

// #endregion gate-config

// #region assessment

// Assessment is the output of one gate evaluation.
type Assessment struct {
	Action     Action
	Confidence float64
	Penalties  int
	Question   string // non-empty only when Action is CLARIFY
}

// #endregion assessment
