package gate

import (
	"go.uber.org/zap"

	"github.com/kaygee-ai/resonance-engine/internal/trace"
)

// #region gate

// Gate is the meta-reasoner: it counts penalties over a reasoning trace and
// maps the resulting confidence onto a discrete action. Pure apart from the
// non-blocking decision log.
type Gate struct {
	config     Config
	classifier NoveltyClassifier
	log        *zap.Logger
}

// NewGate creates a gate. classifier may be nil, which disables the
// invented-term penalty entirely.
func NewGate(config Config, classifier NoveltyClassifier, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{config: config, classifier: classifier, log: logger}
}

// #endregion gate

// #region assess

// Assess evaluates a trace and returns the gated action. Missing trace fields
// read as neutral: an absent similarity counts as fully similar, never raises.
func (g *Gate) Assess(tr trace.Trace) Assessment {
	penalties := 0

	// 1. Similarity to nearest known candidate below the floor.
	if tr.HasSimilarity && tr.Similarity < g.config.SimilarityFloor {
		penalties++
	}

	// 2. Cross-framework conflicts at or above the limit.
	if len(tr.Conflicts) >= g.config.ConflictLimit {
		penalties++
	}

	// 3. At least one risky invented term. One penalty regardless of count.
	if g.classifier != nil {
		for _, term := range tr.InventedTerms {
			if g.classifier.Risky(term) {
				penalties++
				break
			}
		}
	}

	// 4. Recursion depth exceeded.
	if tr.Depth > g.config.MaxDepth {
		penalties++
	}

	confidence := 1.0 - g.config.PenaltyStep*float64(penalties)
	if confidence < g.config.ConfidenceFloor {
		confidence = g.config.ConfidenceFloor
	}

	a := Assessment{Confidence: confidence, Penalties: penalties}
	switch {
	case confidence < g.config.ClarifyBelow:
		a.Action = Clarify
		a.Question = craftQuestion(tr, g.config)
	case confidence < g.config.ProceedAt:
		a.Action = Recurse
	default:
		a.Action = Proceed
	}

	g.log.Info("gate assessment",
		zap.String("episode", tr.EpisodeID),
		zap.String("action", string(a.Action)),
		zap.Float64("confidence", confidence),
		zap.Int("penalties", penalties),
	)
	return a
}

// craftQuestion picks the clarification question by priority:
// framework conflict > low similarity > generic.
func craftQuestion(tr trace.Trace, cfg Config) string {
	if len(tr.Conflicts) > 0 {
		return "Are you prioritizing emotional comfort or strict honesty in this conversation?"
	}
	if tr.HasSimilarity && tr.Similarity < cfg.SimilarityFloor {
		return "This situation seems unusual. Can you provide more context?"
	}
	return "I want to make sure I understand correctly. Can you clarify what's most important to you here?"
}

// #endregion assess
