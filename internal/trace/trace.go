package trace

import (
	"math"

	"github.com/kaygee-ai/resonance-engine/internal/blend"
)

// #region types

// Conflict records a disagreement between two frameworks whose raw scores
// diverge by at least the configured gap.
type Conflict struct {
	A   string
	B   string
	Gap float64
}

// Trace is the ephemeral record of one decision episode. It is created per
// decision, consumed by the confidence gate, and discarded after the verdict.
// Missing fields carry neutral meaning: HasSimilarity=false reads as fully
// similar, an empty conflict list as full agreement.
type Trace struct {
	EpisodeID     string
	Similarity    float64 // to nearest known candidate, valid when HasSimilarity
	HasSimilarity bool
	Conflicts     []Conflict
	InventedTerms []string
	Depth         int
	Scores        blend.Scores
}

// #endregion types

// #region producer

// ProducerConfig holds the heuristics for trace derivation.
type ProducerConfig struct {
	ConflictGap float64 // minimum pairwise score gap counted as a conflict
}

// DefaultProducerConfig returns the pipeline defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{ConflictGap: 0.4}
}

// Producer derives reasoning traces from episode inputs. Pure; no shared state.
type Producer struct {
	config ProducerConfig
}

// NewProducer creates a Producer.
func NewProducer(config ProducerConfig) *Producer {
	return &Producer{config: config}
}

// ProduceInput bundles the raw material for one trace.
type ProduceInput struct {
	EpisodeID     string
	Scores        blend.Scores
	Similarity    float64
	HasSimilarity bool
	InventedTerms []string
	Depth         int
}

// Produce assembles a trace, deriving cross-framework conflicts from the
// pairwise score gaps. Only frameworks actually present in the score set are
// compared; absent scores never manufacture conflicts.
func (p *Producer) Produce(input ProduceInput) Trace {
	return Trace{
		EpisodeID:     input.EpisodeID,
		Similarity:    input.Similarity,
		HasSimilarity: input.HasSimilarity,
		Conflicts:     p.detectConflicts(input.Scores),
		InventedTerms: input.InventedTerms,
		Depth:         input.Depth,
		Scores:        input.Scores,
	}
}

// scoreKeys fixes the comparison order so conflict lists are deterministic.
var scoreKeys = [4]string{"kant", "hume", "locke", "spinoza"}

func (p *Producer) detectConflicts(scores blend.Scores) []Conflict {
	if scores == nil {
		return nil
	}
	var conflicts []Conflict
	for i := 0; i < len(scoreKeys); i++ {
		a, ok := scores[scoreKeys[i]]
		if !ok {
			continue
		}
		for j := i + 1; j < len(scoreKeys); j++ {
			b, ok := scores[scoreKeys[j]]
			if !ok {
				continue
			}
			gap := math.Abs(a - b)
			if gap >= p.config.ConflictGap {
				conflicts = append(conflicts, Conflict{A: scoreKeys[i], B: scoreKeys[j], Gap: gap})
			}
		}
	}
	return conflicts
}

// #endregion producer
