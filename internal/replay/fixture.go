package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kaygee-ai/resonance-engine/internal/blend"
	"github.com/kaygee-ai/resonance-engine/internal/engine"
	"github.com/kaygee-ai/resonance-engine/internal/gate"
	"github.com/kaygee-ai/resonance-engine/internal/lsh"
	"github.com/kaygee-ai/resonance-engine/internal/trace"
	"github.com/kaygee-ai/resonance-engine/internal/vault"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// episode sequence plus the gate actions observed when it was captured.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Episodes        []FixtureEpisode        `json:"episodes"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureEpisode mirrors engine.Input with JSON tags.
type FixtureEpisode struct {
	TurnID        string             `json:"turn_id"`
	Context       string             `json:"context"`
	ContextTags   []string           `json:"context_tags,omitempty"`
	Scores        map[string]float64 `json:"scores"`
	Principle     string             `json:"principle"`
	Vector        []float32          `json:"vector"`
	InventedTerms []string           `json:"invented_terms,omitempty"`
	Depth         int                `json:"depth"`
}

// FixtureExpectedResult captures the expected gate action per turn.
type FixtureExpectedResult struct {
	TurnID string `json:"turn_id"`
	Action string `json:"action"`
}

// FixtureConfig bundles the pipeline tuning for a replay run. Zero values fall
// back to the engine defaults so fixtures only spell out what they change.
type FixtureConfig struct {
	VectorDim     int                `json:"vector_dim"`
	Tables        int                `json:"tables"`
	Bits          int                `json:"bits"`
	Seed          int64              `json:"seed"`
	NeighborK     int                `json:"neighbor_k"`
	MaxRecursions int                `json:"max_recursions"`
	Gate          *FixtureGateConfig `json:"gate,omitempty"`
}

// FixtureGateConfig mirrors gate.Config with JSON tags.
type FixtureGateConfig struct {
	SimilarityFloor float64 `json:"similarity_floor"`
	ConflictLimit   int     `json:"conflict_limit"`
	MaxDepth        int     `json:"max_depth"`
	PenaltyStep     float64 `json:"penalty_step"`
	ConfidenceFloor float64 `json:"confidence_floor"`
	ClarifyBelow    float64 `json:"clarify_below"`
	ProceedAt       float64 `json:"proceed_at"`
}

// #endregion fixture-types

// #region conversion

// ToInput converts a fixture episode to a pipeline input.
func (e FixtureEpisode) ToInput() engine.Input {
	return engine.Input{
		Context:       e.Context,
		ContextTags:   e.ContextTags,
		Scores:        blend.Scores(e.Scores),
		Principle:     e.Principle,
		Vector:        e.Vector,
		InventedTerms: e.InventedTerms,
		Depth:         e.Depth,
	}
}

// ToEngineConfig expands the fixture config into a full pipeline config,
// filling unset fields from the defaults.
func (c FixtureConfig) ToEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Vault = vault.DefaultConfig()
	cfg.Trace = trace.DefaultProducerConfig()

	if c.VectorDim > 0 {
		cfg.LSH = lsh.Config{Dim: c.VectorDim, Tables: c.Tables, Bits: c.Bits, Seed: c.Seed}
		if cfg.LSH.Tables == 0 {
			cfg.LSH.Tables = lsh.DefaultConfig().Tables
		}
		if cfg.LSH.Bits == 0 {
			cfg.LSH.Bits = lsh.DefaultConfig().Bits
		}
		if cfg.LSH.Seed == 0 {
			cfg.LSH.Seed = lsh.DefaultConfig().Seed
		}
	}
	if c.NeighborK > 0 {
		cfg.NeighborK = c.NeighborK
	}
	if c.MaxRecursions > 0 {
		cfg.MaxRecursions = c.MaxRecursions
	}
	if c.Gate != nil {
		cfg.Gate = gate.Config{
			SimilarityFloor: c.Gate.SimilarityFloor,
			ConflictLimit:   c.Gate.ConflictLimit,
			MaxDepth:        c.Gate.MaxDepth,
			PenaltyStep:     c.Gate.PenaltyStep,
			ConfidenceFloor: c.Gate.ConfidenceFloor,
			ClarifyBelow:    c.Gate.ClarifyBelow,
			ProceedAt:       c.Gate.ProceedAt,
		}
	}
	return cfg
}

// #endregion conversion

// #region load

// LoadFixture reads and parses a fixture JSON file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Episodes) == 0 {
		return nil, fmt.Errorf("fixture %s has no episodes", path)
	}
	return &f, nil
}

// #endregion load
