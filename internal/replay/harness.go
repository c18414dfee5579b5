package replay

import (
	"fmt"

	"github.com/kaygee-ai/resonance-engine/internal/engine"
)

// #region harness-types

// Result is one replayed turn's outcome.
type Result struct {
	TurnID     string
	Action     string
	Confidence float64
	Penalties  int
	Err        string // non-empty when the turn failed instead of deciding
}

// Summary aggregates a comparison against the expected actions.
type Summary struct {
	Total    int
	Matches  int
	Diverged int
}

// #endregion harness-types

// #region verifier

// replayVerifier approves every rule so promotion decisions replay
// deterministically without the external safety service.
type replayVerifier struct{}

func (replayVerifier) VerifyRule(string) (bool, string, error) {
	return true, "", nil
}

// #endregion verifier

// #region replay

// Replay re-runs a fixture's episodes through a fresh in-memory pipeline in
// order and returns per-turn results. Turn failures are recorded, not fatal:
// later turns still replay so a single divergence shows its blast radius.
func Replay(f *Fixture) ([]Result, error) {
	eng, err := engine.New(f.Config.ToEngineConfig(), nil, replayVerifier{}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	results := make([]Result, len(f.Episodes))
	for i, ep := range f.Episodes {
		out, err := eng.RunEpisode(ep.ToInput())
		results[i] = Result{
			TurnID:     ep.TurnID,
			Action:     string(out.Action),
			Confidence: out.Confidence,
			Penalties:  out.Penalties,
		}
		if err != nil {
			results[i].Err = err.Error()
		}
	}
	return results, nil
}

// Compare matches replayed actions against the fixture's expected results by
// position and returns the aggregate.
func Compare(results []Result, expected []FixtureExpectedResult) Summary {
	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}
	s := Summary{Total: total}
	for i := 0; i < total; i++ {
		if results[i].Err == "" && results[i].Action == expected[i].Action {
			s.Matches++
		} else {
			s.Diverged++
		}
	}
	return s
}

// #endregion replay
