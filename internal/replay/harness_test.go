package replay

import "testing"

// #region harness-tests

func sessionFixture() *Fixture {
	return &Fixture{
		Config: FixtureConfig{VectorDim: 3, Tables: 4, Bits: 6, Seed: 1},
		Episodes: []FixtureEpisode{
			{
				TurnID:    "t1",
				Context:   "medical",
				Scores:    map[string]float64{"kant": 0.9, "hume": 0.9, "locke": 0.9, "spinoza": 0.9},
				Principle: "verify consent before sharing records",
				Vector:    []float32{1, 0, 0},
			},
			{
				TurnID:        "t2",
				Context:       "social",
				Scores:        map[string]float64{"kant": 0.9, "hume": 0.2, "locke": 0.2},
				Principle:     "soften hard truths",
				Vector:        []float32{0, 1, 0},
				InventedTerms: []string{"qua_drift"},
				Depth:         4,
			},
		},
	}
}

func TestReplayProducesOneResultPerEpisode(t *testing.T) {
	f := sessionFixture()
	results, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Action != "PROCEED" {
		t.Fatalf("turn t1: expected PROCEED, got %s", results[0].Action)
	}
	if results[1].Action != "CLARIFY" {
		t.Fatalf("turn t2: expected CLARIFY, got %s", results[1].Action)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	f := sessionFixture()
	first, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	second, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for i := range first {
		if first[i].Action != second[i].Action || first[i].Confidence != second[i].Confidence {
			t.Fatalf("turn %s diverged between runs: %+v vs %+v", first[i].TurnID, first[i], second[i])
		}
	}
}

func TestCompareCountsDivergence(t *testing.T) {
	results := []Result{
		{TurnID: "t1", Action: "PROCEED"},
		{TurnID: "t2", Action: "CLARIFY"},
		{TurnID: "t3", Action: "PROCEED", Err: "boom"},
	}
	expected := []FixtureExpectedResult{
		{TurnID: "t1", Action: "PROCEED"},
		{TurnID: "t2", Action: "RECURSE"},
		{TurnID: "t3", Action: "PROCEED"},
	}
	s := Compare(results, expected)
	if s.Total != 3 || s.Matches != 1 || s.Diverged != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

// #endregion harness-tests
