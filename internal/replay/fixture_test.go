package replay

import (
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestFixture_GateSession loads the recorded session, replays it through a
// fresh pipeline, and compares every turn's action against what was captured.
// This is the primary regression test for gate and lifecycle tuning drift.
func TestFixture_GateSession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "gate_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, err := Replay(f)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != len(f.ExpectedResults) {
		t.Fatalf("expected %d results, got %d", len(f.ExpectedResults), len(results))
	}

	for i, expected := range f.ExpectedResults {
		got := results[i]
		if got.Err != "" {
			t.Errorf("turn %s: replay error: %s", expected.TurnID, got.Err)
			continue
		}
		if got.Action != expected.Action {
			t.Errorf("turn %s: expected %s, got %s (confidence %.2f, penalties %d)",
				expected.TurnID, expected.Action, got.Action, got.Confidence, got.Penalties)
		}
	}

	summary := Compare(results, f.ExpectedResults)
	if summary.Diverged != 0 {
		t.Errorf("expected full match, got %+v", summary)
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "nope.json")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestLoadFixtureRejectsEmptyEpisodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(path, []byte(`{"description":"empty"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected error for fixture without episodes")
	}
}

func TestFixtureConfigDefaults(t *testing.T) {
	cfg := FixtureConfig{}.ToEngineConfig()
	if cfg.LSH.Dim != 128 {
		t.Fatalf("expected default vector dim, got %d", cfg.LSH.Dim)
	}
	if cfg.NeighborK != 10 || cfg.MaxRecursions != 4 {
		t.Fatalf("expected engine defaults, got %+v", cfg)
	}

	cfg = FixtureConfig{VectorDim: 3, Seed: 7}.ToEngineConfig()
	if cfg.LSH.Dim != 3 || cfg.LSH.Seed != 7 {
		t.Fatalf("unexpected LSH config %+v", cfg.LSH)
	}
	if cfg.LSH.Tables == 0 || cfg.LSH.Bits == 0 {
		t.Fatal("unset table and bit counts should fall back to defaults")
	}
}

// #endregion fixture-tests
