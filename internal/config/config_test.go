package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/other.db
index:
  vector_dim: 64
gate:
  conflict_limit: 3
vault:
  oscillation_window: 9
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Fatalf("db_path not applied: %q", cfg.DBPath)
	}
	if cfg.Index.VectorDim != 64 {
		t.Fatalf("vector_dim not applied: %d", cfg.Index.VectorDim)
	}
	if cfg.Gate.ConflictLimit != 3 {
		t.Fatalf("conflict_limit not applied: %d", cfg.Gate.ConflictLimit)
	}
	if cfg.Vault.OscillationWindow != 9 {
		t.Fatalf("oscillation_window not applied: %d", cfg.Vault.OscillationWindow)
	}
	// Untouched keys keep their defaults.
	if cfg.Gate.ProceedAt != 0.75 {
		t.Fatalf("expected default proceed_at, got %f", cfg.Gate.ProceedAt)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "gate: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsCrossedThresholds(t *testing.T) {
	cfg := Default()
	cfg.Gate.ClarifyBelow = 0.9
	cfg.Gate.ProceedAt = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected threshold validation error")
	}
}

func TestValidateRejectsMissingDefaultProfile(t *testing.T) {
	path := writeConfig(t, `
profiles:
  medical:
    kantian_duty: 1.0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing default profile error")
	}
}

func TestEngineConfigRoundTrip(t *testing.T) {
	cfg := Default()
	ecfg := cfg.EngineConfig()
	if ecfg.LSH.Dim != cfg.Index.VectorDim {
		t.Fatalf("dim mismatch: %d != %d", ecfg.LSH.Dim, cfg.Index.VectorDim)
	}
	if ecfg.Gate.SimilarityFloor != cfg.Gate.SimilarityFloor {
		t.Fatal("gate config not carried over")
	}
	if ecfg.Vault.ResonanceDecay != cfg.Vault.ResonanceDecay {
		t.Fatal("vault config not carried over")
	}
	if ecfg.Trace.ConflictGap != cfg.Gate.ConflictGap {
		t.Fatal("conflict gap not carried over")
	}
	if len(ecfg.Profiles) != len(cfg.Profiles) {
		t.Fatal("profile table not carried over")
	}
}

func TestEngineConfigCarriesCustomProfiles(t *testing.T) {
	path := writeConfig(t, `
profiles:
  default:
    kantian_duty: 1.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ecfg := cfg.EngineConfig()
	w, ok := ecfg.Profiles["default"]
	if !ok {
		t.Fatal("custom default profile missing from pipeline config")
	}
	if w.KantianDuty != 1.0 || w.HumeanUtility != 0 {
		t.Fatalf("unexpected weights %+v", w)
	}
	if len(ecfg.Profiles) != 1 {
		t.Fatalf("expected the file table to replace the defaults, got %d profiles", len(ecfg.Profiles))
	}
}
