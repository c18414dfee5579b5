package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kaygee-ai/resonance-engine/internal/blend"
	"github.com/kaygee-ai/resonance-engine/internal/engine"
	"github.com/kaygee-ai/resonance-engine/internal/gate"
	"github.com/kaygee-ai/resonance-engine/internal/lsh"
	"github.com/kaygee-ai/resonance-engine/internal/trace"
	"github.com/kaygee-ai/resonance-engine/internal/vault"
)

// #region types

// Config is the YAML-backed runtime configuration for the engine binaries.
type Config struct {
	DBPath   string                   `yaml:"db_path"`
	LogLevel string                   `yaml:"log_level"`
	Index    IndexConfig              `yaml:"index"`
	Gate     GateConfig               `yaml:"gate"`
	Vault    VaultConfig              `yaml:"vault"`
	Pipeline PipelineConfig           `yaml:"pipeline"`
	Profiles map[string]blend.Weights `yaml:"profiles"`
}

// IndexConfig tunes the similarity index.
type IndexConfig struct {
	VectorDim int   `yaml:"vector_dim"`
	Tables    int   `yaml:"tables"`
	Bits      int   `yaml:"bits"`
	Seed      int64 `yaml:"seed"`
}

// GateConfig tunes the confidence gate.
type GateConfig struct {
	SimilarityFloor float64 `yaml:"similarity_floor"`
	ConflictLimit   int     `yaml:"conflict_limit"`
	MaxDepth        int     `yaml:"max_depth"`
	PenaltyStep     float64 `yaml:"penalty_step"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	ClarifyBelow    float64 `yaml:"clarify_below"`
	ProceedAt       float64 `yaml:"proceed_at"`
	ConflictGap     float64 `yaml:"conflict_gap"`
}

// VaultConfig tunes the candidate lifecycle thresholds.
type VaultConfig struct {
	ReviewMeanThreshold    float64 `yaml:"review_mean_threshold"`
	MinDomainDiversity     int     `yaml:"min_domain_diversity"`
	QueryVolumeThreshold   int     `yaml:"query_volume_threshold"`
	PromotionMeanThreshold float64 `yaml:"promotion_mean_threshold"`
	StabilityThreshold     float64 `yaml:"stability_threshold"`
	RejectionMeanThreshold float64 `yaml:"rejection_mean_threshold"`
	OscillationWindow      int     `yaml:"oscillation_window"`
	ResonanceDecay         float64 `yaml:"resonance_decay"`
}

// PipelineConfig tunes episode orchestration.
type PipelineConfig struct {
	NeighborK     int `yaml:"neighbor_k"`
	MaxRecursions int `yaml:"max_recursions"`
}

// #endregion types

// #region defaults

// Default returns the configuration used when no file is supplied.
func Default() Config {
	ecfg := engine.DefaultConfig()
	tcfg := trace.DefaultProducerConfig()
	return Config{
		DBPath:   "resonance.db",
		LogLevel: "info",
		Index: IndexConfig{
			VectorDim: ecfg.LSH.Dim,
			Tables:    ecfg.LSH.Tables,
			Bits:      ecfg.LSH.Bits,
			Seed:      ecfg.LSH.Seed,
		},
		Gate: GateConfig{
			SimilarityFloor: ecfg.Gate.SimilarityFloor,
			ConflictLimit:   ecfg.Gate.ConflictLimit,
			MaxDepth:        ecfg.Gate.MaxDepth,
			PenaltyStep:     ecfg.Gate.PenaltyStep,
			ConfidenceFloor: ecfg.Gate.ConfidenceFloor,
			ClarifyBelow:    ecfg.Gate.ClarifyBelow,
			ProceedAt:       ecfg.Gate.ProceedAt,
			ConflictGap:     tcfg.ConflictGap,
		},
		Vault: VaultConfig{
			ReviewMeanThreshold:    ecfg.Vault.ReviewMeanThreshold,
			MinDomainDiversity:     ecfg.Vault.MinDomainDiversity,
			QueryVolumeThreshold:   ecfg.Vault.QueryVolumeThreshold,
			PromotionMeanThreshold: ecfg.Vault.PromotionMeanThreshold,
			StabilityThreshold:     ecfg.Vault.StabilityThreshold,
			RejectionMeanThreshold: ecfg.Vault.RejectionMeanThreshold,
			OscillationWindow:      ecfg.Vault.OscillationWindow,
			ResonanceDecay:         ecfg.Vault.ResonanceDecay,
		},
		Pipeline: PipelineConfig{
			NeighborK:     ecfg.NeighborK,
			MaxRecursions: ecfg.MaxRecursions,
		},
		Profiles: blend.DefaultProfiles(),
	}
}

// #endregion defaults

// #region load

// Load reads a YAML config file over the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	// A profile table in the file replaces the default table wholesale.
	cfg.Profiles = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = blend.DefaultProfiles()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Index.VectorDim <= 0 || c.Index.Tables <= 0 || c.Index.Bits <= 0 {
		return fmt.Errorf("index config must be positive: %+v", c.Index)
	}
	if c.Gate.ClarifyBelow > c.Gate.ProceedAt {
		return fmt.Errorf("clarify threshold %.2f above proceed threshold %.2f", c.Gate.ClarifyBelow, c.Gate.ProceedAt)
	}
	if c.Vault.ResonanceDecay < 0 || c.Vault.ResonanceDecay > 1 {
		return fmt.Errorf("resonance decay %.2f outside [0,1]", c.Vault.ResonanceDecay)
	}
	if len(c.Profiles) > 0 {
		if _, ok := c.Profiles["default"]; !ok {
			return fmt.Errorf("profile table missing default profile")
		}
	}
	return nil
}

// #endregion load

// #region conversion

// EngineConfig expands the file config into the pipeline config.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		LSH: lsh.Config{
			Dim:    c.Index.VectorDim,
			Tables: c.Index.Tables,
			Bits:   c.Index.Bits,
			Seed:   c.Index.Seed,
		},
		Gate: gate.Config{
			SimilarityFloor: c.Gate.SimilarityFloor,
			ConflictLimit:   c.Gate.ConflictLimit,
			MaxDepth:        c.Gate.MaxDepth,
			PenaltyStep:     c.Gate.PenaltyStep,
			ConfidenceFloor: c.Gate.ConfidenceFloor,
			ClarifyBelow:    c.Gate.ClarifyBelow,
			ProceedAt:       c.Gate.ProceedAt,
		},
		Vault: vault.Config{
			ReviewMeanThreshold:    c.Vault.ReviewMeanThreshold,
			MinDomainDiversity:     c.Vault.MinDomainDiversity,
			QueryVolumeThreshold:   c.Vault.QueryVolumeThreshold,
			PromotionMeanThreshold: c.Vault.PromotionMeanThreshold,
			StabilityThreshold:     c.Vault.StabilityThreshold,
			RejectionMeanThreshold: c.Vault.RejectionMeanThreshold,
			OscillationWindow:      c.Vault.OscillationWindow,
			ResonanceDecay:         c.Vault.ResonanceDecay,
		},
		Trace:         trace.ProducerConfig{ConflictGap: c.Gate.ConflictGap},
		Profiles:      c.Profiles,
		NeighborK:     c.Pipeline.NeighborK,
		MaxRecursions: c.Pipeline.MaxRecursions,
	}
}

// #endregion conversion
