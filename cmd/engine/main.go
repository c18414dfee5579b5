package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kaygee-ai/resonance-engine/internal/blend"
	"github.com/kaygee-ai/resonance-engine/internal/config"
	"github.com/kaygee-ai/resonance-engine/internal/engine"
	"github.com/kaygee-ai/resonance-engine/internal/persist"
)

// #region main

func main() {
	configPath := envOr("RESONANCE_CONFIG", "")
	dbPath := envOr("RESONANCE_DB", "")

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	store, err := persist.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	verifier := newStaticVerifier(envOr("RESONANCE_FORBIDDEN", ""))

	eng, err := engine.New(cfg.EngineConfig(), store, verifier, store, logger)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	fmt.Println("Resonance Engine ready.")
	fmt.Printf("  DB: %s\n", cfg.DBPath)
	fmt.Println("Paste one episode per line as JSON (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		var ep episodeLine
		if err := json.Unmarshal([]byte(line), &ep); err != nil {
			log.Printf("parse error: %v", err)
			continue
		}

		out, err := eng.RunEpisode(ep.toInput())
		if err != nil {
			log.Printf("episode error: %v", err)
			continue
		}
		printOutcome(out)
	}
}

// #endregion main

// #region input

// episodeLine is the JSON shape accepted on stdin.
type episodeLine struct {
	Context       string             `json:"context"`
	ContextTags   []string           `json:"context_tags"`
	Scores        map[string]float64 `json:"scores"`
	Principle     string             `json:"principle"`
	Vector        []float32          `json:"vector"`
	InventedTerms []string           `json:"invented_terms"`
	Depth         int                `json:"depth"`
}

func (e episodeLine) toInput() engine.Input {
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

// #endregion input

// #region output

func printOutcome(out engine.Outcome) {
	switch {
	case out.Question != "":
		fmt.Printf("\n%s\n\n", out.Question)
	default:
		fmt.Printf("\n%s (dominant %s, blended %.3f)\n\n", out.Action, out.Dominant, out.BlendedScore)
	}
	fmt.Printf("[%s] action=%s confidence=%.2f penalties=%d candidate=%s state=%s\n",
		shortID(out.EpisodeID), out.Action, out.Confidence, out.Penalties,
		shortID(out.CandidateID), out.CandidateState)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output

// #region verifier

// staticVerifier vetoes promotion of any principle containing a forbidden
// phrase. It stands in for the external safety service in local runs.
type staticVerifier struct {
	forbidden []string
}

func newStaticVerifier(csv string) staticVerifier {
	var forbidden []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			forbidden = append(forbidden, strings.ToLower(p))
		}
	}
	return staticVerifier{forbidden: forbidden}
}

func (v staticVerifier) VerifyRule(rule string) (bool, string, error) {
	lower := strings.ToLower(rule)
	for _, p := range v.forbidden {
		if strings.Contains(lower, p) {
			return false, fmt.Sprintf("contains forbidden phrase %q", p), nil
		}
	}
	return true, "", nil
}

// #endregion verifier

// #region helpers

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
