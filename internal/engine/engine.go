package engine

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kaygee-ai/resonance-engine/internal/blend"
	"github.com/kaygee-ai/resonance-engine/internal/gate"
	"github.com/kaygee-ai/resonance-engine/internal/lsh"
	"github.com/kaygee-ai/resonance-engine/internal/persist"
	"github.com/kaygee-ai/resonance-engine/internal/trace"
	"github.com/kaygee-ai/resonance-engine/internal/vault"
)

// #region config

// Config bundles the tuning of every pipeline stage.
type Config struct {
	LSH           lsh.Config
	Gate          gate.Config
	Vault         vault.Config
	Trace         trace.ProducerConfig
	Profiles      map[string]blend.Weights // nil means the built-in profile table
	NeighborK     int                      // candidates fetched per similarity query
	MaxRecursions int                      // internal recursion cap per episode
}

// DefaultConfig returns defaults for all pipeline stages.
func DefaultConfig() Config {
	return Config{
		LSH:           lsh.DefaultConfig(),
		Gate:          gate.DefaultConfig(),
		Vault:         vault.DefaultConfig(),
		Trace:         trace.DefaultProducerConfig(),
		NeighborK:     10,
		MaxRecursions: 4,
	}
}

// #endregion config

// #region episode-sink

// EpisodeSink receives completed episodes and surfaced clarifications.
// *persist.Store satisfies it.
type EpisodeSink interface {
	SaveEpisode(rec persist.EpisodeRecord) error
	SaveClarification(episodeID, context, question string, at time.Time) error
}

// #endregion episode-sink

// #region engine

// Engine wires the blender, similarity index, confidence gate, and vault into
// one decision pipeline. Episodes on different candidates may run concurrently.
type Engine struct {
	config   Config
	blender  *blend.Blender
	index    *lsh.Index
	gate     *gate.Gate
	vault    *vault.Vault
	producer *trace.Producer
	episodes EpisodeSink
	log      *zap.Logger

	mu        sync.Mutex
	termUsage map[string]int
}

// New assembles an engine. recorder, verifier, and episodes may each be nil;
// a nil verifier means no candidate can ever be promoted.
func New(cfg Config, recorder vault.Recorder, verifier vault.Verifier, episodes EpisodeSink, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	index, err := lsh.NewIndex(cfg.LSH)
	if err != nil {
		return nil, err
	}

	blender := blend.New(logger)
	if cfg.Profiles != nil {
		blender, err = blend.NewWithProfiles(cfg.Profiles, logger)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		config:    cfg,
		blender:   blender,
		index:     index,
		vault:     vault.New(cfg.Vault, recorder, verifier, logger),
		producer:  trace.NewProducer(cfg.Trace),
		episodes:  episodes,
		log:       logger,
		termUsage: make(map[string]int),
	}
	classifier := gate.NewPrefixClassifier(gate.DefaultRiskyPrefixes, e.usageCount, gate.DefaultUsageFloor)
	e.gate = gate.NewGate(cfg.Gate, classifier, logger)
	return e, nil
}

// Vault exposes the candidate vault for dashboards and review tooling.
func (e *Engine) Vault() *vault.Vault {
	return e.vault
}

func (e *Engine) usageCount(term string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.termUsage[term]
}

func (e *Engine) noteTermUsage(terms []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range terms {
		e.termUsage[t]++
	}
}

// #endregion engine

// #region episode

// Input is one incoming situation: per-framework scores, detected context,
// and the candidate principle under consideration.
type Input struct {
	Context       string
	ContextTags   []string // optional ranked tags; first match wins
	Scores        blend.Scores
	Principle     string
	Vector        []float32
	InventedTerms []string
	Depth         int
}

// Outcome is what the pipeline hands to the dialogue layer: either a
// clarification question or a proceed/recurse signal with the blended verdict.
type Outcome struct {
	EpisodeID      string
	CandidateID    string
	Action         gate.Action
	Question       string
	Confidence     float64
	Penalties      int
	BlendedScore   float64
	Dominant       blend.Framework
	Similarity     float64
	HasSimilarity  bool
	Depth          int
	CandidateState vault.State
}

// RunEpisode drives one decision through blend -> index -> gate -> vault.
// RECURSE verdicts are re-run internally with one-higher depth until the gate
// settles or the recursion cap is reached; a cap-bound episode surfaces the
// RECURSE signal to the caller. Collaborator failures propagate unretried.
func (e *Engine) RunEpisode(input Input) (Outcome, error) {
	episodeID := uuid.New().String()

	context := input.Context
	if len(input.ContextTags) > 0 {
		context, _ = e.blender.SelectProfile(input.ContextTags)
	}

	blended := e.blender.Blend(context, input.Scores)

	cand, admitted, err := e.vault.Admit(input.Principle, input.Vector)
	if err != nil {
		return Outcome{EpisodeID: episodeID}, err
	}
	if admitted {
		if err := e.index.Index(input.Vector, cand.ID); err != nil {
			return Outcome{EpisodeID: episodeID, CandidateID: cand.ID}, err
		}
	}

	similarity, hasSimilarity, err := e.nearestSimilarity(cand.ID, input.Vector)
	if err != nil {
		return Outcome{EpisodeID: episodeID, CandidateID: cand.ID}, err
	}

	depth := input.Depth
	var assessment gate.Assessment
	for attempt := 0; ; attempt++ {
		tr := e.producer.Produce(trace.ProduceInput{
			EpisodeID:     episodeID,
			Scores:        input.Scores,
			Similarity:    similarity,
			HasSimilarity: hasSimilarity,
			InventedTerms: input.InventedTerms,
			Depth:         depth,
		})
		assessment = e.gate.Assess(tr)
		if assessment.Action != gate.Recurse || attempt >= e.config.MaxRecursions {
			break
		}
		depth++
	}
	e.noteTermUsage(input.InventedTerms)

	out := Outcome{
		EpisodeID:      episodeID,
		CandidateID:    cand.ID,
		Action:         assessment.Action,
		Question:       assessment.Question,
		Confidence:     assessment.Confidence,
		Penalties:      assessment.Penalties,
		BlendedScore:   blended.Score,
		Dominant:       blended.Dominant,
		Similarity:     similarity,
		HasSimilarity:  hasSimilarity,
		Depth:          depth,
		CandidateState: cand.State,
	}

	var episodeErr error
	switch assessment.Action {
	case gate.Proceed:
		updated, err := e.vault.RecordResonance(cand.ID, blended.Context, blended.Score)
		if err != nil {
			episodeErr = err
		} else {
			out.CandidateState = updated.State
		}
	case gate.Clarify:
		if e.episodes != nil {
			if err := e.episodes.SaveClarification(episodeID, blended.Context, assessment.Question, time.Now().UTC()); err != nil {
				e.log.Warn("save clarification failed", zap.Error(err))
			}
		}
	}

	e.saveEpisode(out, input, blended)
	return out, episodeErr
}

// nearestSimilarity queries the index and scores the returned neighbors by
// cosine against the vault's stored vectors. Every matched neighbor gets its
// query volume bumped. With no known neighbors the similarity field stays
// absent and the gate reads it as neutral.
func (e *Engine) nearestSimilarity(selfID string, vector []float32) (float64, bool, error) {
	ids, err := e.index.Query(vector, e.config.NeighborK)
	if err != nil {
		return 0, false, err
	}

	best := 0.0
	found := false
	for _, id := range ids {
		if id == selfID {
			continue
		}
		neighbor, err := e.vault.Get(id)
		if err != nil {
			return 0, false, err
		}
		if _, err := e.vault.NoteQuery(id); err != nil {
			return 0, false, err
		}
		sim := cosineSimilarity(vector, neighbor.Vector)
		if !found || sim > best {
			best = sim
			found = true
		}
	}
	return best, found, nil
}

func (e *Engine) saveEpisode(out Outcome, input Input, blended blend.Result) {
	if e.episodes == nil {
		return
	}
	rec := persist.EpisodeRecord{
		EpisodeID:    out.EpisodeID,
		CandidateID:  out.CandidateID,
		Principle:    input.Principle,
		Context:      blended.Context,
		ScoresJSON:   scoresJSON(input.Scores),
		Vector:       input.Vector,
		Action:       string(out.Action),
		Confidence:   out.Confidence,
		BlendedScore: out.BlendedScore,
		Dominant:     string(out.Dominant),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.episodes.SaveEpisode(rec); err != nil {
		e.log.Warn("save episode failed", zap.Error(err))
	}
}

// #endregion episode

// #region helpers

func scoresJSON(scores blend.Scores) string {
	if scores == nil {
		return "{}"
	}
	b, err := json.Marshal(scores)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// cosineSimilarity returns 0 for zero-length or mismatched vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// #endregion helpers
