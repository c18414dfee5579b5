package blend

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// #region frameworks

// Framework identifies one of the four ethical frameworks. The set is closed:
// adding a framework is a code change, not a configuration change.
type Framework string

const (
	KantianDuty     Framework = "kantian_duty"
	HumeanUtility   Framework = "humean_utility"
	LockeanRights   Framework = "lockean_rights"
	SpinozanConatus Framework = "spinozan_conatus"
)

// frameworkOrder fixes the tie-break priority for dominant-framework selection.
var frameworkOrder = [4]Framework{KantianDuty, HumeanUtility, LockeanRights, SpinozanConatus}

// scoreKeys maps each framework to the short key used in per-framework score sets.
var scoreKeys = map[Framework]string{
	KantianDuty:     "kant",
	HumeanUtility:   "hume",
	LockeanRights:   "locke",
	SpinozanConatus: "spinoza",
}

// #endregion frameworks

// #region types

// Scores holds raw per-framework scores in [0,1], keyed by the short framework
// key ("kant", "hume", "locke", "spinoza"). Missing keys read as NeutralScore.
type Scores map[string]float64

// Weights is one context profile: relative contribution weights per framework.
// Weights need not sum to 1.0; they are applied directly.
type Weights struct {
	KantianDuty     float64 `yaml:"kantian_duty"`
	HumeanUtility   float64 `yaml:"humean_utility"`
	LockeanRights   float64 `yaml:"lockean_rights"`
	SpinozanConatus float64 `yaml:"spinozan_conatus"`
}

func (w Weights) weight(f Framework) float64 {
	switch f {
	case KantianDuty:
		return w.KantianDuty
	case HumeanUtility:
		return w.HumeanUtility
	case LockeanRights:
		return w.LockeanRights
	case SpinozanConatus:
		return w.SpinozanConatus
	}
	return 0
}

// Result is the outcome of one blend.
type Result struct {
	Score    float64
	Dominant Framework
	Context  string // the profile actually used, "default" on fallback
}

// #endregion types

// #region defaults

// NeutralScore is read for any framework missing from a score set.
const NeutralScore = 0.5

// DefaultProfiles returns the fixed context-to-weights table.
func DefaultProfiles() map[string]Weights {
	return map[string]Weights{
		"medical":  {KantianDuty: 0.65, HumeanUtility: 0.20, LockeanRights: 0.10, SpinozanConatus: 0.05},
		"legal":    {KantianDuty: 0.30, HumeanUtility: 0.08, LockeanRights: 0.60, SpinozanConatus: 0.02},
		"social":   {KantianDuty: 0.15, HumeanUtility: 0.55, LockeanRights: 0.10, SpinozanConatus: 0.20},
		"creative": {KantianDuty: 0.15, HumeanUtility: 0.30, LockeanRights: 0.05, SpinozanConatus: 0.50},
		"default":  {KantianDuty: 0.30, HumeanUtility: 0.25, LockeanRights: 0.25, SpinozanConatus: 0.20},
	}
}

// #endregion defaults

// #region blender

// ErrInvalidProfiles is returned when the profile table fails validation.
var ErrInvalidProfiles = errors.New("invalid profile table")

// Blender maps a detected context to a weight profile and blends the four
// framework scores into one contextual verdict. Pure apart from event logging.
type Blender struct {
	profiles map[string]Weights
	log      *zap.Logger
}

// New creates a Blender over the default profile table.
func New(logger *zap.Logger) *Blender {
	b, _ := NewWithProfiles(DefaultProfiles(), logger)
	return b
}

// NewWithProfiles creates a Blender over a custom table. The table must contain
// a "default" profile and no negative weights.
func NewWithProfiles(profiles map[string]Weights, logger *zap.Logger) (*Blender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, ok := profiles["default"]; !ok {
		return nil, fmt.Errorf("%w: missing default profile", ErrInvalidProfiles)
	}
	for name, w := range profiles {
		for _, f := range frameworkOrder {
			if w.weight(f) < 0 {
				return nil, fmt.Errorf("%w: profile %q has negative weight for %s", ErrInvalidProfiles, name, f)
			}
		}
	}
	return &Blender{profiles: profiles, log: logger}, nil
}

// #endregion blender

// #region blend

// Blend looks up the profile for context (falling back to default, which never
// fails), computes the weighted sum of the four framework scores, and returns
// the score together with the dominant framework of the selected profile.
func (b *Blender) Blend(context string, scores Scores) Result {
	used := context
	profile, ok := b.profiles[context]
	if !ok {
		used = "default"
		profile = b.profiles["default"]
	}

	var score float64
	for _, f := range frameworkOrder {
		score += profile.weight(f) * scoreFor(scores, f)
	}

	dominant := frameworkOrder[0]
	best := profile.weight(dominant)
	for _, f := range frameworkOrder[1:] {
		if profile.weight(f) > best {
			best = profile.weight(f)
			dominant = f
		}
	}

	// Trace event; must never block or fail the blend.
	b.log.Info("context blend",
		zap.String("context", used),
		zap.String("dominant", string(dominant)),
		zap.Float64("score", score),
	)

	return Result{Score: score, Dominant: dominant, Context: used}
}

// SelectProfile returns the first profile whose name matches a tag, else default.
// Supports multi-label context detection upstream.
func (b *Blender) SelectProfile(contextTags []string) (string, Weights) {
	for _, tag := range contextTags {
		if w, ok := b.profiles[tag]; ok {
			return tag, w
		}
	}
	return "default", b.profiles["default"]
}

func scoreFor(scores Scores, f Framework) float64 {
	if scores == nil {
		return NeutralScore
	}
	if v, ok := scores[scoreKeys[f]]; ok {
		return v
	}
	return NeutralScore
}

// #endregion blend
