package blend

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
)

func newTestBlender(t *testing.T) *Blender {
	t.Helper()
	return New(zap.NewNop())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBlendMedicalProfile(t *testing.T) {
	b := newTestBlender(t)
	scores := Scores{"kant": 0.9, "locke": 0.5, "spinoza": 0.5, "hume": 0.5}

	res := b.Blend("medical", scores)

	want := 0.9*0.65 + 0.5*0.20 + 0.5*0.10 + 0.5*0.05
	if !almostEqual(res.Score, want) {
		t.Fatalf("expected score %.4f, got %.4f", want, res.Score)
	}
	if res.Dominant != KantianDuty {
		t.Fatalf("expected dominant kantian_duty, got %s", res.Dominant)
	}
	if res.Context != "medical" {
		t.Fatalf("expected context medical, got %s", res.Context)
	}
}

func TestBlendUnknownContextFallsBackToDefault(t *testing.T) {
	b := newTestBlender(t)
	scores := Scores{"kant": 0.8, "hume": 0.2, "locke": 0.6, "spinoza": 0.4}

	unknown := b.Blend("interdimensional", scores)
	def := b.Blend("default", scores)

	if !almostEqual(unknown.Score, def.Score) {
		t.Fatalf("expected same score, got %.4f vs %.4f", unknown.Score, def.Score)
	}
	if unknown.Dominant != def.Dominant {
		t.Fatalf("expected same dominant, got %s vs %s", unknown.Dominant, def.Dominant)
	}
	if unknown.Context != "default" {
		t.Fatalf("expected fallback context default, got %s", unknown.Context)
	}
}

func TestBlendMissingScoresDefaultToNeutral(t *testing.T) {
	b := newTestBlender(t)

	// All scores missing: weighted sum collapses to NeutralScore * sum(weights).
	res := b.Blend("medical", Scores{})
	want := NeutralScore * (0.65 + 0.20 + 0.10 + 0.05)
	if !almostEqual(res.Score, want) {
		t.Fatalf("expected %.4f, got %.4f", want, res.Score)
	}

	// Nil map behaves the same.
	nilRes := b.Blend("medical", nil)
	if !almostEqual(nilRes.Score, want) {
		t.Fatalf("expected %.4f for nil scores, got %.4f", want, nilRes.Score)
	}
}

func TestBlendDominantPerProfile(t *testing.T) {
	b := newTestBlender(t)
	scores := Scores{"kant": 0.5, "hume": 0.5, "locke": 0.5, "spinoza": 0.5}

	cases := map[string]Framework{
		"medical":  KantianDuty,
		"legal":    LockeanRights,
		"social":   HumeanUtility,
		"creative": SpinozanConatus,
		"default":  KantianDuty,
	}
	for ctx, want := range cases {
		res := b.Blend(ctx, scores)
		if res.Dominant != want {
			t.Fatalf("context %s: expected dominant %s, got %s", ctx, want, res.Dominant)
		}
	}
}

func TestBlendDominantTieBreaksByDeclarationOrder(t *testing.T) {
	profiles := DefaultProfiles()
	profiles["tied"] = Weights{KantianDuty: 0.25, HumeanUtility: 0.25, LockeanRights: 0.25, SpinozanConatus: 0.25}
	b, err := NewWithProfiles(profiles, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWithProfiles: %v", err)
	}

	res := b.Blend("tied", Scores{"kant": 0.5})
	if res.Dominant != KantianDuty {
		t.Fatalf("expected kantian_duty on tie, got %s", res.Dominant)
	}
}

func TestSelectProfileFirstMatch(t *testing.T) {
	b := newTestBlender(t)

	name, _ := b.SelectProfile([]string{"nonsense", "legal", "medical"})
	if name != "legal" {
		t.Fatalf("expected legal, got %s", name)
	}

	name, w := b.SelectProfile([]string{"nope", "also-nope"})
	if name != "default" {
		t.Fatalf("expected default, got %s", name)
	}
	if w != DefaultProfiles()["default"] {
		t.Fatalf("expected default weights, got %+v", w)
	}
}

func TestSelectProfileEmptyTags(t *testing.T) {
	b := newTestBlender(t)
	name, _ := b.SelectProfile(nil)
	if name != "default" {
		t.Fatalf("expected default, got %s", name)
	}
}

func TestNewWithProfilesMissingDefault(t *testing.T) {
	_, err := NewWithProfiles(map[string]Weights{
		"medical": {KantianDuty: 1},
	}, zap.NewNop())
	if !errors.Is(err, ErrInvalidProfiles) {
		t.Fatalf("expected ErrInvalidProfiles, got %v", err)
	}
}

func TestNewWithProfilesNegativeWeight(t *testing.T) {
	_, err := NewWithProfiles(map[string]Weights{
		"default": {KantianDuty: -0.1},
	}, zap.NewNop())
	if !errors.Is(err, ErrInvalidProfiles) {
		t.Fatalf("expected ErrInvalidProfiles, got %v", err)
	}
}

func TestNewWithProfilesNilLogger(t *testing.T) {
	b, err := NewWithProfiles(DefaultProfiles(), nil)
	if err != nil {
		t.Fatalf("NewWithProfiles: %v", err)
	}
	// Must not panic when logging the blend event.
	b.Blend("medical", Scores{"kant": 1})
}
