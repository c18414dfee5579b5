package persist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kaygee-ai/resonance-engine/internal/vault"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndListResonance(t *testing.T) {
	s := tempStore(t)
	now := time.Now().UTC()

	if err := s.AppendResonance("c1", "medical", 0.9, now); err != nil {
		t.Fatalf("AppendResonance: %v", err)
	}
	if err := s.AppendResonance("c1", "legal", 0.7, now.Add(time.Second)); err != nil {
		t.Fatalf("AppendResonance: %v", err)
	}
	if err := s.AppendResonance("c2", "social", 0.5, now); err != nil {
		t.Fatalf("AppendResonance: %v", err)
	}

	records, err := s.ListResonance("c1", 10)
	if err != nil {
		t.Fatalf("ListResonance: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for c1, got %d", len(records))
	}
	if records[0].Domain != "medical" || records[0].Value != 0.9 {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Domain != "legal" {
		t.Fatal("expected insertion order")
	}
}

func TestRecordAndListTransitions(t *testing.T) {
	s := tempStore(t)
	now := time.Now().UTC()

	if err := s.RecordTransition("c1", "", vault.Quarantined, "first observation", now); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	if err := s.RecordTransition("c1", vault.Quarantined, vault.UnderReview, "volume", now.Add(time.Second)); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}

	records, err := s.ListTransitions(10)
	if err != nil {
		t.Fatalf("ListTransitions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(records))
	}
	// Newest first.
	if records[0].NewState != string(vault.UnderReview) {
		t.Fatalf("expected newest first, got %+v", records[0])
	}
	// Empty old_state round-trips as empty string.
	if records[1].OldState != "" {
		t.Fatalf("expected empty old state, got %q", records[1].OldState)
	}
}

func TestSaveAndListEpisodes(t *testing.T) {
	s := tempStore(t)

	rec := EpisodeRecord{
		EpisodeID:    "ep-1",
		CandidateID:  "c1",
		Principle:    "verify consent before sharing records",
		Context:      "medical",
		ScoresJSON:   `{"kant":0.9}`,
		Vector:       []float32{0.25, -1.5, 3},
		Action:       "PROCEED",
		Confidence:   1.0,
		BlendedScore: 0.935,
		Dominant:     "kantian_duty",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.SaveEpisode(rec); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	episodes, err := s.ListEpisodes(5)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	got := episodes[0]
	if got.EpisodeID != "ep-1" || got.Context != "medical" || got.Dominant != "kantian_duty" {
		t.Fatalf("unexpected episode %+v", got)
	}
	if got.Principle != "verify consent before sharing records" {
		t.Fatalf("principle did not round-trip: %q", got.Principle)
	}
	if len(got.Vector) != 3 || got.Vector[1] != -1.5 {
		t.Fatalf("vector did not round-trip: %v", got.Vector)
	}
}

func TestSaveEpisodeZeroTimeDefaults(t *testing.T) {
	s := tempStore(t)

	if err := s.SaveEpisode(EpisodeRecord{EpisodeID: "ep-z", CandidateID: "c", Context: "default", ScoresJSON: "{}", Action: "PROCEED"}); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}
	episodes, _ := s.ListEpisodes(1)
	if len(episodes) != 1 || episodes[0].CreatedAt.IsZero() {
		t.Fatal("expected a stamped created_at")
	}
}

func TestSaveClarification(t *testing.T) {
	s := tempStore(t)

	err := s.SaveClarification("ep-1", "medical", "Can you provide more context?", time.Now().UTC())
	if err != nil {
		t.Fatalf("SaveClarification: %v", err)
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM clarifications`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 clarification, got %d", count)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	original := make([]float32, 64)
	for i := range original {
		original[i] = float32(i)*0.1 - 3
	}
	decoded := decodeVector(encodeVector(original))
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: %d != %d", len(decoded), len(original))
	}
	for i := range original {
		if original[i] != decoded[i] {
			t.Fatalf("mismatch at %d: %f != %f", i, original[i], decoded[i])
		}
	}
}

func TestVectorNilRoundTrip(t *testing.T) {
	if encodeVector(nil) != nil {
		t.Fatal("expected nil blob for nil vector")
	}
	if decodeVector(nil) != nil {
		t.Fatal("expected nil vector for nil blob")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "closed.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.Close()

	now := time.Now().UTC()
	if err := s.AppendResonance("c", "d", 0.5, now); err == nil {
		t.Fatal("expected error on closed DB")
	}
	if err := s.RecordTransition("c", "", vault.Quarantined, "", now); err == nil {
		t.Fatal("expected error on closed DB")
	}
	if _, err := s.ListTransitions(5); err == nil {
		t.Fatal("expected error on closed DB")
	}
}
