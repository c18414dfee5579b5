package persist

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kaygee-ai/resonance-engine/internal/vault"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS resonance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id  TEXT NOT NULL,
	domain        TEXT NOT NULL,
	value         REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lifecycle_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id  TEXT NOT NULL,
	old_state     TEXT,
	new_state     TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS clarifications (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id    TEXT NOT NULL,
	context       TEXT,
	question      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
	episode_id    TEXT PRIMARY KEY,
	candidate_id  TEXT NOT NULL,
	principle     TEXT NOT NULL DEFAULT '',
	context       TEXT NOT NULL,
	scores_json   TEXT NOT NULL,
	vector        BLOB,
	action        TEXT NOT NULL,
	confidence    REAL NOT NULL,
	blended_score REAL NOT NULL,
	dominant      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct

// Store is the append-only persistence collaborator backed by SQLite.
// It implements vault.Recorder and the engine's episode log.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region recorder

// AppendResonance writes one resonance sample to the append-only log.
func (s *Store) AppendResonance(candidateID, domain string, value float64, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO resonance_log (candidate_id, domain, value, created_at) VALUES (?, ?, ?, ?)`,
		candidateID, domain, value, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append resonance: %w", err)
	}
	return nil
}

// RecordTransition writes one lifecycle-state-change event.
func (s *Store) RecordTransition(candidateID string, from, to vault.State, reason string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO lifecycle_events (candidate_id, old_state, new_state, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		candidateID, nullIfEmpty(string(from)), string(to), nullIfEmpty(reason), at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// #endregion recorder

// #region clarifications

// SaveClarification logs a question surfaced to the dialogue layer.
func (s *Store) SaveClarification(episodeID, context, question string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO clarifications (episode_id, context, question, created_at) VALUES (?, ?, ?, ?)`,
		episodeID, nullIfEmpty(context), question, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save clarification: %w", err)
	}
	return nil
}

// #endregion clarifications

// #region episodes

// EpisodeRecord is one recorded decision episode, kept for replay fixtures.
type EpisodeRecord struct {
	EpisodeID    string    `json:"episode_id"`
	CandidateID  string    `json:"candidate_id"`
	Principle    string    `json:"principle"`
	Context      string    `json:"context"`
	ScoresJSON   string    `json:"scores_json"`
	Vector       []float32 `json:"vector"`
	Action       string    `json:"action"`
	Confidence   float64   `json:"confidence"`
	BlendedScore float64   `json:"blended_score"`
	Dominant     string    `json:"dominant"`
	CreatedAt    time.Time `json:"created_at"`
}

// SaveEpisode records a completed decision episode.
func (s *Store) SaveEpisode(rec EpisodeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO episodes (episode_id, candidate_id, principle, context, scores_json, vector, action, confidence, blended_score, dominant, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EpisodeID, rec.CandidateID, rec.Principle, rec.Context, rec.ScoresJSON, encodeVector(rec.Vector),
		rec.Action, rec.Confidence, rec.BlendedScore, rec.Dominant,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save episode: %w", err)
	}
	return nil
}

// ListEpisodes returns the most recent episodes, newest first.
func (s *Store) ListEpisodes(limit int) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, candidate_id, principle, context, scores_json, vector, action, confidence, blended_score, dominant, created_at
		 FROM episodes ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var records []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		var vecBlob []byte
		var createdStr string
		if err := rows.Scan(&rec.EpisodeID, &rec.CandidateID, &rec.Principle, &rec.Context, &rec.ScoresJSON,
			&vecBlob, &rec.Action, &rec.Confidence, &rec.BlendedScore, &rec.Dominant, &createdStr); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		rec.Vector = decodeVector(vecBlob)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion episodes

// #region queries

// TransitionRecord is one persisted lifecycle event.
type TransitionRecord struct {
	CandidateID string    `json:"candidate_id"`
	OldState    string    `json:"old_state,omitempty"`
	NewState    string    `json:"new_state"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListTransitions returns the most recent lifecycle events, newest first.
func (s *Store) ListTransitions(limit int) ([]TransitionRecord, error) {
	rows, err := s.db.Query(
		`SELECT candidate_id, old_state, new_state, reason, created_at
		 FROM lifecycle_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		var oldState, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.CandidateID, &oldState, &rec.NewState, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if oldState.Valid {
			rec.OldState = oldState.String
		}
		if reason.Valid {
			rec.Reason = reason.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ResonanceRecord is one persisted resonance sample.
type ResonanceRecord struct {
	CandidateID string    `json:"candidate_id"`
	Domain      string    `json:"domain"`
	Value       float64   `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListResonance returns a candidate's samples in insertion order.
func (s *Store) ListResonance(candidateID string, limit int) ([]ResonanceRecord, error) {
	rows, err := s.db.Query(
		`SELECT candidate_id, domain, value, created_at
		 FROM resonance_log WHERE candidate_id = ? ORDER BY id LIMIT ?`, candidateID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list resonance: %w", err)
	}
	defer rows.Close()

	var records []ResonanceRecord
	for rows.Next() {
		var rec ResonanceRecord
		var createdStr string
		if err := rows.Scan(&rec.CandidateID, &rec.Domain, &rec.Value, &createdStr); err != nil {
			return nil, fmt.Errorf("scan resonance: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion queries

// #region vector-encoding

func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
