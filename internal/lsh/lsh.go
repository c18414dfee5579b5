package lsh

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// #region errors

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// ErrInvalidConfig is returned when the index is constructed with non-positive parameters.
var ErrInvalidConfig = errors.New("invalid index config")

// #endregion errors

// #region config

// Config holds the tuning dials for the similarity index.
// Tables trades false negatives against query cost; Bits controls bucket granularity.
type Config struct {
	Dim    int   // feature vector dimension
	Tables int   // number of independent hash tables
	Bits   int   // projection bits per table
	Seed   int64 // RNG seed for the projection matrices
}

// DefaultConfig returns the layout used by the decision pipeline.
func DefaultConfig() Config {
	return Config{
		Dim:    128,
		Tables: 8,
		Bits:   10,
		Seed:   1,
	}
}

// #endregion config

// #region index

// table is one independent hash table: a fixed projection matrix plus mutable buckets.
// The projection is immutable after construction; buckets are guarded per table.
type table struct {
	mu      sync.RWMutex
	proj    [][]float32 // Bits rows of Dim columns
	buckets map[string][]string
}

// Index is a multi-table random-projection LSH index over candidate identifiers.
// It owns only identifier-to-bucket associations, never the candidates themselves.
type Index struct {
	dim    int
	bits   int
	tables []*table
}

// NewIndex builds an index with Tables independent Gaussian projection matrices.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Dim <= 0 || cfg.Tables <= 0 || cfg.Bits <= 0 {
		return nil, fmt.Errorf("%w: dim=%d tables=%d bits=%d", ErrInvalidConfig, cfg.Dim, cfg.Tables, cfg.Bits)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	tables := make([]*table, cfg.Tables)
	for i := range tables {
		proj := make([][]float32, cfg.Bits)
		for b := range proj {
			row := make([]float32, cfg.Dim)
			for d := range row {
				row[d] = float32(rng.NormFloat64())
			}
			proj[b] = row
		}
		tables[i] = &table{
			proj:    proj,
			buckets: make(map[string][]string),
		}
	}

	return &Index{dim: cfg.Dim, bits: cfg.Bits, tables: tables}, nil
}

// Dim returns the fixed vector dimension accepted by this index.
func (ix *Index) Dim() int {
	return ix.dim
}

// #endregion index

// #region signature

// signature projects vector through the table's matrix and thresholds each dot
// product at zero, producing one '0'/'1' byte per projection row.
func (t *table) signature(vector []float32) string {
	key := make([]byte, len(t.proj))
	for b, row := range t.proj {
		var dot float64
		for d, w := range row {
			dot += float64(w) * float64(vector[d])
		}
		if dot > 0 {
			key[b] = '1'
		} else {
			key[b] = '0'
		}
	}
	return string(key)
}

// #endregion signature

// #region index-ops

// Index places id into one bucket per table, keyed by the vector's signature.
// Re-indexing the same id is the caller's responsibility to avoid; no dedup is done.
func (ix *Index) Index(vector []float32, id string) error {
	if len(vector) != ix.dim {
		return fmt.Errorf("%w: got %d, index dim %d", ErrDimensionMismatch, len(vector), ix.dim)
	}
	for _, t := range ix.tables {
		key := t.signature(vector)
		t.mu.Lock()
		t.buckets[key] = append(t.buckets[key], id)
		t.mu.Unlock()
	}
	return nil
}

// IndexBatch indexes many vectors at once. Every vector is validated before any
// table is touched, so a failed batch leaves the index unchanged.
func (ix *Index) IndexBatch(vectors [][]float32, ids []string) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: %d vectors, %d ids", ErrInvalidConfig, len(vectors), len(ids))
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("%w: vector %d has length %d, index dim %d", ErrDimensionMismatch, i, len(v), ix.dim)
		}
	}
	for i, v := range vectors {
		if err := ix.Index(v, ids[i]); err != nil {
			return err
		}
	}
	return nil
}

// Query unions the bucket contents matching vector's signature across all tables
// and returns up to k identifiers. No ranking by true distance is performed;
// result order is unspecified.
func (ix *Index) Query(vector []float32, k int) ([]string, error) {
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, index dim %d", ErrDimensionMismatch, len(vector), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var results []string
	for _, t := range ix.tables {
		key := t.signature(vector)
		t.mu.RLock()
		bucket := t.buckets[key]
		for _, id := range bucket {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			results = append(results, id)
		}
		t.mu.RUnlock()
	}

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// #endregion index-ops
