package gate

import "strings"

// #region novelty-classifier

// NoveltyClassifier decides whether an invented term is too new to trust.
// The gate penalizes a trace containing at least one risky term.
type NoveltyClassifier interface {
	Risky(term string) bool
}

// UsageCounter reports how many times a term has been used historically.
type UsageCounter func(term string) int

// #endregion novelty-classifier

// #region prefix-classifier

// DefaultRiskyPrefixes are the invented-terminology prefixes the original
// heuristic flagged. Placeholder classifier; swap in a real one via the interface.
var DefaultRiskyPrefixes = []string{"qua_", "blu_", "zee_"}

// DefaultUsageFloor is the historical usage count below which a risky-prefix
// term is still considered unsafe.
const DefaultUsageFloor = 7

// PrefixClassifier flags terms carrying a risky prefix whose historical usage
// count is below the floor.
type PrefixClassifier struct {
	prefixes []string
	usage    UsageCounter
	floor    int
}

// NewPrefixClassifier creates a PrefixClassifier. A nil usage counter reads
// every term as never used.
func NewPrefixClassifier(prefixes []string, usage UsageCounter, floor int) *PrefixClassifier {
	if usage == nil {
		usage = func(string) int { return 0 }
	}
	return &PrefixClassifier{prefixes: prefixes, usage: usage, floor: floor}
}

// Risky reports whether term matches a risky prefix and is under-used.
func (c *PrefixClassifier) Risky(term string) bool {
	for _, p := range c.prefixes {
		if strings.HasPrefix(term, p) {
			return c.usage(term) < c.floor
		}
	}
	return false
}

// #endregion prefix-classifier
