package condenser

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"mqproxy/internal/canonical"
)

// ComparisonStrategy turns message content into a similarity key. Two
// contents with equal keys are eligible to be condensed into one envelope.
type ComparisonStrategy interface {
	ComputeComparisonKey(content string) (string, error)
}

// StrategyFunc adapts a plain function to a ComparisonStrategy.
type StrategyFunc func(content string) (string, error)

func (f StrategyFunc) ComputeComparisonKey(content string) (string, error) {
	return f(content)
}

// DefaultExcludedFields are the timestamp-like fields ignored by the default
// strategy when comparing content.
var DefaultExcludedFields = []string{
	"timestamp", "time", "datetime", "date", "ts",
	"createdAt", "created_at", "updatedAt", "updated_at",
	"eventTime", "event_time",
}

// DefaultExtractFields are the fields the envelope builder reads, in order,
// to recover a per-original numeric timestamp.
var DefaultExtractFields = []string{
	"timestamp", "time", "datetime", "ts",
	"createdAt", "created_at", "eventTime", "event_time",
}

const keyCacheSize = 1000

// FieldExclusionStrategy keys content by its canonical form with a set of
// fields excluded. A bounded LRU cache keyed by a content hash amortizes
// repeated canonicalization of identical content; the cache is a performance
// aid only and correctness never depends on a hit.
type FieldExclusionStrategy struct {
	exclude map[string]struct{}
	cache   *lru.Cache[uint64, string]
}

// NewFieldExclusionStrategy builds a strategy excluding the given top-level
// fields from comparison.
func NewFieldExclusionStrategy(fields ...string) *FieldExclusionStrategy {
	exclude := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		exclude[f] = struct{}{}
	}
	cache, _ := lru.New[uint64, string](keyCacheSize)
	return &FieldExclusionStrategy{exclude: exclude, cache: cache}
}

// ExcludeTimestamps builds the default strategy, ignoring common timestamp
// field spellings.
func ExcludeTimestamps() *FieldExclusionStrategy {
	return NewFieldExclusionStrategy(DefaultExcludedFields...)
}

func (s *FieldExclusionStrategy) ComputeComparisonKey(content string) (string, error) {
	h := xxhash.Sum64String(content)
	if key, ok := s.cache.Get(h); ok {
		return key, nil
	}

	if !canonical.LooksStructured(content) {
		return content, nil
	}

	key := canonical.Canonicalize(content, s.exclude)
	s.cache.Add(h, key)
	return key, nil
}
