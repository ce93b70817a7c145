package complexity

import "strings"

// WeightTable is the immutable per-field cost table loaded at startup.
// Weights are keyed by "parent.field", where parent is the enclosing
// field's name ("Query" at the root; no schema is consulted), with a
// bare "field" entry acting as a wildcard across parents. Unknown
// fields fall back to the default
// weight, multiplied when the field looks like a collection. Estimation
// errs toward over-protection, never zero.
type WeightTable struct {
	weights        map[string]int
	defaultWeight  int
	listMultiplier int
}

// NewWeightTable builds a weight table from entries keyed "parent.field"
// or "field". Non-positive defaults are normalized: defaultWeight to 1,
// listMultiplier to 10.
func NewWeightTable(defaultWeight, listMultiplier int, entries map[string]int) *WeightTable {
	if defaultWeight <= 0 {
		defaultWeight = 1
	}
	if listMultiplier <= 0 {
		listMultiplier = 10
	}

	weights := make(map[string]int, len(entries))
	for key, w := range entries {
		if w > 0 {
			weights[key] = w
		}
	}

	return &WeightTable{
		weights:        weights,
		defaultWeight:  defaultWeight,
		listMultiplier: listMultiplier,
	}
}

// DefaultWeight returns the fallback weight for unknown fields.
func (t *WeightTable) DefaultWeight() int {
	return t.defaultWeight
}

// ListMultiplier returns the boost applied to collection-shaped fields.
func (t *WeightTable) ListMultiplier() int {
	return t.listMultiplier
}

// Weight resolves the cost of (parent, field). Lookup order: exact
// "parent.field", wildcard "field", then the structural default
// (boosted for collection-shaped names).
func (t *WeightTable) Weight(parentType, field string) int {
	if w, ok := t.weights[parentType+"."+field]; ok {
		return w
	}
	if w, ok := t.weights[field]; ok {
		return w
	}
	if looksLikeList(field) {
		return t.defaultWeight * t.listMultiplier
	}
	return t.defaultWeight
}

// looksLikeList guesses whether a field name suggests a collection
// result: a plural noun or a list-style prefix.
func looksLikeList(field string) bool {
	lower := strings.ToLower(field)
	for _, prefix := range []string{"all", "list", "search", "top"} {
		if strings.HasPrefix(lower, prefix) && len(lower) > len(prefix) {
			return true
		}
	}
	return strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss")
}
