package types

import (
	"fmt"
	"strings"
	"time"
)

// PatternType identifies which mining strategy produced a pattern
type PatternType string

const (
	PatternSequence   PatternType = "sequence"
	PatternTemporal   PatternType = "temporal"
	PatternContextual PatternType = "contextual"
	PatternBehavioral PatternType = "behavioral"
	PatternEnergy     PatternType = "energy"
)

// Condition operators
const (
	OpEquals   = "equals"
	OpGreater  = "greater"
	OpLess     = "less"
	OpContains = "contains"
)

// Condition is a single field/operator/value predicate. All of a
// pattern's conditions must hold for the pattern to match a context.
type Condition struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
}

// SuggestedAction is a typed follow-up a pattern or suggestion proposes
type SuggestedAction struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Pattern is a mined, named finding. Overwritten by the miner on each
// pass; read-only to every other component.
type Pattern struct {
	Key        string            `json:"key"`
	Type       PatternType       `json:"type"`
	Name       string            `json:"name"`
	Conditions []Condition       `json:"conditions"`
	Actions    []SuggestedAction `json:"actions"`
	Frequency  int               `json:"frequency"`
	Confidence float64           `json:"confidence"`
	Support    float64           `json:"support"`
	IsActive   bool              `json:"is_active"`
	MinedAt    time.Time         `json:"mined_at"`
}

// SequenceSeparator joins event-type chains into pattern keys
const SequenceSeparator = "→"

// SequenceKey builds the canonical key for an event-type chain
func SequenceKey(chain []EventType) string {
	parts := make([]string, len(chain))
	for i, t := range chain {
		parts[i] = string(t)
	}
	return strings.Join(parts, SequenceSeparator)
}

// Matches reports whether every condition of the pattern holds against
// the given field resolver.
func (p *Pattern) Matches(resolve func(field string) (interface{}, bool)) bool {
	for _, cond := range p.Conditions {
		actual, ok := resolve(cond.Field)
		if !ok {
			return false
		}
		if !EvaluateCondition(cond, actual) {
			return false
		}
	}
	return true
}

// EvaluateCondition applies a single predicate to an actual value
func EvaluateCondition(cond Condition, actual interface{}) bool {
	switch cond.Operator {
	case OpEquals:
		return looseEqual(actual, cond.Value)
	case OpGreater:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case OpLess:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case OpContains:
		return containsValue(actual, cond.Value)
	}
	return false
}

func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func containsValue(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	case []string:
		for _, s := range h {
			if s == fmt.Sprintf("%v", needle) {
				return true
			}
		}
	case []interface{}:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
	}
	return false
}
