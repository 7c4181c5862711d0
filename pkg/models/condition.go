// Package models provides condition evaluation for transition guards.
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConditionLogic combines the results of a group's conditions.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

// Operator compares a resolved form value against a condition's value.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorIsEmpty     Operator = "is_empty"
	OperatorIsNotEmpty  Operator = "is_not_empty"
)

// Condition compares one dot-path addressed form value against a constant.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value,omitempty"`
}

// ConditionGroup is a boolean expression over form values. A nil group or a
// group with no conditions is unconditional and evaluates to true.
type ConditionGroup struct {
	Logic      ConditionLogic `json:"logic"`
	Conditions []Condition    `json:"conditions"`
}

// IsTrivial reports whether the group places no constraint on the values.
func (g *ConditionGroup) IsTrivial() bool {
	return g == nil || len(g.Conditions) == 0
}

// Evaluate applies the group against a value bag. It never panics: missing
// fields resolve to nil and every operator degrades to a plain boolean. The
// value bag may be partially filled mid-simulation.
func (g *ConditionGroup) Evaluate(values map[string]any) bool {
	if g.IsTrivial() {
		return true
	}

	if g.Logic == LogicOr {
		for _, condition := range g.Conditions {
			if condition.evaluate(values) {
				return true
			}
		}

		return false
	}

	// AND is the default for unknown logic values.
	for _, condition := range g.Conditions {
		if !condition.evaluate(values) {
			return false
		}
	}

	return true
}

func (c Condition) evaluate(values map[string]any) bool {
	actual := ResolvePath(values, c.Field)

	switch c.Operator {
	case OperatorEquals:
		return looseEquals(actual, c.Value)
	case OperatorNotEquals:
		return !looseEquals(actual, c.Value)
	case OperatorGreaterThan:
		return toNumber(actual) > toNumber(c.Value)
	case OperatorLessThan:
		return toNumber(actual) < toNumber(c.Value)
	case OperatorContains:
		return strings.Contains(toString(actual), toString(c.Value))
	case OperatorIsEmpty:
		return isEmpty(actual)
	case OperatorIsNotEmpty:
		return !isEmpty(actual)
	default:
		// Unknown operators are permissive so a definition authored against
		// a newer operator set still previews instead of dead-ending.
		return true
	}
}

// ResolvePath walks a dot-path into nested map[string]any values. Missing
// intermediate keys or non-map intermediates resolve to nil.
func ResolvePath(values map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = values

	for _, segment := range strings.Split(path, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = asMap[segment]
		if !ok {
			return nil
		}
	}

	return current
}

func looseEquals(a, b any) bool {
	if a == nil && b == nil {
		return true
	}

	return toString(a) == toString(b)
}

func isEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case []string:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}

// toNumber coerces arbitrary values to float64. Anything non-numeric maps
// to NaN, which makes every ordered comparison false.
func toNumber(v any) float64 {
	switch value := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int32:
		return float64(value)
	case int64:
		return float64(value)
	case bool:
		if value {
			return 1
		}

		return 0
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return math.NaN()
		}

		return parsed
	default:
		return math.NaN()
	}
}

func toString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		// Render integral floats without the trailing ".0" JSON decoding
		// would otherwise introduce into comparisons.
		if value == math.Trunc(value) && !math.IsInf(value, 0) {
			return strconv.FormatInt(int64(value), 10)
		}

		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", value)
	}
}
