package jcrquery

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Operator is a comparison operator accepted in constraints.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "<>"
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpLike           Operator = "LIKE"
	OpIn             Operator = "IN"
	OpNotIn          Operator = "NOT IN"
)

var allowedOperators = map[Operator]struct{}{
	OpEqual:          {},
	OpNotEqual:       {},
	OpGreater:        {},
	OpLess:           {},
	OpGreaterOrEqual: {},
	OpLessOrEqual:    {},
	OpLike:           {},
	OpIn:             {},
	OpNotIn:          {},
}

// ParseOperator normalizes s and reports whether it is whitelisted.
// Matching is case-insensitive; "not   in" is read as NOT IN.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.ToUpper(strings.Join(strings.Fields(s), " ")))
	_, ok := allowedOperators[op]
	return op, ok
}

// isSet reports whether op takes a value list (IN, NOT IN).
func (op Operator) isSet() bool {
	return op == OpIn || op == OpNotIn
}

// Joiner combines the constraints stored under one property.
type Joiner string

const (
	JoinAnd Joiner = "AND"
	JoinOr  Joiner = "OR"
)

// DefaultJoiner applies to properties without an override.
const DefaultJoiner = JoinOr

// ParseJoiner is case-insensitive.
func ParseJoiner(s string) (Joiner, bool) {
	switch j := Joiner(strings.ToUpper(strings.TrimSpace(s))); j {
	case JoinAnd, JoinOr:
		return j, true
	}
	return "", false
}

// Constraint is one property-level predicate.
type Constraint struct {
	Prop     string   `json:"prop"`
	Operator Operator `json:"operator"`
	Values   []Scalar `json:"values"`
}

// UnmarshalJSON tolerates malformed value lists: a non-array "values"
// decodes to nil and unsupported elements are dropped, so the store skips
// the constraint instead of failing the whole request.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prop     string          `json:"prop"`
		Operator string          `json:"operator"`
		Values   json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Prop = raw.Prop
	c.Operator = Operator(raw.Operator)
	c.Values = nil

	trimmed := bytes.TrimSpace(raw.Values)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil
	}
	for _, item := range items {
		var s Scalar
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		c.Values = append(c.Values, s)
	}
	return nil
}

func (c Constraint) clone() Constraint {
	c.Values = append([]Scalar(nil), c.Values...)
	return c
}
