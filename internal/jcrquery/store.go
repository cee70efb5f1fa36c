package jcrquery

import (
	"regexp"
	"sort"
	"strings"
)

// identifierPattern restricts names that end up inside [...] in query text.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:\-]*$`)

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// group holds the deduplicated constraints of one property in insertion order.
type group struct {
	keys  []string
	items map[string]Constraint
}

// Store groups constraints by property. Enumeration order is stable:
// properties in first-insertion order, constraints in insertion order
// within a property. A deleted property that is added again goes last.
//
// A Store is owned by a single caller and is not safe for concurrent use.
// The zero value is ready to use.
type Store struct {
	props   []string
	groups  map[string]*group
	joiners map[string]Joiner
}

// SetConstraintJoiner overrides how constraints under prop are combined.
func (s *Store) SetConstraintJoiner(prop string, joiner Joiner) error {
	if joiner != JoinAnd && joiner != JoinOr {
		return ErrInvalidJoiner
	}
	if s.joiners == nil {
		s.joiners = make(map[string]Joiner)
	}
	s.joiners[prop] = joiner
	return nil
}

// Joiner returns the joiner in effect for prop.
func (s *Store) Joiner(prop string) Joiner {
	if j, ok := s.joiners[prop]; ok {
		return j
	}
	return DefaultJoiner
}

// SetConstraints merges list into the store. An operator outside the
// whitelist stops processing with *InvalidOperatorError; constraints
// before it stay applied. Constraints without values are skipped. IN and
// NOT IN are expanded into one = / <> constraint per value and set the
// property's joiner to OR / AND.
func (s *Store) SetConstraints(list []Constraint) error {
	for _, c := range list {
		op, ok := ParseOperator(string(c.Operator))
		if !ok {
			return &InvalidOperatorError{Operator: string(c.Operator), Prop: c.Prop}
		}
		if !validIdentifier(c.Prop) {
			return &InvalidPropertyError{Prop: c.Prop}
		}
		if len(c.Values) == 0 {
			continue
		}

		if op.isSet() {
			atomic, joiner := OpEqual, JoinOr
			if op == OpNotIn {
				atomic, joiner = OpNotEqual, JoinAnd
			}
			_ = s.SetConstraintJoiner(c.Prop, joiner)
			for _, v := range c.Values {
				s.add(Constraint{Prop: c.Prop, Operator: atomic, Values: []Scalar{v}})
			}
			continue
		}

		c.Operator = op
		s.add(c.clone())
	}
	return nil
}

func (s *Store) add(c Constraint) {
	if s.groups == nil {
		s.groups = make(map[string]*group)
	}
	g, ok := s.groups[c.Prop]
	if !ok {
		g = &group{items: make(map[string]Constraint)}
		s.groups[c.Prop] = g
		s.props = append(s.props, c.Prop)
	}
	k := dedupKey(c)
	if _, dup := g.items[k]; dup {
		return
	}
	g.keys = append(g.keys, k)
	g.items[k] = c
}

// dedupKey is built from the operator and the sorted stringified values, so
// value order does not make two constraints distinct.
func dedupKey(c Constraint) string {
	vals := make([]string, len(c.Values))
	for i, v := range c.Values {
		vals[i] = v.key()
	}
	sort.Strings(vals)
	return string(c.Operator) + "\x00" + strings.Join(vals, "\x1f")
}

// Constraints returns every stored constraint as a flat list.
func (s *Store) Constraints() []Constraint {
	var out []Constraint
	s.each(func(_ string, _ Joiner, cs []Constraint) {
		for _, c := range cs {
			out = append(out, c.clone())
		}
	})
	return out
}

// ConstraintsFor returns the constraints stored under prop.
func (s *Store) ConstraintsFor(prop string) []Constraint {
	g, ok := s.groups[prop]
	if !ok {
		return nil
	}
	out := make([]Constraint, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, g.items[k].clone())
	}
	return out
}

// Len is the number of stored constraints.
func (s *Store) Len() int {
	n := 0
	for _, g := range s.groups {
		n += len(g.keys)
	}
	return n
}

// DeleteConstraints drops prop's group and its joiner override.
func (s *Store) DeleteConstraints(prop string) {
	delete(s.joiners, prop)
	if _, ok := s.groups[prop]; !ok {
		return
	}
	delete(s.groups, prop)
	for i, p := range s.props {
		if p == prop {
			s.props = append(s.props[:i:i], s.props[i+1:]...)
			break
		}
	}
}

// ClearConstraints drops every group and joiner override.
func (s *Store) ClearConstraints() {
	s.props = nil
	s.groups = nil
	s.joiners = nil
}

func (s *Store) each(fn func(prop string, joiner Joiner, cs []Constraint)) {
	for _, prop := range s.props {
		g := s.groups[prop]
		if g == nil || len(g.keys) == 0 {
			continue
		}
		cs := make([]Constraint, len(g.keys))
		for i, k := range g.keys {
			cs[i] = g.items[k]
		}
		fn(prop, s.Joiner(prop), cs)
	}
}
