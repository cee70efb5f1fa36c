// Package jcrquery builds structured content queries from a query
// configuration and a set of property constraints, and runs them through a
// GraphQL executor.
package jcrquery

import (
	"fmt"
	"strings"

	"cms-query-workers/internal/host"
)

const (
	contentAlias = "content"

	// CategoryProperty receives the constraint seeded from Config.Categories.
	CategoryProperty = "j:defaultCategory"
)

// BuiltQuery is the query text together with its cache dependency key.
type BuiltQuery struct {
	QueryText       string `json:"jcrQuery"`
	CacheDependency string `json:"cacheDependency"`
}

// Builder owns a Config and a constraint Store.
type Builder struct {
	config          Config
	store           Store
	cacheDependency string
}

// NewBuilder validates cfg and seeds an IN constraint on the category
// property from cfg.Categories. Blank category ids are ignored.
func NewBuilder(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{
		config:          cfg.clone(),
		cacheDependency: cfg.StartNodePath + "/.*",
	}

	var ids []Scalar
	for _, c := range cfg.Categories {
		if id := strings.TrimSpace(c.ID); id != "" {
			ids = append(ids, String(id))
		}
	}
	if len(ids) > 0 {
		if err := b.store.SetConstraints([]Constraint{{Prop: CategoryProperty, Operator: OpIn, Values: ids}}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Config returns a copy of the builder's configuration.
func (b *Builder) Config() Config {
	return b.config.clone()
}

func (b *Builder) SetConstraintJoiner(prop string, joiner Joiner) error {
	return b.store.SetConstraintJoiner(prop, joiner)
}

func (b *Builder) SetConstraints(list []Constraint) error {
	return b.store.SetConstraints(list)
}

func (b *Builder) Constraints() []Constraint {
	return b.store.Constraints()
}

func (b *Builder) ConstraintsFor(prop string) []Constraint {
	return b.store.ConstraintsFor(prop)
}

func (b *Builder) Joiner(prop string) Joiner {
	return b.store.Joiner(prop)
}

func (b *Builder) DeleteConstraints(prop string) {
	b.store.DeleteConstraints(prop)
}

func (b *Builder) ClearConstraints() {
	b.store.ClearConstraints()
}

// CacheDependency is the flush pattern covering everything under the start path.
func (b *Builder) CacheDependency() host.CacheDependency {
	return host.FlushOnPathMatching(b.cacheDependency)
}

// Build renders the query. It has no side effects; calling it twice without
// mutating the builder yields identical results.
//
// Empty exclusion and constraint clauses leave their separating space in
// place, so an unfiltered query reads "ISDESCENDANTNODE('/x')  ORDER BY".
func (b *Builder) Build() BuiltQuery {
	var filters []string
	if excl := b.exclusionClause(); excl != "" {
		filters = append(filters, excl)
	}
	if cons := b.constraintClause(); cons != "" {
		filters = append(filters, cons)
	}
	filter := ""
	if len(filters) > 0 {
		filter = "AND " + strings.Join(filters, " AND ")
	}

	q := fmt.Sprintf("SELECT * FROM [%s] AS %s WHERE ISDESCENDANTNODE('%s') %s ORDER BY %s.[%s] %s",
		b.config.Type,
		contentAlias,
		escape(b.config.StartNodePath),
		filter,
		contentAlias,
		b.config.Criteria,
		strings.ToUpper(string(b.config.SortDirection)),
	)
	return BuiltQuery{QueryText: q, CacheDependency: b.cacheDependency}
}

func (b *Builder) exclusionClause() string {
	if len(b.config.ExcludeNodes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.config.ExcludeNodes))
	for _, n := range b.config.ExcludeNodes {
		ids := []string{fmt.Sprintf("%s.[jcr:uuid] <> '%s'", contentAlias, escape(n.ID))}
		if n.TranslationID != "" {
			ids = append(ids, fmt.Sprintf("%s.[jcr:uuid] <> '%s'", contentAlias, escape(n.TranslationID)))
		}
		parts = append(parts, "("+strings.Join(ids, " AND ")+")")
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (b *Builder) constraintClause() string {
	var groups []string
	b.store.each(func(prop string, joiner Joiner, cs []Constraint) {
		clauses := make([]string, 0, len(cs))
		for _, c := range cs {
			if clause := renderConstraint(prop, c); clause != "" {
				clauses = append(clauses, clause)
			}
		}
		if len(clauses) > 0 {
			groups = append(groups, "("+strings.Join(clauses, " "+string(joiner)+" ")+")")
		}
	})
	return strings.Join(groups, " AND ")
}

func renderConstraint(prop string, c Constraint) string {
	if len(c.Values) == 0 {
		return ""
	}
	field := fmt.Sprintf("%s.[%s]", contentAlias, prop)

	if c.Operator.isSet() {
		lits := make([]string, len(c.Values))
		for i, v := range c.Values {
			lits[i] = v.Literal()
		}
		return fmt.Sprintf("%s %s (%s)", field, c.Operator, strings.Join(lits, ", "))
	}
	if len(c.Values) == 1 {
		return fmt.Sprintf("%s %s %s", field, c.Operator, c.Values[0].Literal())
	}
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = fmt.Sprintf("%s %s %s", field, c.Operator, v.Literal())
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// ExcludeNodes builds exclusions for host nodes, resolving each node's
// translation in language when lookup is not nil.
func ExcludeNodes(nodes []host.NodeIdentity, lookup host.TranslationLookup, language string) []ExcludedNode {
	out := make([]ExcludedNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || n.Identifier() == "" {
			continue
		}
		ex := ExcludedNode{ID: n.Identifier()}
		if lookup != nil {
			if tid, ok := lookup.TranslationID(ex.ID, language); ok && tid != ex.ID {
				ex.TranslationID = tid
			}
		}
		out = append(out, ex)
	}
	return out
}
