package classifieds

import (
	"strings"

	"cms-query-workers/internal/jcrquery"
)

const (
	// NoResultsUUID identifies the placeholder node returned for an empty search.
	NoResultsUUID = "classified-search-no-results"

	SearchCriteria        = "j:lastPublished"
	SearchSubNodeView     = "card"
	DefaultResultsPerPage = 24

	PriceProperty = "price"
)

// FacetProperties are the request parameters turned into IN constraints.
var FacetProperties = []string{"category", "condition", "itemType", "availability"}

// SearchConfig is the query configuration of a search rooted at startNodePath.
// A non-positive limit falls back to DefaultResultsPerPage.
func SearchConfig(workspace jcrquery.Workspace, startNodePath, uuid, language string, limit int) jcrquery.Config {
	if limit <= 0 {
		limit = DefaultResultsPerPage
	}
	return jcrquery.Config{
		Workspace:     workspace,
		Type:          NodeType,
		StartNodePath: startNodePath,
		Criteria:      SearchCriteria,
		SortDirection: jcrquery.SortDesc,
		UUID:          uuid,
		SubNodeView:   SearchSubNodeView,
		Language:      language,
		Limit:         jcrquery.Int(limit),
		Offset:        jcrquery.Int(0),
	}
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SearchConstraints turns facet request parameters into IN constraints.
// Blank values are dropped, and a facet with no value left is skipped.
func SearchConstraints(params map[string][]string) []jcrquery.Constraint {
	var out []jcrquery.Constraint
	for _, facet := range FacetProperties {
		values := cleanValues(params[facet])
		if len(values) == 0 {
			continue
		}
		out = append(out, jcrquery.Constraint{
			Prop:     facet,
			Operator: jcrquery.OpIn,
			Values:   jcrquery.Strings(values...),
		})
	}
	return out
}

// PriceRangeFromParams reads the first minPrice and maxPrice values.
func PriceRangeFromParams(params map[string][]string) (minPrice, maxPrice *float64) {
	read := func(key string) *float64 {
		values := cleanValues(params[key])
		if len(values) == 0 {
			return nil
		}
		if f, ok := ParseNumber(values[0]); ok {
			return &f
		}
		return nil
	}
	return read("minPrice"), read("maxPrice")
}

// ApplyPriceRange replaces the price constraints with ">= minPrice" and
// "<= maxPrice", joined with AND. Nil bounds are left out.
func ApplyPriceRange(b *jcrquery.Builder, minPrice, maxPrice *float64) error {
	b.DeleteConstraints(PriceProperty)

	var cs []jcrquery.Constraint
	if minPrice != nil {
		cs = append(cs, jcrquery.Constraint{Prop: PriceProperty, Operator: jcrquery.OpGreaterOrEqual, Values: []jcrquery.Scalar{jcrquery.Number(*minPrice)}})
	}
	if maxPrice != nil {
		cs = append(cs, jcrquery.Constraint{Prop: PriceProperty, Operator: jcrquery.OpLessOrEqual, Values: []jcrquery.Scalar{jcrquery.Number(*maxPrice)}})
	}
	if len(cs) == 0 {
		return nil
	}
	if err := b.SetConstraintJoiner(PriceProperty, jcrquery.JoinAnd); err != nil {
		return err
	}
	return b.SetConstraints(cs)
}

// ApplyFacetValues replaces the selection of one facet.
func ApplyFacetValues(b *jcrquery.Builder, facet string, values []string) error {
	b.DeleteConstraints(facet)
	values = cleanValues(values)
	if len(values) == 0 {
		return nil
	}
	return b.SetConstraints([]jcrquery.Constraint{{Prop: facet, Operator: jcrquery.OpIn, Values: jcrquery.Strings(values...)}})
}

// Selections is the search form state recovered from a constraint list.
type Selections struct {
	Category     []string `json:"category"`
	Condition    []string `json:"condition"`
	ItemType     []string `json:"itemType"`
	Availability []string `json:"availability"`
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
}

// SelectionsFromConstraints rehydrates form state. It relies on the
// constraint list being in insertion order, so selected values come back in
// the order they were chosen.
func SelectionsFromConstraints(cs []jcrquery.Constraint) Selections {
	sel := Selections{
		Category:     []string{},
		Condition:    []string{},
		ItemType:     []string{},
		Availability: []string{},
	}
	for _, c := range cs {
		if len(c.Values) == 0 {
			continue
		}
		switch c.Prop {
		case "category":
			sel.Category = appendEqualValues(sel.Category, c)
		case "condition":
			sel.Condition = appendEqualValues(sel.Condition, c)
		case "itemType":
			sel.ItemType = appendEqualValues(sel.ItemType, c)
		case "availability":
			sel.Availability = appendEqualValues(sel.Availability, c)
		case PriceProperty:
			if c.Values[0].Kind() != jcrquery.KindNumber {
				continue
			}
			f := c.Values[0].Value().(float64)
			switch c.Operator {
			case jcrquery.OpGreaterOrEqual:
				sel.MinPrice = &f
			case jcrquery.OpLessOrEqual:
				sel.MaxPrice = &f
			}
		}
	}
	return sel
}

func appendEqualValues(dst []string, c jcrquery.Constraint) []string {
	if c.Operator != jcrquery.OpEqual && c.Operator != jcrquery.OpIn {
		return dst
	}
	for _, v := range c.Values {
		dst = append(dst, v.String())
	}
	return dst
}
