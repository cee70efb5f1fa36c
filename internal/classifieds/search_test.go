package classifieds

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-query-workers/internal/jcrquery"
)

func createSearchBuilder(t *testing.T) *jcrquery.Builder {
	t.Helper()
	b, err := jcrquery.NewBuilder(SearchConfig(jcrquery.WorkspaceLive, "/sites/demo/ads", "search-1", "en", 0))
	require.NoError(t, err)
	return b
}

// ==========================
// Search configuration
// ==========================

func TestSearchConfig(t *testing.T) {
	cfg := SearchConfig(jcrquery.WorkspaceEdit, "/sites/demo", "node-1", "fr", 0)

	assert.Equal(t, NodeType, cfg.Type)
	assert.Equal(t, SearchCriteria, cfg.Criteria)
	assert.Equal(t, jcrquery.SortDesc, cfg.SortDirection)
	assert.Equal(t, "card", cfg.SubNodeView)
	require.NotNil(t, cfg.Limit)
	assert.Equal(t, DefaultResultsPerPage, *cfg.Limit)
	assert.Equal(t, 0, *cfg.Offset)

	assert.Equal(t, 10, *SearchConfig(jcrquery.WorkspaceEdit, "/x", "", "en", 10).Limit)
}

func TestSearchConstraints(t *testing.T) {
	params := map[string][]string{
		"category":     {" cars ", "", "bikes"},
		"condition":    {"  "},
		"availability": {"inStock"},
		"unrelated":    {"x"},
	}

	got := SearchConstraints(params)
	require.Len(t, got, 2)
	assert.Equal(t, "category", got[0].Prop)
	assert.Equal(t, jcrquery.OpIn, got[0].Operator)
	assert.Equal(t, jcrquery.Strings("cars", "bikes"), got[0].Values)
	assert.Equal(t, "availability", got[1].Prop)

	assert.Empty(t, SearchConstraints(nil))
}

func TestPriceRangeFromParams(t *testing.T) {
	minPrice, maxPrice := PriceRangeFromParams(map[string][]string{
		"minPrice": {"10,5", "99"},
		"maxPrice": {"abc"},
	})
	require.NotNil(t, minPrice)
	assert.Equal(t, 10.5, *minPrice)
	assert.Nil(t, maxPrice)
}

// ==========================
// Price commit and facets
// ==========================

func TestApplyPriceRange(t *testing.T) {
	b := createSearchBuilder(t)
	require.NoError(t, b.SetConstraints([]jcrquery.Constraint{
		{Prop: PriceProperty, Operator: jcrquery.OpGreater, Values: []jcrquery.Scalar{jcrquery.Number(1)}},
	}))

	require.NoError(t, ApplyPriceRange(b, float(10), float(50)))

	cs := b.ConstraintsFor(PriceProperty)
	require.Len(t, cs, 2)
	assert.Equal(t, jcrquery.OpGreaterOrEqual, cs[0].Operator)
	assert.Equal(t, []jcrquery.Scalar{jcrquery.Number(10)}, cs[0].Values)
	assert.Equal(t, jcrquery.OpLessOrEqual, cs[1].Operator)
	assert.Equal(t, []jcrquery.Scalar{jcrquery.Number(50)}, cs[1].Values)
	assert.Equal(t, jcrquery.JoinAnd, b.Joiner(PriceProperty))
	assert.Contains(t, b.Build().QueryText, "(content.[price] >= 10 AND content.[price] <= 50)")

	require.NoError(t, ApplyPriceRange(b, nil, nil))
	assert.Empty(t, b.ConstraintsFor(PriceProperty))
	assert.Equal(t, jcrquery.JoinOr, b.Joiner(PriceProperty))
}

func TestApplyFacetValues(t *testing.T) {
	b := createSearchBuilder(t)
	require.NoError(t, ApplyFacetValues(b, "category", []string{"cars", "bikes"}))
	require.NoError(t, ApplyFacetValues(b, "category", []string{"boats"}))

	cs := b.ConstraintsFor("category")
	require.Len(t, cs, 1)
	assert.Equal(t, jcrquery.Strings("boats"), cs[0].Values)

	require.NoError(t, ApplyFacetValues(b, "category", []string{" "}))
	assert.Empty(t, b.Constraints())
}

func TestSelectionsFromConstraints_RoundTrip(t *testing.T) {
	b := createSearchBuilder(t)
	require.NoError(t, b.SetConstraints(SearchConstraints(map[string][]string{
		"category":  {"cars", "bikes"},
		"condition": {"new"},
		"itemType":  {"offer"},
	})))
	require.NoError(t, ApplyPriceRange(b, float(10), nil))

	// through JSON, the way a page hands the list to the form
	raw, err := json.Marshal(b.Constraints())
	require.NoError(t, err)
	var decoded []jcrquery.Constraint
	require.NoError(t, json.Unmarshal(raw, &decoded))

	sel := SelectionsFromConstraints(decoded)
	assert.Equal(t, []string{"cars", "bikes"}, sel.Category)
	assert.Equal(t, []string{"new"}, sel.Condition)
	assert.Equal(t, []string{"offer"}, sel.ItemType)
	assert.Empty(t, sel.Availability)
	require.NotNil(t, sel.MinPrice)
	assert.Equal(t, 10.0, *sel.MinPrice)
	assert.Nil(t, sel.MaxPrice)
}

func TestSelectionsFromConstraints_IgnoresNonNumericPrice(t *testing.T) {
	sel := SelectionsFromConstraints([]jcrquery.Constraint{
		{Prop: PriceProperty, Operator: jcrquery.OpGreaterOrEqual, Values: jcrquery.Strings("10")},
		{Prop: "category", Operator: jcrquery.OpNotEqual, Values: jcrquery.Strings("cars")},
	})
	assert.Nil(t, sel.MinPrice)
	assert.Empty(t, sel.Category)
}

// ==========================
// Folder and documents
// ==========================

type folderNode struct{}

func (folderNode) Identifier() string { return "f-1" }
func (folderNode) Path() string       { return "/sites/demo/ads" }

func TestResolveFolder(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected Folder
	}{
		{"path", " /sites/demo/ads ", Folder{Path: "/sites/demo/ads"}},
		{"identifier", "0f3c-11aa", Folder{UUID: "0f3c-11aa"}},
		{"node", folderNode{}, Folder{Path: "/sites/demo/ads", UUID: "f-1"}},
		{"map with id", map[string]any{"id": "x"}, Folder{UUID: "x"}},
		{"map with both", map[string]any{"path": "/p", "uuid": "u"}, Folder{Path: "/p", UUID: "u"}},
		{"blank", "  ", Folder{}},
		{"nil", nil, Folder{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveFolder(tt.in))
		})
	}
}

func TestAdsQueries(t *testing.T) {
	for _, q := range []string{AdsByPathQuery, AdsByUUIDQuery, AdsSearchQuery} {
		assert.Contains(t, q, `properties(names: ["category","availability","price","priceCurrency","priceUnit","locationCity","locationCountry","featured","datePosted","condition","itemType"])`)
		assert.Contains(t, q, `images: property(name: "images")`)
		assert.Contains(t, q, "displayName(language: $language)")
	}
	assert.Contains(t, AdsByPathQuery, "nodeByPath(path: $path)")
	assert.Contains(t, AdsByUUIDQuery, "nodeById(uuid: $uuid)")
	assert.Contains(t, AdsSearchQuery, "pathType: ANCESTOR")
}

func TestDecodeAds(t *testing.T) {
	nodes, err := DecodeAds(json.RawMessage(`{"jcr":{"nodeById":{"children":{"nodes":[{"uuid":"a"},{"uuid":"b"}]}}}}`))
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, err = DecodeAds(json.RawMessage(`{"jcr":{"nodeByPath":null}}`))
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = DecodeAds(json.RawMessage(`{"jcr":[]}`))
	assert.Error(t, err)
}
