package classifiedlist

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cms-query-workers/internal/cache"
	"cms-query-workers/internal/classifieds"
	apperrors "cms-query-workers/internal/common/errors"
	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/host"
	"cms-query-workers/internal/jcrquery"
)

// ==========================
// Test Helper Functions
// ==========================

const folderData = `{"jcr":{"nodeByPath":{"children":{"nodes":[
  {"uuid":"ad-1","path":"/sites/demo/ads/bike","displayName":"City bike","properties":[
    {"name":"price","value":"149.9"},{"name":"priceCurrency","value":"EUR"},
    {"name":"category","value":"sportsGear"},{"name":"availability","value":"in_stock"},
    {"name":"datePosted","value":"2024-05-01T10:00:00.000Z"},{"name":"locationCountry","value":"FR"}]},
  {"uuid":"ad-2","path":"/sites/demo/ads/flat","displayName":"Flat","properties":[
    {"name":"price","value":"900"},{"name":"priceUnit","value":"MONTH"},
    {"name":"category","value":"housing"},
    {"name":"datePosted","value":"2024-06-01T10:00:00.000Z"},{"name":"locationCity","value":"Lyon"}]},
  {"uuid":"ad-3","path":"/sites/demo/ads/lamp","displayName":"Lamp","properties":[
    {"name":"category","value":"housing"},{"name":"condition","value":"usedLikeNew"}]}
]}}}}`

func createTestConfig() *Config {
	return &Config{
		Timeout:         5 * time.Second,
		FetchTimeout:    time.Second,
		CacheTTL:        time.Minute,
		MaxItems:        classifieds.DefaultMaxItems,
		DefaultLanguage: "en",
		DefaultLocale:   "en",
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

type call struct {
	query     string
	variables map[string]any
}

func staticGraphQL(data string, calls *[]call) jcrquery.GraphQLExecutor {
	return func(_ context.Context, query string, variables map[string]any) (*jcrquery.GraphQLResponse, error) {
		*calls = append(*calls, call{query: query, variables: variables})
		return &jcrquery.GraphQLResponse{Data: json.RawMessage(data)}, nil
	}
}

func createTestHandler(t *testing.T, gql jcrquery.GraphQLExecutor, withCache bool) *Handler {
	t.Helper()
	log := createTestLogger(t)
	var store *cache.Store
	if withCache {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		store = cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), log)
	}
	return NewHandler(createTestConfig(), gql, store, log)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Listing(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(folderData, &calls), false)

	output, err := h.Execute(context.Background(), &Input{Folder: "/sites/demo/ads", IncludeFacets: true})

	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, classifieds.AdsByPathQuery, calls[0].query)
	assert.Equal(t, map[string]any{"path": "/sites/demo/ads", "language": "en"}, calls[0].variables)

	assert.Equal(t, classifieds.SortDatePostedDesc, output.Sort)
	assert.Equal(t, 3, output.ItemCount)
	assert.Equal(t, 3, output.MatchCount)
	ids := []string{output.Items[0].ID, output.Items[1].ID, output.Items[2].ID}
	assert.Equal(t, []string{"ad-2", "ad-1", "ad-3"}, ids, "newest first, undated last")

	flat := output.Items[0]
	assert.Regexp(t, `900\.00 /month$`, flat.PriceLabel)
	assert.Equal(t, "Per month", flat.PriceUnitLabel)
	assert.Equal(t, "Jun 1, 2024", flat.DateLabel)

	bike := output.Items[1]
	assert.Equal(t, "sports Gear", bike.CategoryLabel)
	assert.Equal(t, "in stock", bike.AvailabilityLabel)

	lamp := output.Items[2]
	assert.Empty(t, lamp.PriceLabel)
	assert.Equal(t, "used Like New", lamp.ConditionLabel)

	assert.Equal(t, []host.CacheDependency{
		host.ForPath("/sites/demo/ads"),
		host.ForUUID("ad-2"),
		host.ForUUID("ad-1"),
		host.ForUUID("ad-3"),
	}, output.CacheDependencies)

	require.NotNil(t, output.Facets)
	assert.Equal(t, []classifieds.FacetCount{{Value: "housing", Count: 2}, {Value: "sportsGear", Count: 1}}, output.Facets.Categories)
	require.NotNil(t, output.Facets.Price.Max)
	assert.InDelta(t, 900, *output.Facets.Price.Max, 1e-9)
}

func TestHandler_Execute_FiltersSortAndLimit(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(folderData, &calls), false)
	maxPrice := 500.0

	output, err := h.Execute(context.Background(), &Input{
		Folder:   map[string]any{"uuid": "folder-1"},
		Sort:     "priceAsc",
		MaxItems: jcrquery.Int(1),
		Filters:  classifieds.Filters{Category: "housing", MaxPrice: &maxPrice},
	})

	require.NoError(t, err)
	assert.Equal(t, classifieds.AdsByUUIDQuery, calls[0].query)
	assert.Equal(t, "folder-1", calls[0].variables["uuid"])

	// the flat is over budget; the lamp has no price and passes
	assert.Equal(t, 1, output.MatchCount)
	require.Len(t, output.Items, 1)
	assert.Equal(t, "ad-3", output.Items[0].ID)
	assert.Nil(t, output.Facets)
	assert.Equal(t, map[string]string{"filterCategory": "housing", "maxPrice": "500"}, output.FilterLabels)
}

func TestHandler_Execute_NoFolder(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(folderData, &calls), false)

	output, err := h.Execute(context.Background(), &Input{Folder: "  "})

	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Empty(t, output.Items)
	assert.NotNil(t, output.Items)
	assert.Nil(t, output.FilterLabels)
}

func TestHandler_Execute_MissingFolderNode(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(`{"jcr":{"nodeByPath":null}}`, &calls), false)

	output, err := h.Execute(context.Background(), &Input{Folder: "/sites/demo/gone"})

	require.NoError(t, err)
	assert.Zero(t, output.ItemCount)
}

const searchData = `{"jcr":{"nodesByCriteria":{"nodes":[
  {"uuid":"ad-9","path":"/sites/demo/ads/2024/kayak","displayName":"Kayak","properties":[
    {"name":"price","value":"300"},{"name":"category","value":"sportsGear"}]}
]}}}`

func TestHandler_Execute_NodeConstraintSearch(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(searchData, &calls), false)
	constraint := json.RawMessage(`{"property":"category","equals":"sportsGear"}`)

	output, err := h.Execute(context.Background(), &Input{
		Folder:         "/sites/demo/ads",
		Language:       "fr",
		NodeConstraint: constraint,
	})

	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, classifieds.AdsSearchQuery, calls[0].query)
	assert.Equal(t, map[string]any{
		"paths":      []string{"/sites/demo/ads"},
		"constraint": constraint,
		"language":   "fr",
	}, calls[0].variables)

	require.Len(t, output.Items, 1)
	assert.Equal(t, "ad-9", output.Items[0].ID)
	assert.Contains(t, output.CacheDependencies, host.FlushOnPathMatching("/sites/demo/ads/.*"))
}

func TestHandler_Execute_NodeConstraintNeedsPath(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(searchData, &calls), false)

	_, err := h.Execute(context.Background(), &Input{
		Folder:         map[string]any{"uuid": "folder-1"},
		NodeConstraint: json.RawMessage(`{"property":"category","equals":"housing"}`),
	})

	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.FromError(err).Code)
	assert.Empty(t, calls)

	t.Run("null constraint lists the folder", func(t *testing.T) {
		_, err := h.Execute(context.Background(), &Input{
			Folder:         map[string]any{"uuid": "folder-1"},
			NodeConstraint: json.RawMessage(`null`),
		})
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, classifieds.AdsByUUIDQuery, calls[0].query)
	})
}

func TestHandler_Execute_CachesUnfilteredListing(t *testing.T) {
	var calls []call
	h := createTestHandler(t, staticGraphQL(folderData, &calls), true)

	first, err := h.Execute(context.Background(), &Input{Folder: "/sites/demo/ads"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.Execute(context.Background(), &Input{
		Folder:  "/sites/demo/ads",
		Filters: classifieds.Filters{Category: "sportsGear"},
	})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Len(t, calls, 1)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "ad-1", second.Items[0].ID)
	require.NotNil(t, second.Items[0].DatePosted)

	flushed, err := h.cache.FlushUUID(context.Background(), "ad-2")
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	_, err = h.Execute(context.Background(), &Input{Folder: "/sites/demo/ads"})
	require.NoError(t, err)
	assert.Len(t, calls, 2)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name         string
		gql          jcrquery.GraphQLExecutor
		expectedCode apperrors.ErrorCode
	}{
		{
			name: "graphql errors",
			gql: func(context.Context, string, map[string]any) (*jcrquery.GraphQLResponse, error) {
				return &jcrquery.GraphQLResponse{Errors: []json.RawMessage{json.RawMessage(`{"message":"denied"}`)}}, nil
			},
			expectedCode: apperrors.ErrCodeGraphQLError,
		},
		{
			name: "transport failure",
			gql: func(context.Context, string, map[string]any) (*jcrquery.GraphQLResponse, error) {
				return nil, &jcrquery.TransportError{StatusCode: 500, Status: "Internal Server Error"}
			},
			expectedCode: apperrors.ErrCodeTransportError,
		},
		{
			name: "unexpected shape",
			gql: func(context.Context, string, map[string]any) (*jcrquery.GraphQLResponse, error) {
				return &jcrquery.GraphQLResponse{Data: json.RawMessage(`{"jcr":{"nodeByPath":{"children":{"nodes":"x"}}}}`)}, nil
			},
			expectedCode: apperrors.ErrCodeResponseDecoding,
		},
		{
			name: "fetch times out",
			gql: func(ctx context.Context, _ string, _ map[string]any) (*jcrquery.GraphQLResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			expectedCode: apperrors.ErrCodeQueryTimeout,
		},
		{
			name:         "no executor",
			expectedCode: apperrors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.gql, false)
			h.config.FetchTimeout = 20 * time.Millisecond

			output, err := h.Execute(context.Background(), &Input{Folder: "/sites/demo/ads"})

			assert.Nil(t, output)
			require.Error(t, err)
			assert.Equal(t, tt.expectedCode, apperrors.FromError(err).Code)
		})
	}
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"folder":{"path":"/sites/demo/ads"},"maxItems":4,"filters":{"filterCategory":"housing","minPrice":10}}`)
	require.NoError(t, err)
	assert.Equal(t, classifieds.Folder{Path: "/sites/demo/ads"}, classifieds.ResolveFolder(input.Folder))
	assert.Equal(t, 4, *input.MaxItems)
	assert.Equal(t, "housing", input.Filters.Category)

	_, err = parseInput(`{"folder":"/a","maxItems":-1}`)
	assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.FromError(err).Code)

	_, err = parseInput(`{"sort":"priceAsc"}`)
	assert.Error(t, err)
}
