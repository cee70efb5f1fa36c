package classifieds

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNodesJSON = `[
  {
    "uuid": "ad-1",
    "path": "/sites/demo/ads/bike",
    "name": "bike",
    "displayName": "City bike",
    "properties": [
      {"name": "price", "value": "149,90"},
      {"name": "priceCurrency", "value": "eur"},
      {"name": "priceUnit", "value": "TOTAL"},
      {"name": "category", "value": "sportsGear"},
      {"name": "availability", "value": "in_stock"},
      {"name": "featured", "value": "yes"},
      {"name": "datePosted", "value": "2024-05-01T10:00:00.000Z"},
      {"name": "locationCity", "value": " Lyon "},
      {"name": "sellerEmail", "value": "leak@example.com"}
    ],
    "images": {
      "values": ["/files/bike-2.jpg", {"url": "/files/bike-3.jpg"}, "/files/bike-1.jpg"],
      "refNodes": [
        {"path": "/files/bike-1", "url": "/files/bike-1.jpg"},
        {"path": "/files/bike-4", "url": ""}
      ]
    }
  },
  {
    "path": "/sites/demo/ads/no-uuid",
    "properties": [{"name": "price", "value": "free"}]
  },
  {
    "displayName": "Ghost"
  }
]`

func TestMapNodes(t *testing.T) {
	var raw []RawNode
	require.NoError(t, json.Unmarshal([]byte(sampleNodesJSON), &raw))

	items := MapNodes(raw)
	require.Len(t, items, 2, "node without uuid, path or name is dropped")

	bike := items[0]
	assert.Equal(t, "ad-1", bike.ID)
	assert.Equal(t, "City bike", bike.Title)
	require.NotNil(t, bike.Price)
	assert.InDelta(t, 149.9, *bike.Price, 1e-9)
	assert.Equal(t, "eur", bike.PriceCurrency)
	assert.Equal(t, "TOTAL", bike.PriceUnit)
	assert.Equal(t, "sportsGear", bike.Category)
	assert.Equal(t, "in_stock", bike.Availability)
	assert.Equal(t, "Lyon", bike.LocationCity)
	assert.True(t, bike.Featured)
	require.NotNil(t, bike.DatePosted)
	assert.True(t, bike.DatePosted.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{
		"/files/bike-1.jpg",
		"/files/bike-4",
		"/files/bike-2.jpg",
		"/files/bike-3.jpg",
	}, bike.ImageURLs)
	assert.Equal(t, "/files/bike-1.jpg", bike.PrimaryImageURL)

	noUUID := items[1]
	assert.Equal(t, "/sites/demo/ads/no-uuid", noUUID.ID)
	assert.Empty(t, noUUID.UUID)
	assert.Equal(t, "Untitled", noUUID.Title)
	assert.Nil(t, noUUID.Price)
	assert.False(t, noUUID.Featured)
	assert.Nil(t, noUUID.DatePosted)
	assert.Empty(t, noUUID.PrimaryImageURL)
}

func TestMapNodeToSummary_Identity(t *testing.T) {
	tests := []struct {
		name          string
		node          RawNode
		expectedID    string
		expectedTitle string
		ok            bool
	}{
		{"uuid wins", RawNode{UUID: "u", Path: "/p", Name: "n"}, "u", "n", true},
		{"path next", RawNode{Path: "/p", Name: "n", DisplayName: "Shown"}, "/p", "Shown", true},
		{"name as fallback", RawNode{Name: "n"}, "n", "n", true},
		{"blank identity", RawNode{UUID: "  ", DisplayName: "x"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := MapNodeToSummary(tt.node)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expectedID, s.ID)
			assert.Equal(t, tt.expectedTitle, s.Title)
		})
	}
}

func TestMapNodeToSummary_IgnoresUnknownProperties(t *testing.T) {
	s, ok := MapNodeToSummary(RawNode{
		UUID: "u",
		Properties: []RawProperty{
			{Name: "Category", Value: "wrong-case"},
			{Name: "internalNotes", Value: "secret"},
			{Name: "condition", Value: "usedLikeNew"},
		},
	})

	require.True(t, ok)
	assert.Empty(t, s.Category)
	assert.Equal(t, "usedLikeNew", s.Condition)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}
