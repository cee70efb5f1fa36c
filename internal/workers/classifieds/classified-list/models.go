package classifiedlist

import (
	"encoding/json"

	"cms-query-workers/internal/classifieds"
	"cms-query-workers/internal/host"
)

type Input struct {
	// Folder is a path, a node identifier or an object with path/uuid keys.
	Folder        any                 `json:"folder"`
	Language      string              `json:"language,omitempty"`
	Locale        string              `json:"locale,omitempty"`
	MaxItems      *int                `json:"maxItems,omitempty"`
	Sort          string              `json:"sort,omitempty"`
	Filters       classifieds.Filters `json:"filters"`
	// NodeConstraint switches to a search of every ad below the folder path
	// matching the GraphQL node constraint.
	NodeConstraint json.RawMessage `json:"nodeConstraint,omitempty"`
	IncludeFacets bool                `json:"includeFacets,omitempty"`
	NoCache       bool                `json:"noCache,omitempty"`
}

// Item is a summary with its display labels.
type Item struct {
	classifieds.Summary
	PriceLabel        string `json:"priceLabel,omitempty"`
	PriceUnitLabel    string `json:"priceUnitLabel,omitempty"`
	DateLabel         string `json:"dateLabel,omitempty"`
	CategoryLabel     string `json:"categoryLabel,omitempty"`
	AvailabilityLabel string `json:"availabilityLabel,omitempty"`
	ConditionLabel    string `json:"conditionLabel,omitempty"`
}

type Output struct {
	Folder            classifieds.Folder     `json:"folder"`
	Items             []Item                 `json:"items"`
	ItemCount         int                    `json:"itemCount"`
	MatchCount        int                    `json:"matchCount"`
	Sort              classifieds.SortOrder  `json:"sort"`
	Facets            *classifieds.Facets    `json:"facets,omitempty"`
	// FilterLabels describes the active filters, keyed like the input filters.
	FilterLabels      map[string]string      `json:"filterLabels,omitempty"`
	CacheDependencies []host.CacheDependency `json:"cacheDependencies"`
	Cached            bool                   `json:"cached"`
}

const InputSchema = `{
  "type": "object",
  "required": ["folder"],
  "properties": {
    "folder": {"type": ["string", "object", "null"]},
    "language": {"type": "string"},
    "locale": {"type": "string"},
    "maxItems": {"type": "integer", "minimum": 0},
    "sort": {"type": "string"},
    "nodeConstraint": {"type": "object"},
    "filters": {
      "type": "object",
      "properties": {
        "filterCategory": {"type": "string"},
        "filterAvailability": {"type": "string"},
        "minPrice": {"type": "number"},
        "maxPrice": {"type": "number"}
      }
    },
    "includeFacets": {"type": "boolean"},
    "noCache": {"type": "boolean"}
  }
}`
