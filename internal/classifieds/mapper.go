// Package classifieds maps classified-ad content nodes into summaries and
// provides the listing, facet and search helpers built on top of them.
package classifieds

import (
	"strings"
	"time"
)

// PropertyNames is the allow-list of node properties read into a Summary.
// Anything else in a payload is ignored.
var PropertyNames = []string{
	"category",
	"availability",
	"price",
	"priceCurrency",
	"priceUnit",
	"locationCity",
	"locationCountry",
	"featured",
	"datePosted",
	"condition",
	"itemType",
}

var allowedProperties = func() map[string]struct{} {
	m := make(map[string]struct{}, len(PropertyNames))
	for _, name := range PropertyNames {
		m[name] = struct{}{}
	}
	return m
}()

const untitled = "Untitled"

type RawProperty struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type RawRefNode struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

type RawImages struct {
	Values   []any        `json:"values"`
	RefNodes []RawRefNode `json:"refNodes"`
}

// RawNode is one classified ad as returned by the content GraphQL API.
type RawNode struct {
	UUID        string        `json:"uuid"`
	Path        string        `json:"path"`
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName"`
	Properties  []RawProperty `json:"properties"`
	Images      *RawImages    `json:"images"`
}

// Summary is the normalized view of a classified ad.
type Summary struct {
	ID              string     `json:"id"`
	UUID            string     `json:"uuid,omitempty"`
	Path            string     `json:"path,omitempty"`
	Title           string     `json:"title"`
	Price           *float64   `json:"price,omitempty"`
	PriceCurrency   string     `json:"priceCurrency,omitempty"`
	PriceUnit       string     `json:"priceUnit,omitempty"`
	Category        string     `json:"category,omitempty"`
	Availability    string     `json:"availability,omitempty"`
	Condition       string     `json:"condition,omitempty"`
	ItemType        string     `json:"itemType,omitempty"`
	LocationCity    string     `json:"locationCity,omitempty"`
	LocationCountry string     `json:"locationCountry,omitempty"`
	Featured        bool       `json:"featured"`
	DatePosted      *time.Time `json:"datePosted,omitempty"`
	ImageURLs       []string   `json:"imageUrls,omitempty"`
	PrimaryImageURL string     `json:"primaryImageUrl,omitempty"`
}

// MapNodeToSummary returns false when the node has no uuid, path or name
// to identify it by.
func MapNodeToSummary(n RawNode) (Summary, bool) {
	uuid := strings.TrimSpace(n.UUID)
	path := strings.TrimSpace(n.Path)
	id := firstNonEmpty(uuid, path, strings.TrimSpace(n.Name))
	if id == "" {
		return Summary{}, false
	}

	props := make(map[string]any, len(n.Properties))
	for _, p := range n.Properties {
		if _, ok := allowedProperties[p.Name]; ok {
			props[p.Name] = p.Value
		}
	}

	s := Summary{
		ID:    id,
		UUID:  uuid,
		Path:  path,
		Title: firstNonEmpty(strings.TrimSpace(n.DisplayName), strings.TrimSpace(n.Name), untitled),
	}
	if price, ok := ParseNumber(props["price"]); ok {
		s.Price = &price
	}
	s.PriceCurrency = stringProp(props, "priceCurrency")
	s.PriceUnit = stringProp(props, "priceUnit")
	s.Category = stringProp(props, "category")
	s.Availability = stringProp(props, "availability")
	s.Condition = stringProp(props, "condition")
	s.ItemType = stringProp(props, "itemType")
	s.LocationCity = stringProp(props, "locationCity")
	s.LocationCountry = stringProp(props, "locationCountry")
	s.Featured = BoolFrom(props["featured"])
	if t, ok := ToTime(props["datePosted"]); ok {
		s.DatePosted = &t
	}

	s.ImageURLs = imageURLs(n.Images)
	if len(s.ImageURLs) > 0 {
		s.PrimaryImageURL = s.ImageURLs[0]
	}
	return s, true
}

// MapNodes maps every node and drops the ones without identity.
func MapNodes(nodes []RawNode) []Summary {
	out := make([]Summary, 0, len(nodes))
	for _, n := range nodes {
		if s, ok := MapNodeToSummary(n); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringProp(props map[string]any, name string) string {
	s, _ := NonEmptyString(props[name])
	return s
}

// imageURLs takes reference-node URLs first, then raw values, keeping the
// first occurrence of each URL.
func imageURLs(images *RawImages) []string {
	if images == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	for _, ref := range images.RefNodes {
		add(firstNonEmpty(strings.TrimSpace(ref.URL), strings.TrimSpace(ref.Path)))
	}
	for _, v := range images.Values {
		add(resolveImageURL(v))
	}
	return out
}

var imageURLKeys = []string{"url", "downloadUrl", "path", "src", "value", "link", "href"}

func resolveImageURL(v any) string {
	if s, ok := NonEmptyString(v); ok {
		return s
	}
	if m, ok := v.(map[string]any); ok {
		for _, k := range imageURLKeys {
			if s, ok := NonEmptyString(m[k]); ok {
				return s
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
