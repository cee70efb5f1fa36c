package classifieds

import "sort"

type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Facets summarise a result set for the search sidebar.
type Facets struct {
	Categories []FacetCount `json:"categories"`
	Countries  []FacetCount `json:"countries"`
	Price      PriceRange   `json:"price"`
}

// ComputeFacets counts categories and locations (country, else city) and
// tracks the price bounds. Counts are sorted by frequency then value.
func ComputeFacets(items []Summary) Facets {
	categories := map[string]int{}
	countries := map[string]int{}
	var price PriceRange

	for _, it := range items {
		if it.Category != "" {
			categories[it.Category]++
		}
		if loc := firstNonEmpty(it.LocationCountry, it.LocationCity); loc != "" {
			countries[loc]++
		}
		if it.Price != nil {
			p := *it.Price
			if price.Min == nil || p < *price.Min {
				price.Min = &p
			}
			if price.Max == nil || p > *price.Max {
				price.Max = &p
			}
		}
	}

	return Facets{
		Categories: sortedCounts(categories),
		Countries:  sortedCounts(countries),
		Price:      price,
	}
}

func sortedCounts(m map[string]int) []FacetCount {
	out := make([]FacetCount, 0, len(m))
	for v, n := range m {
		out = append(out, FacetCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
