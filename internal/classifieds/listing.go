package classifieds

import (
	"sort"

	"cms-query-workers/internal/host"
)

// DefaultMaxItems caps a listing when no limit is configured.
const DefaultMaxItems = 12

// Filters narrow a listing. A filter only excludes items that carry the
// filtered field; an ad without a category passes a category filter.
type Filters struct {
	Category     string   `json:"filterCategory,omitempty"`
	Availability string   `json:"filterAvailability,omitempty"`
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
}

func ApplyFilters(items []Summary, f Filters) []Summary {
	out := make([]Summary, 0, len(items))
	for _, it := range items {
		if f.Category != "" && it.Category != "" && it.Category != f.Category {
			continue
		}
		if f.Availability != "" && it.Availability != "" && it.Availability != f.Availability {
			continue
		}
		if it.Price != nil {
			if f.MinPrice != nil && *it.Price < *f.MinPrice {
				continue
			}
			if f.MaxPrice != nil && *it.Price > *f.MaxPrice {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

type SortOrder string

const (
	SortDatePostedAsc  SortOrder = "datePostedAsc"
	SortDatePostedDesc SortOrder = "datePostedDesc"
	SortPriceAsc       SortOrder = "priceAsc"
	SortPriceDesc      SortOrder = "priceDesc"
)

// ParseSortOrder falls back to SortDatePostedDesc for unknown values.
func ParseSortOrder(s string) SortOrder {
	switch o := SortOrder(s); o {
	case SortDatePostedAsc, SortDatePostedDesc, SortPriceAsc, SortPriceDesc:
		return o
	}
	return SortDatePostedDesc
}

// SortItems returns a sorted copy. Items missing the sort field go last
// whatever the direction, and ties keep their input order.
func SortItems(items []Summary, order SortOrder) []Summary {
	sorted := append([]Summary(nil), items...)

	order = ParseSortOrder(string(order))
	byPrice := order == SortPriceAsc || order == SortPriceDesc

	var less func(a, b Summary) bool
	switch order {
	case SortDatePostedAsc:
		less = func(a, b Summary) bool { return a.DatePosted.Before(*b.DatePosted) }
	case SortPriceAsc:
		less = func(a, b Summary) bool { return *a.Price < *b.Price }
	case SortPriceDesc:
		less = func(a, b Summary) bool { return *a.Price > *b.Price }
	default:
		less = func(a, b Summary) bool { return a.DatePosted.After(*b.DatePosted) }
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		aMissing, bMissing := a.DatePosted == nil, b.DatePosted == nil
		if byPrice {
			aMissing, bMissing = a.Price == nil, b.Price == nil
		}
		switch {
		case aMissing:
			return false
		case bMissing:
			return true
		}
		return less(a, b)
	})
	return sorted
}

// Limit returns at most n items; n <= 0 yields an empty slice.
func Limit(items []Summary, n int) []Summary {
	if n <= 0 {
		return []Summary{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

// CacheDependencies lists one dependency per item: its uuid, else its path.
func CacheDependencies(items []Summary) []host.CacheDependency {
	deps := make([]host.CacheDependency, 0, len(items))
	for _, it := range items {
		switch {
		case it.UUID != "":
			deps = append(deps, host.ForUUID(it.UUID))
		case it.Path != "":
			deps = append(deps, host.ForPath(it.Path))
		}
	}
	return deps
}
