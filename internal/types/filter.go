package types

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FilterState is the set of active predicates narrowing the directory.
// It round-trips through the query string so filtered views stay shareable:
// ParseFilterQuery(fs.Encode()) must reproduce fs.
type FilterState struct {
	State      string `json:"state,omitempty"`
	City       string `json:"city,omitempty"`
	County     string `json:"county,omitempty"`
	FeatureIDs []int  `json:"feature_ids,omitempty"`
	Search     string `json:"search,omitempty"`
}

// IsEmpty reports whether no predicate is active.
func (f FilterState) IsEmpty() bool {
	return f.State == "" && f.City == "" && f.County == "" &&
		len(f.FeatureIDs) == 0 && f.Search == ""
}

// Normalize trims whitespace, uppercases the state code and sorts/dedups
// the feature set so that equal filters serialize identically.
func (f FilterState) Normalize() FilterState {
	out := FilterState{
		State:  strings.ToUpper(strings.TrimSpace(f.State)),
		City:   strings.TrimSpace(f.City),
		County: strings.TrimSpace(f.County),
		Search: strings.TrimSpace(f.Search),
	}
	if len(f.FeatureIDs) > 0 {
		seen := make(map[int]bool, len(f.FeatureIDs))
		for _, id := range f.FeatureIDs {
			if id > 0 && !seen[id] {
				seen[id] = true
				out.FeatureIDs = append(out.FeatureIDs, id)
			}
		}
		sort.Ints(out.FeatureIDs)
	}
	return out
}

// ParseFilterQuery derives a normalized FilterState from query parameters.
// Unknown parameters are ignored; malformed feature ids are dropped rather
// than rejected.
func ParseFilterQuery(q url.Values) FilterState {
	f := FilterState{
		State:  q.Get("state"),
		City:   q.Get("city"),
		County: q.Get("county"),
		Search: q.Get("search"),
	}
	if raw := q.Get("features"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			f.FeatureIDs = append(f.FeatureIDs, id)
		}
	}
	return f.Normalize()
}

// Query returns the canonical query parameters for the filter.
func (f FilterState) Query() url.Values {
	n := f.Normalize()
	q := url.Values{}
	if n.State != "" {
		q.Set("state", n.State)
	}
	if n.City != "" {
		q.Set("city", n.City)
	}
	if n.County != "" {
		q.Set("county", n.County)
	}
	if len(n.FeatureIDs) > 0 {
		parts := make([]string, len(n.FeatureIDs))
		for i, id := range n.FeatureIDs {
			parts[i] = strconv.Itoa(id)
		}
		q.Set("features", strings.Join(parts, ","))
	}
	if n.Search != "" {
		q.Set("search", n.Search)
	}
	return q
}

// Encode serializes the filter to its canonical query string.
func (f FilterState) Encode() string {
	return f.Query().Encode()
}
