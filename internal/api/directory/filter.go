package directory

import (
	"strings"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

// ApplyFilter returns the subset of live bookshops matching every non-empty
// predicate of the filter (AND across dimensions, OR within the feature
// set). It is a pure function: a nil input yields an empty result, and
// filtering its own output with the same state is a no-op.
func ApplyFilter(shops []types.Bookshop, f types.FilterState) []types.Bookshop {
	f = f.Normalize()
	out := make([]types.Bookshop, 0, len(shops))
	for _, s := range shops {
		if !s.Live {
			continue
		}
		if f.State != "" && !strings.EqualFold(s.State, f.State) {
			continue
		}
		if f.City != "" && !strings.EqualFold(s.City, f.City) {
			continue
		}
		if f.County != "" && !strings.EqualFold(s.County, f.County) {
			continue
		}
		if len(f.FeatureIDs) > 0 && !hasAnyFeature(&s, f.FeatureIDs) {
			continue
		}
		if f.Search != "" && !matchesSearch(&s, f.Search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func hasAnyFeature(s *types.Bookshop, ids []int) bool {
	for _, id := range ids {
		if s.HasFeature(id) {
			return true
		}
	}
	return false
}

// matchesSearch checks the free-text query case-insensitively against
// name, city and state substrings.
func matchesSearch(s *types.Bookshop, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.City), q) ||
		strings.Contains(strings.ToLower(s.State), q)
}

// MapPoints extracts the clusterable positions of the given shops. Records
// with malformed or missing coordinates are skipped here but remain in the
// list payload.
func MapPoints(shops []types.Bookshop) []types.GeoPoint {
	pts := make([]types.GeoPoint, 0, len(shops))
	for i := range shops {
		lng, lat, ok := shops[i].Coordinates()
		if !ok {
			continue
		}
		pts = append(pts, types.GeoPoint{ID: shops[i].ID, Lng: lng, Lat: lat})
	}
	return pts
}
