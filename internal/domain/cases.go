package domain

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Case describes a power-grid test dataset the grid service can load.
type Case struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var defaultCases = []Case{
	{ID: "case57", Title: "IEEE Case 57"},
	{ID: "case118", Title: "IEEE Case 118"},
	{ID: "case14", Title: "IEEE Case 14"},
}

// DefaultCaseID is preselected by the surfaces.
const DefaultCaseID = "case57"

// DefaultCases returns the built-in catalog in display order.
func DefaultCases() []Case {
	out := make([]Case, len(defaultCases))
	copy(out, defaultCases)
	return out
}

// LookupCase finds a catalog entry by id.
func LookupCase(id string) (Case, bool) {
	id = strings.TrimSpace(id)
	for _, c := range defaultCases {
		if c.ID == id {
			return c, true
		}
	}
	return Case{}, false
}

// SuggestCase returns the catalog id closest to id, or "" when nothing is close
// enough to be a plausible typo.
func SuggestCase(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, c := range defaultCases {
		if c.ID == id {
			return ""
		}
		d := levenshtein.ComputeDistance(id, c.ID)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.ID, d
		}
	}
	if bestDist > 2 {
		return ""
	}
	return best
}
