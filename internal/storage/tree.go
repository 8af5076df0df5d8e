package storage

import "github.com/radiusdt/space-analytics/internal/models"

// RootIDs maps every space id to the id of its tree's root. A dangling or
// cyclic parent makes the highest known ancestor the root, matching
// InMemoryStore.ListSpaces.
func RootIDs(spaces []models.Space) map[string]string {
	byID := make(map[string]models.Space, len(spaces))
	for _, sp := range spaces {
		byID[sp.ID] = sp
	}

	roots := make(map[string]string, len(spaces))
	for _, sp := range spaces {
		cur := sp
		for seen := map[string]bool{cur.ID: true}; cur.ParentID != nil; {
			parent, ok := byID[*cur.ParentID]
			if !ok || seen[parent.ID] {
				break
			}
			seen[parent.ID] = true
			cur = parent
		}
		roots[sp.ID] = cur.ID
	}
	return roots
}
