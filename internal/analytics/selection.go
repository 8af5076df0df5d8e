package analytics

import "github.com/radiusdt/space-analytics/internal/models"

// FilterByUsers keeps actions whose view-mode user id belongs to one of the
// selected identities.
//
// A nil or empty selection, or one as large as the whole roster, means "show
// everything": the batch comes back unfiltered and applied is false. Actions
// by users missing from the roster (deleted accounts) stay visible that way.
func FilterByUsers(actions []models.Action, selected []models.ConsolidatedUser, rosterSize int, mode models.ViewMode) (filtered []models.Action, applied bool) {
	if len(selected) == 0 || len(selected) == rosterSize {
		out := make([]models.Action, len(actions))
		copy(out, actions)
		return out, false
	}

	ids := make(map[string]bool)
	for _, u := range selected {
		for _, id := range u.IDs {
			ids[id] = true
		}
	}

	out := make([]models.Action, 0, len(actions))
	for _, a := range actions {
		if ids[a.UserID(mode)] {
			out = append(out, a)
		}
	}
	return out, true
}
