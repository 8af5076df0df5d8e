package analytics

import (
	"sort"
	"strings"

	"github.com/radiusdt/space-analytics/internal/models"
)

// RemoveReservedUser drops the system-generated user with id reservedID.
// An empty reservedID keeps every user.
func RemoveReservedUser(users []models.User, reservedID string) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if reservedID != "" && u.ID == reservedID {
			continue
		}
		out = append(out, u)
	}
	return out
}

// NormalizeName is the key identities are merged on.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ConsolidateUsers merges users whose names match after trimming and
// lower-casing. Groups keep first-seen order; the first record of a group
// sets its type, later ones only contribute their id.
func ConsolidateUsers(users []models.User) []models.ConsolidatedUser {
	index := make(map[string]int, len(users))
	out := make([]models.ConsolidatedUser, 0, len(users))

	for _, u := range users {
		name := NormalizeName(u.Name)
		if i, ok := index[name]; ok {
			out[i].IDs = append(out[i].IDs, u.ID)
			continue
		}
		index[name] = len(out)
		out = append(out, models.ConsolidatedUser{
			IDs:  []string{u.ID},
			Name: name,
			Type: u.Type,
		})
	}
	return out
}

// FormatConsolidatedUsers recapitalizes names for display and sorts them.
// Email-like names (containing '@') only get their first letter upper-cased;
// other names get the first letter of every space-delimited token upper-cased.
func FormatConsolidatedUsers(users []models.ConsolidatedUser) []models.ConsolidatedUser {
	out := make([]models.ConsolidatedUser, 0, len(users))
	for _, u := range users {
		c := cloneUser(u)
		c.Name = DisplayName(u.Name)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DisplayName renders a normalized name for presentation.
func DisplayName(name string) string {
	if strings.Contains(name, "@") {
		return capitalizeFirst(name)
	}
	tokens := strings.Split(name, " ")
	for i, tok := range tokens {
		tokens[i] = capitalizeFirst(tok)
	}
	return strings.Join(tokens, " ")
}

// AttachSelectableValue sets Value to the display name on every identity.
func AttachSelectableValue(users []models.ConsolidatedUser) []models.ConsolidatedUser {
	out := make([]models.ConsolidatedUser, 0, len(users))
	for _, u := range users {
		c := cloneUser(u)
		c.Value = c.Name
		out = append(out, c)
	}
	return out
}

// BuildRoster runs the full identity pipeline: drop the reserved user,
// consolidate, format and attach selectable values.
func BuildRoster(users []models.User, reservedID string) []models.ConsolidatedUser {
	return AttachSelectableValue(FormatConsolidatedUsers(ConsolidateUsers(RemoveReservedUser(users, reservedID))))
}

// ResolveSelection maps selected names onto roster identities, matching on
// the normalized name. Unknown names are ignored; duplicates collapse.
func ResolveSelection(roster []models.ConsolidatedUser, names []string) []models.ConsolidatedUser {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[NormalizeName(n)] = true
	}

	var out []models.ConsolidatedUser
	for _, u := range roster {
		if wanted[NormalizeName(u.Name)] {
			out = append(out, cloneUser(u))
		}
	}
	return out
}

func cloneUser(u models.ConsolidatedUser) models.ConsolidatedUser {
	ids := make([]string, len(u.IDs))
	copy(ids, u.IDs)
	u.IDs = ids
	return u
}
