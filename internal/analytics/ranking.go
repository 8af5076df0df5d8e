package analytics

import (
	"sort"

	"github.com/radiusdt/space-analytics/internal/models"
)

// CountAccessed counts accessedVerb actions per target display name, keeping
// the category of the first occurrence. With no itemTypes every accessed
// action counts; otherwise the target's object type must be one of them.
// Actions without a target are ignored.
func CountAccessed(actions []models.Action, accessedVerb string, itemTypes ...string) []models.RankedItem {
	var allowed map[string]bool
	if len(itemTypes) > 0 {
		allowed = make(map[string]bool, len(itemTypes))
		for _, t := range itemTypes {
			allowed[t] = true
		}
	}

	index := make(map[string]int)
	var out []models.RankedItem
	for i := range actions {
		a := &actions[i]
		if a.Verb != accessedVerb || a.Target == nil {
			continue
		}
		if allowed != nil && !allowed[a.Target.ObjectType] {
			continue
		}
		if j, ok := index[a.Target.DisplayName]; ok {
			out[j].Count++
			continue
		}
		index[a.Target.DisplayName] = len(out)
		out = append(out, models.RankedItem{
			DisplayName: a.Target.DisplayName,
			Count:       1,
			Category:    a.Target.ObjectType,
		})
	}
	if out == nil {
		out = []models.RankedItem{}
	}
	return out
}

// TopN keeps the n most accessed items and returns them largest-last, the
// order bar charts draw left to right. Ties keep encounter order before the
// reversal.
func TopN(items []models.RankedItem, n int) []models.RankedItem {
	sorted := make([]models.RankedItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })

	if n < 0 {
		n = 0
	}
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	return sorted
}

// DistinctItemTypes lists the object types of accessed targets, first-seen order.
func DistinctItemTypes(actions []models.Action, accessedVerb string) []models.SelectOption {
	seen := make(map[string]bool)
	out := []models.SelectOption{}
	for i := range actions {
		a := &actions[i]
		if a.Verb != accessedVerb || a.Target == nil || seen[a.Target.ObjectType] {
			continue
		}
		seen[a.Target.ObjectType] = true
		out = append(out, models.SelectOption{Name: a.Target.ObjectType, Value: a.Target.ObjectType})
	}
	return out
}
