package analytics

import (
	"testing"

	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/stretchr/testify/require"
)

func selectionFixture() ([]models.Action, []models.ConsolidatedUser) {
	actions := []models.Action{
		performAction("1", "v", "2021-01-01T00:00:00Z", "u1"),
		performAction("2", "v", "2021-01-01T00:00:00Z", "u2"),
		performAction("3", "v", "2021-01-01T00:00:00Z", "u3"),
		performAction("4", "v", "2021-01-01T00:00:00Z", "deleted"),
	}
	roster := []models.ConsolidatedUser{
		{IDs: []string{"u1", "u3"}, Name: "Ann", Value: "Ann"},
		{IDs: []string{"u2"}, Name: "Bob", Value: "Bob"},
	}
	return actions, roster
}

func TestFilterByUsersNoSelectionReturnsEverything(t *testing.T) {
	actions, roster := selectionFixture()

	for name, selected := range map[string][]models.ConsolidatedUser{
		"nil":   nil,
		"empty": {},
		"full":  roster,
	} {
		t.Run(name, func(t *testing.T) {
			got, applied := FilterByUsers(actions, selected, len(roster), models.ViewPerform)
			require.False(t, applied)
			require.Equal(t, actions, got)
		})
	}
}

func TestFilterByUsersSubset(t *testing.T) {
	actions, roster := selectionFixture()

	got, applied := FilterByUsers(actions, roster[:1], len(roster), models.ViewPerform)

	require.True(t, applied)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ID)
	require.Equal(t, "3", got[1].ID)
}

func TestFilterByUsersComposeReadsActorUser(t *testing.T) {
	actions := []models.Action{
		composeAction("1", "v", "2021-01-01T00:00:00Z", "u2"),
		{ID: "2", User: "u2", ActorUser: "u1"},
	}
	roster := []models.ConsolidatedUser{{IDs: []string{"u1"}}, {IDs: []string{"u2"}}, {IDs: []string{"u3"}}}

	got, applied := FilterByUsers(actions, roster[1:2], len(roster), models.ViewCompose)

	require.True(t, applied)
	require.Len(t, got, 1)
	require.Equal(t, "1", got[0].ID)
}

func TestFilterByUsersEmptyResultIsNotNoop(t *testing.T) {
	actions, _ := selectionFixture()
	roster := []models.ConsolidatedUser{{IDs: []string{"x"}}, {IDs: []string{"y"}}}

	got, applied := FilterByUsers(actions, roster[:1], len(roster), models.ViewPerform)

	require.True(t, applied)
	require.Empty(t, got)
}
