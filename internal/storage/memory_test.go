package storage

import (
	"context"
	"testing"

	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestInMemoryStoreListSpacesReturnsWholeTree(t *testing.T) {
	s := NewInMemoryStore()
	s.SaveSpaces(
		models.Space{ID: "root"},
		models.Space{ID: "a", ParentID: strPtr("root")},
		models.Space{ID: "a1", ParentID: strPtr("a")},
		models.Space{ID: "b", ParentID: strPtr("root")},
		models.Space{ID: "other"},
	)

	for _, id := range []string{"root", "a1"} {
		spaces, err := s.ListSpaces(context.Background(), id)
		require.NoError(t, err)

		ids := make([]string, 0, len(spaces))
		for _, sp := range spaces {
			ids = append(ids, sp.ID)
		}
		require.Equal(t, []string{"root", "a", "a1", "b"}, ids)
	}
}

func TestInMemoryStoreUnknownSpace(t *testing.T) {
	_, err := NewInMemoryStore().ListSpaces(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSpaceNotFound)
}

func TestInMemoryStoreListsAreCopies(t *testing.T) {
	s := NewInMemoryStore()
	s.SaveActions("sp", models.Action{ID: "1", Verb: "accessed"})
	s.SaveUsers("sp", models.User{ID: "u1", Name: "Ann"})

	actions, err := s.ListActions(context.Background(), "sp")
	require.NoError(t, err)
	actions[0].Verb = "changed"

	again, err := s.ListActions(context.Background(), "sp")
	require.NoError(t, err)
	require.Equal(t, "accessed", again[0].Verb)

	users, err := s.ListUsers(context.Background(), "sp")
	require.NoError(t, err)
	require.Equal(t, []models.User{{ID: "u1", Name: "Ann"}}, users)

	empty, err := s.ListActions(context.Background(), "nothing")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestInMemoryStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInMemoryStore().ListActions(ctx, "sp")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAssembleActionNeedsBothCoordinates(t *testing.T) {
	lat, lon := 46.2, 6.1
	name := "Intro"

	var a models.Action
	assembleAction(&a, &lat, nil, &lat, &lon, &name, nil)

	require.Nil(t, a.Geolocation)
	require.Equal(t, &models.ActionContext{Location: &models.Location{Lat: lat, Lon: lon}}, a.Context)
	require.Equal(t, &models.Target{DisplayName: "Intro"}, a.Target)

	geoLat, geoLon, ctxLat, ctxLon, tn, tt := flattenAction(&a)
	require.Nil(t, geoLat)
	require.Nil(t, geoLon)
	require.Equal(t, lat, *ctxLat)
	require.Equal(t, lon, *ctxLon)
	require.Equal(t, "Intro", *tn)
	require.Equal(t, "", *tt)
}
