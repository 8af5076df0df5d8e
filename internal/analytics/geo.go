package analytics

import "github.com/radiusdt/space-analytics/internal/models"

// ToPointFeatures extracts one point per located action. Perform mode reads
// geolocation.ll ([lat, lon]); compose mode reads context.location. Actions
// without the mode's location are dropped.
func ToPointFeatures(actions []models.Action, mode models.ViewMode) []models.PointFeature {
	out := []models.PointFeature{}
	for i := range actions {
		if p, ok := pointOf(&actions[i], mode); ok {
			out = append(out, p)
		}
	}
	return out
}

func pointOf(a *models.Action, mode models.ViewMode) (models.PointFeature, bool) {
	if mode == models.ViewPerform {
		if a.Geolocation == nil {
			return models.PointFeature{}, false
		}
		return models.PointFeature{ID: a.ID, Lon: a.Geolocation.LL[1], Lat: a.Geolocation.LL[0]}, true
	}
	if a.Context == nil || a.Context.Location == nil {
		return models.PointFeature{}, false
	}
	loc := a.Context.Location
	return models.PointFeature{ID: a.ID, Lon: loc.Lon, Lat: loc.Lat}, true
}
