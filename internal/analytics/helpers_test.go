package analytics

import "github.com/radiusdt/space-analytics/internal/models"

func performAction(id, verb, createdAt, user string) models.Action {
	return models.Action{ID: id, Verb: verb, CreatedAt: createdAt, User: user}
}

func composeAction(id, verb, published, actor string) models.Action {
	return models.Action{ID: id, Verb: verb, Published: published, ActorUser: actor, CreatedAt: "1999-01-01T00:00:00Z"}
}

func accessed(id, name, objectType string) models.Action {
	return models.Action{
		ID:        id,
		Verb:      "accessed",
		CreatedAt: "2021-03-01T10:00:00Z",
		Target:    &models.Target{DisplayName: name, ObjectType: objectType},
	}
}

func countsOf(kv ...interface{}) *OrderedMap[int] {
	m := NewOrderedMap[int]()
	for i := 0; i < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1].(int))
	}
	return m
}
