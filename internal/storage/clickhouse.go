package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/radiusdt/space-analytics/internal/models"
)

// ClickHouseSchema creates the actions table ClickHouseActionStore reads.
const ClickHouseSchema = `
CREATE TABLE IF NOT EXISTS actions (
	id                  String,
	space_id            String,
	verb                LowCardinality(String),
	created_at          String,
	published           String,
	user_id             String,
	actor_user          String,
	ip                  String,
	geo_lat             Nullable(Float64),
	geo_lon             Nullable(Float64),
	ctx_lat             Nullable(Float64),
	ctx_lon             Nullable(Float64),
	target_display_name Nullable(String),
	target_object_type  Nullable(String)
) ENGINE = ReplacingMergeTree ORDER BY (space_id, created_at, id)
`

// ClickHouseActionStore implements ActionStore over a ClickHouse actions table.
// Users and spaces stay in the relational or document backend.
type ClickHouseActionStore struct {
	conn clickhouse.Conn
}

func NewClickHouseActionStore(conn clickhouse.Conn) *ClickHouseActionStore {
	return &ClickHouseActionStore{conn: conn}
}

// Migrate applies ClickHouseSchema.
func (s *ClickHouseActionStore) Migrate(ctx context.Context) error {
	if err := s.conn.Exec(ctx, ClickHouseSchema); err != nil {
		return fmt.Errorf("failed to migrate clickhouse schema: %w", err)
	}
	return nil
}

func (s *ClickHouseActionStore) ListActions(ctx context.Context, spaceID string) ([]models.Action, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, verb, created_at, published, user_id, actor_user, ip,
		       geo_lat, geo_lon, ctx_lat, ctx_lon, target_display_name, target_object_type
		FROM actions FINAL WHERE space_id = ? ORDER BY created_at
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var (
			a                      models.Action
			geoLat, geoLon         *float64
			ctxLat, ctxLon         *float64
			targetName, targetType *string
		)
		if err := rows.Scan(&a.ID, &a.Verb, &a.CreatedAt, &a.Published, &a.User, &a.ActorUser, &a.IP,
			&geoLat, &geoLon, &ctxLat, &ctxLon, &targetName, &targetType); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		assembleAction(&a, geoLat, geoLon, ctxLat, ctxLon, targetName, targetType)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error while listing actions: %w", err)
	}
	return actions, nil
}

// SaveActions writes actions for a space in one batch. Rows sharing an id
// collapse on merge; reads use FINAL so duplicates never surface.
func (s *ClickHouseActionStore) SaveActions(ctx context.Context, spaceID string, actions []models.Action) error {
	if len(actions) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO actions (
			id, space_id, verb, created_at, published, user_id, actor_user, ip,
			geo_lat, geo_lon, ctx_lat, ctx_lon, target_display_name, target_object_type
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for i := range actions {
		a := &actions[i]
		geoLat, geoLon, ctxLat, ctxLon, targetName, targetType := flattenAction(a)
		if err := batch.Append(a.ID, spaceID, a.Verb, a.CreatedAt, a.Published, a.User, a.ActorUser, a.IP,
			geoLat, geoLon, ctxLat, ctxLon, targetName, targetType); err != nil {
			return fmt.Errorf("failed to append action %s: %w", a.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
