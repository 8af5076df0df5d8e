package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/space-analytics/internal/models"
)

// PostgresStore implements ActionStore, UserStore and SpaceStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the tables PostgresStore reads. Timestamps are TEXT: bucketing
// works on the literal ISO8601 string as recorded.
const Schema = `
CREATE TABLE IF NOT EXISTS spaces (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL DEFAULT '',
	parent_id TEXT,
	root_id   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS spaces_root_idx ON spaces (root_id);

CREATE TABLE IF NOT EXISTS space_users (
	space_id TEXT NOT NULL,
	id       TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	type     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (space_id, id)
);

CREATE TABLE IF NOT EXISTS actions (
	id                  TEXT PRIMARY KEY,
	space_id            TEXT NOT NULL,
	verb                TEXT NOT NULL,
	created_at          TEXT NOT NULL DEFAULT '',
	published           TEXT NOT NULL DEFAULT '',
	user_id             TEXT NOT NULL DEFAULT '',
	actor_user          TEXT NOT NULL DEFAULT '',
	ip                  TEXT NOT NULL DEFAULT '',
	geo_lat             DOUBLE PRECISION,
	geo_lon             DOUBLE PRECISION,
	ctx_lat             DOUBLE PRECISION,
	ctx_lon             DOUBLE PRECISION,
	target_display_name TEXT,
	target_object_type  TEXT
);
CREATE INDEX IF NOT EXISTS actions_space_idx ON actions (space_id, created_at);
`

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActions(ctx context.Context, spaceID string) ([]models.Action, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, verb, created_at, published, user_id, actor_user, ip,
		       geo_lat, geo_lon, ctx_lat, ctx_lon, target_display_name, target_object_type
		FROM actions WHERE space_id = $1 ORDER BY created_at
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
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
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	return actions, nil
}

// SaveActions inserts actions for a space, ignoring ids already present.
func (s *PostgresStore) SaveActions(ctx context.Context, spaceID string, actions []models.Action) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range actions {
		a := &actions[i]
		geoLat, geoLon, ctxLat, ctxLon, targetName, targetType := flattenAction(a)
		batch.Queue(`
			INSERT INTO actions (id, space_id, verb, created_at, published, user_id, actor_user, ip,
				geo_lat, geo_lon, ctx_lat, ctx_lon, target_display_name, target_object_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING
		`, a.ID, spaceID, a.Verb, a.CreatedAt, a.Published, a.User, a.ActorUser, a.IP,
			geoLat, geoLon, ctxLat, ctxLon, targetName, targetType)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save actions: %w", err)
	}
	return nil
}

// SaveUsers upserts the users of a space.
func (s *PostgresStore) SaveUsers(ctx context.Context, spaceID string, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(`
			INSERT INTO space_users (space_id, id, name, type) VALUES ($1, $2, $3, $4)
			ON CONFLICT (space_id, id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type
		`, spaceID, u.ID, u.Name, u.Type)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

// SaveSpaces upserts spaces. root_id is derived from the given spaces, so a
// tree should be saved in one call.
func (s *PostgresStore) SaveSpaces(ctx context.Context, spaces []models.Space) error {
	if len(spaces) == 0 {
		return nil
	}
	roots := RootIDs(spaces)
	batch := &pgx.Batch{}
	for _, sp := range spaces {
		batch.Queue(`
			INSERT INTO spaces (id, name, parent_id, root_id) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id, root_id = EXCLUDED.root_id
		`, sp.ID, sp.Name, sp.ParentID, roots[sp.ID])
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save spaces: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, spaceID string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type FROM space_users WHERE space_id = $1 ORDER BY id
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Type); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) ListSpaces(ctx context.Context, spaceID string) ([]models.Space, error) {
	var rootID string
	err := s.pool.QueryRow(ctx, `SELECT root_id FROM spaces WHERE id = $1`, spaceID).Scan(&rootID)
	if err == pgx.ErrNoRows {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, parent_id FROM spaces WHERE root_id = $1 ORDER BY id
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []models.Space
	for rows.Next() {
		var sp models.Space
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	return spaces, nil
}

// assembleAction rebuilds the nested optional parts of an action from
// nullable columns. A location needs both coordinates.
func assembleAction(a *models.Action, geoLat, geoLon, ctxLat, ctxLon *float64, targetName, targetType *string) {
	if geoLat != nil && geoLon != nil {
		a.Geolocation = &models.Geolocation{LL: [2]float64{*geoLat, *geoLon}}
	}
	if ctxLat != nil && ctxLon != nil {
		a.Context = &models.ActionContext{Location: &models.Location{Lat: *ctxLat, Lon: *ctxLon}}
	}
	if targetName != nil || targetType != nil {
		a.Target = &models.Target{DisplayName: deref(targetName), ObjectType: deref(targetType)}
	}
}

func flattenAction(a *models.Action) (geoLat, geoLon, ctxLat, ctxLon *float64, targetName, targetType *string) {
	if a.Geolocation != nil {
		geoLat, geoLon = &a.Geolocation.LL[0], &a.Geolocation.LL[1]
	}
	if a.Context != nil && a.Context.Location != nil {
		ctxLat, ctxLon = &a.Context.Location.Lat, &a.Context.Location.Lon
	}
	if a.Target != nil {
		targetName, targetType = &a.Target.DisplayName, &a.Target.ObjectType
	}
	return
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
