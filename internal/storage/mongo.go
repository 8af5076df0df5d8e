package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/radiusdt/space-analytics/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names read by MongoStore. Action and user documents carry a
// spaceId field; space documents carry rootId. A user document's _id is
// "<spaceId>:<userId>" since one user can belong to several spaces.
const (
	ActionsCollection = "actions"
	UsersCollection   = "users"
	SpacesCollection  = "spaces"
)

// MongoStore implements ActionStore, UserStore and SpaceStore using MongoDB.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) ListActions(ctx context.Context, spaceID string) ([]models.Action, error) {
	cursor, err := s.db.Collection(ActionsCollection).Find(ctx,
		bson.M{"spaceId": spaceID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}

	var actions []models.Action
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	return actions, nil
}

type actionDoc struct {
	models.Action `bson:",inline"`
	SpaceID       string `bson:"spaceId"`
}

type userDoc struct {
	DocID   string `bson:"_id"`
	SpaceID string `bson:"spaceId"`
	UserID  string `bson:"userId"`
	Name    string `bson:"name"`
	Type    string `bson:"type"`
}

type spaceDoc struct {
	models.Space `bson:",inline"`
	RootID       string `bson:"rootId"`
}

func (s *MongoStore) ListUsers(ctx context.Context, spaceID string) ([]models.User, error) {
	cursor, err := s.db.Collection(UsersCollection).Find(ctx, bson.M{"spaceId": spaceID},
		options.Find().SetSort(bson.D{{Key: "userId", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, models.User{ID: d.UserID, Name: d.Name, Type: d.Type})
	}
	return users, nil
}

func (s *MongoStore) ListSpaces(ctx context.Context, spaceID string) ([]models.Space, error) {
	coll := s.db.Collection(SpacesCollection)

	var member struct {
		RootID string `bson:"rootId"`
	}
	err := coll.FindOne(ctx, bson.M{"_id": spaceID}).Decode(&member)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	cursor, err := coll.Find(ctx, bson.M{"rootId": member.RootID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	var spaces []models.Space
	if err := cursor.All(ctx, &spaces); err != nil {
		return nil, fmt.Errorf("failed to decode spaces: %w", err)
	}
	return spaces, nil
}

// SaveActions upserts the actions of a space.
func (s *MongoStore) SaveActions(ctx context.Context, spaceID string, actions []models.Action) error {
	writes := make([]mongo.WriteModel, 0, len(actions))
	for _, a := range actions {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": a.ID}).
			SetReplacement(actionDoc{Action: a, SpaceID: spaceID}).
			SetUpsert(true))
	}
	if err := s.bulk(ctx, ActionsCollection, writes); err != nil {
		return fmt.Errorf("failed to save actions: %w", err)
	}
	return nil
}

// SaveUsers upserts the users of a space.
func (s *MongoStore) SaveUsers(ctx context.Context, spaceID string, users []models.User) error {
	writes := make([]mongo.WriteModel, 0, len(users))
	for _, u := range users {
		id := spaceID + ":" + u.ID
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(userDoc{DocID: id, SpaceID: spaceID, UserID: u.ID, Name: u.Name, Type: u.Type}).
			SetUpsert(true))
	}
	if err := s.bulk(ctx, UsersCollection, writes); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

// SaveSpaces upserts spaces with their rootId. A tree should be saved in one call.
func (s *MongoStore) SaveSpaces(ctx context.Context, spaces []models.Space) error {
	roots := RootIDs(spaces)
	writes := make([]mongo.WriteModel, 0, len(spaces))
	for _, sp := range spaces {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": sp.ID}).
			SetReplacement(spaceDoc{Space: sp, RootID: roots[sp.ID]}).
			SetUpsert(true))
	}
	if err := s.bulk(ctx, SpacesCollection, writes); err != nil {
		return fmt.Errorf("failed to save spaces: %w", err)
	}
	return nil
}

func (s *MongoStore) bulk(ctx context.Context, collection string, writes []mongo.WriteModel) error {
	if len(writes) == 0 {
		return nil
	}
	_, err := s.db.Collection(collection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}
