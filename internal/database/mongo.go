package database

import (
	"context"
	"fmt"

	"github.com/radiusdt/space-analytics/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDB wraps a MongoDB client bound to one database.
type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
	logger *zap.Logger
}

// NewMongoDB connects to MongoDB and pings the primary.
func NewMongoDB(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", cfg.Database))

	return &MongoDB{
		Client: client,
		DB:     client.Database(cfg.Database),
		logger: logger,
	}, nil
}

// Collection returns a handle to the named collection.
func (db *MongoDB) Collection(name string) *mongo.Collection {
	return db.DB.Collection(name)
}

// Close disconnects the client.
func (db *MongoDB) Close(ctx context.Context) error {
	if db.Client == nil {
		return nil
	}
	db.logger.Info("MongoDB connection closed")
	return db.Client.Disconnect(ctx)
}

// Health checks if MongoDB is reachable.
func (db *MongoDB) Health(ctx context.Context) error {
	return db.Client.Ping(ctx, nil)
}
