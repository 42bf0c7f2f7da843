package calllog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/entities"
	"github.com/voicelinehq/voiceline/domain/repositories"
)

// MongoCallArchive persists ended-call transcripts to a MongoDB collection.
type MongoCallArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// Ensure MongoCallArchive implements the CallArchive interface
var _ repositories.CallArchive = (*MongoCallArchive)(nil)

// NewMongoCallArchive connects to MongoDB and returns an archive writing to
// the call_logs collection. The URI and database name come from the
// environment.
func NewMongoCallArchive(logger *zap.Logger) (*MongoCallArchive, error) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017" // Default for development
	}

	dbName := os.Getenv("MONGODB_DATABASE")
	if dbName == "" {
		dbName = "voiceline"
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB",
		zap.String("database", dbName))

	return &MongoCallArchive{
		client:     client,
		collection: client.Database(dbName).Collection("call_logs"),
		logger:     logger,
	}, nil
}

// Archive stores the ended call's transcript and timing.
func (a *MongoCallArchive) Archive(ctx context.Context, session *entities.CallSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	doc := bson.M{
		"call_id":        session.CallID,
		"correlation_id": session.CorrelationID,
		"from":           session.From,
		"started_at":     session.StartedAt,
		"ended_at":       session.LastActivity,
		"duration_ms":    session.Duration().Milliseconds(),
		"turns":          session.Turns,
		"archived_at":    time.Now(),
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive call %s: %w", session.CallID, err)
	}

	a.logger.Info("archived call transcript",
		zap.String("call_id", session.CallID),
		zap.Int("turns", len(session.Turns)))

	return nil
}

// Close disconnects from MongoDB.
func (a *MongoCallArchive) Close(ctx context.Context) error {
	if err := a.client.Disconnect(ctx); err != nil {
		a.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	return nil
}
