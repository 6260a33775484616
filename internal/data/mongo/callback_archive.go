// Package mongo provides the MongoDB-backed archive of raw provider
// callbacks. The archive is the audit trail for disputes: reconciliation
// never reads from it, and a write failure never blocks callback processing.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// CallbackCollectionName is the name of the archive collection in MongoDB
	CallbackCollectionName = "callback_archive"
)

// ArchivedCallback is one raw provider delivery as received
type ArchivedCallback struct {
	CorrelationID string    `bson:"correlation_id,omitempty"`
	Payload       string    `bson:"payload"`
	Malformed     bool      `bson:"malformed"`
	ReceivedAt    time.Time `bson:"received_at"`
}

// CallbackArchive stores raw callback payloads
type CallbackArchive interface {
	Archive(ctx context.Context, record *ArchivedCallback) error
	GetByCorrelationID(ctx context.Context, correlationID string) ([]*ArchivedCallback, error)
}

// CallbackArchiveRepository implements CallbackArchive on MongoDB
type CallbackArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewCallbackArchiveRepository creates a new MongoDB callback archive
func NewCallbackArchiveRepository(logger *slog.Logger, db *mongo.Database) CallbackArchive {
	return &CallbackArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Archive stores one raw delivery. Duplicates are expected (the provider
// redelivers) and are archived as separate documents.
func (r *CallbackArchiveRepository) Archive(ctx context.Context, record *ArchivedCallback) error {
	collection := r.db.Collection(CallbackCollectionName)

	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}

	_, err := collection.InsertOne(ctx, record)
	if err != nil {
		r.logger.Error("Failed to archive callback",
			"correlation_id", record.CorrelationID,
			"error", err)
		return fmt.Errorf("failed to archive callback: %w", err)
	}

	return nil
}

// GetByCorrelationID retrieves all archived deliveries for one correlation
// id, oldest first.
func (r *CallbackArchiveRepository) GetByCorrelationID(ctx context.Context, correlationID string) ([]*ArchivedCallback, error) {
	collection := r.db.Collection(CallbackCollectionName)

	filter := bson.M{"correlation_id": correlationID}
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to query callback archive",
			"correlation_id", correlationID,
			"error", err)
		return nil, fmt.Errorf("failed to query callback archive: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*ArchivedCallback
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode archived callbacks: %w", err)
	}

	return records, nil
}
