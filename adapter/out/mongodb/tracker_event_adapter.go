package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

const collectionEvents = "application_events"

// EventAdapter implements out.EventRepository using MongoDB.
type EventAdapter struct {
	collection *mongo.Collection
}

// NewEventAdapter creates a new MongoDB event adapter.
func NewEventAdapter(db *mongo.Database) *EventAdapter {
	return &EventAdapter{collection: db.Collection(collectionEvents)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *EventAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "job_application_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
		},
	})
	return err
}

type eventDocument struct {
	ID               string    `bson:"id"`
	UserID           string    `bson:"user_id"`
	JobApplicationID string    `bson:"job_application_id"`
	Type             string    `bson:"type"`
	Source           string    `bson:"source"`
	EmailThreadID    string    `bson:"email_thread_id,omitempty"`
	EmailMessageID   string    `bson:"email_message_id,omitempty"`
	DetectedIntent   string    `bson:"detected_intent,omitempty"`
	FinalIntent      string    `bson:"final_intent,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
}

func (d *eventDocument) toEntity() *domain.ApplicationEvent {
	return &domain.ApplicationEvent{
		ID:               d.ID,
		UserID:           d.UserID,
		JobApplicationID: d.JobApplicationID,
		Type:             domain.JobStatus(d.Type),
		Source:           domain.EventSource(d.Source),
		EmailThreadID:    d.EmailThreadID,
		EmailMessageID:   d.EmailMessageID,
		DetectedIntent:   domain.IntentTag(d.DetectedIntent),
		FinalIntent:      domain.IntentTag(d.FinalIntent),
		CreatedAt:        d.CreatedAt,
	}
}

func (a *EventAdapter) Record(ctx context.Context, ev *domain.ApplicationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	doc := eventDocument{
		ID:               ev.ID,
		UserID:           ev.UserID,
		JobApplicationID: ev.JobApplicationID,
		Type:             string(ev.Type),
		Source:           string(ev.Source),
		EmailThreadID:    ev.EmailThreadID,
		EmailMessageID:   ev.EmailMessageID,
		DetectedIntent:   string(ev.DetectedIntent),
		FinalIntent:      string(ev.FinalIntent),
		CreatedAt:        ev.CreatedAt,
	}
	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func (a *EventAdapter) ListByJob(ctx context.Context, userID, jobID string) ([]*domain.ApplicationEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID, "job_application_id": jobID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	result := make([]*domain.ApplicationEvent, len(docs))
	for i := range docs {
		result[i] = docs[i].toEntity()
	}
	return result, nil
}

var _ out.EventRepository = (*EventAdapter)(nil)
