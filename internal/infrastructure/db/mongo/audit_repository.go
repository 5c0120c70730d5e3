package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

const collectionAudit = "user_audit"

// auditDoc is the stored shape of a domain.AuditEvent.
type auditDoc struct {
	EventID     string    `bson:"event_id"`
	Tenant      string    `bson:"tenant"`
	Action      string    `bson:"action"`
	ActorID     int64     `bson:"actor_id"`
	TargetID    int64     `bson:"target_id"`
	Detail      string    `bson:"detail,omitempty"`
	OccurredAt  time.Time `bson:"occurred_at"`
	ProcessedAt time.Time `bson:"processed_at"`
}

func toAuditDoc(e *domain.AuditEvent, processedAt time.Time) auditDoc {
	return auditDoc{
		EventID:     e.ID,
		Tenant:      e.Tenant,
		Action:      string(e.Action),
		ActorID:     e.ActorID,
		TargetID:    e.TargetID,
		Detail:      e.Detail,
		OccurredAt:  e.OccurredAt.UTC(),
		ProcessedAt: processedAt.UTC(),
	}
}

func (d auditDoc) event() *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:         d.EventID,
		Tenant:     d.Tenant,
		Action:     domain.AuditAction(d.Action),
		ActorID:    d.ActorID,
		TargetID:   d.TargetID,
		Detail:     d.Detail,
		OccurredAt: d.OccurredAt,
	}
}

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col *mongo.Collection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAudit)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

// InsertEvent appends an event to the audit trail. Re-inserting an event
// that is already stored is not an error.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, toAuditDoc(event, time.Now()))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// Recent returns up to limit events of tenant, newest first.
func (r *AuditRepository) Recent(ctx context.Context, tenant string, limit int) ([]*domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"tenant": tenant}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []auditDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]*domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.event())
	}
	return events, nil
}

// EnsureIndexes creates the indexes the audit trail relies on.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "target_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
