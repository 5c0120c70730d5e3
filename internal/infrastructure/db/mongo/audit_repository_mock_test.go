package mongo

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/99minutos/user-management/internal/core/domain"
)

func auditEvent(id string) *domain.AuditEvent {
	return &domain.AuditEvent{
		ID: id, Tenant: "general", Action: domain.AuditUserCreated,
		ActorID: 1, TargetID: 7, OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestAuditRepository_InsertEvent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stores the document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := NewAuditRepository(mt.DB).InsertEvent(context.Background(), auditEvent("ev-1")); err != nil {
			mt.Fatalf("InsertEvent returned error: %v", err)
		}

		started := mt.GetStartedEvent()
		if started == nil || started.CommandName != "insert" {
			mt.Fatalf("expected an insert command, got %+v", started)
		}
		if coll := started.Command.Lookup("insert").StringValue(); coll != collectionAudit {
			mt.Fatalf("expected collection %q, got %q", collectionAudit, coll)
		}
		docs, err := started.Command.Lookup("documents").Array().Values()
		if err != nil || len(docs) != 1 {
			mt.Fatalf("expected one document, got %d (%v)", len(docs), err)
		}
		doc := docs[0].Document()
		if id := doc.Lookup("event_id").StringValue(); id != "ev-1" {
			mt.Fatalf("unexpected event_id %q", id)
		}
		if action := doc.Lookup("action").StringValue(); action != "user_created" {
			mt.Fatalf("unexpected action %q", action)
		}
	})

	mt.Run("duplicate event id is not an error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error collection: user_audit index: event_id_1",
		}))

		if err := NewAuditRepository(mt.DB).InsertEvent(context.Background(), auditEvent("ev-1")); err != nil {
			mt.Fatalf("re-inserting a stored event must be a no-op, got %v", err)
		}
	})

	mt.Run("other write errors are returned", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 121, Message: "Document failed validation",
		}))

		if err := NewAuditRepository(mt.DB).InsertEvent(context.Background(), auditEvent("ev-2")); err == nil {
			mt.Fatal("expected a validation error")
		}
	})
}

func TestAuditRepository_Recent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("filters by tenant newest first", func(mt *mtest.T) {
		newer := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		ns := mt.DB.Name() + "." + collectionAudit
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "event_id", Value: "ev-2"}, {Key: "tenant", Value: "freshcart"},
				{Key: "action", Value: "user_role_changed"}, {Key: "actor_id", Value: int64(3)},
				{Key: "target_id", Value: int64(2)}, {Key: "detail", Value: "from=USER to=MANAGER"},
				{Key: "occurred_at", Value: newer},
			},
			bson.D{
				{Key: "event_id", Value: "ev-1"}, {Key: "tenant", Value: "freshcart"},
				{Key: "action", Value: "user_created"}, {Key: "target_id", Value: int64(2)},
				{Key: "occurred_at", Value: older},
			},
		))

		events, err := NewAuditRepository(mt.DB).Recent(context.Background(), "freshcart", 2)
		if err != nil {
			mt.Fatalf("Recent returned error: %v", err)
		}
		if len(events) != 2 || events[0].ID != "ev-2" || events[1].ID != "ev-1" {
			mt.Fatalf("unexpected events: %+v", events)
		}
		if events[0].Action != domain.AuditUserRoleChanged || events[0].ActorID != 3 || !events[0].OccurredAt.Equal(newer) {
			mt.Fatalf("event not decoded: %+v", events[0])
		}

		cmd := mt.GetStartedEvent().Command
		if tenant := cmd.Lookup("filter", "tenant").StringValue(); tenant != "freshcart" {
			mt.Fatalf("expected tenant filter, got %q", tenant)
		}
		if dir := cmd.Lookup("sort", "occurred_at").AsInt64(); dir != -1 {
			mt.Fatalf("expected occurred_at descending, got %d", dir)
		}
		if limit := cmd.Lookup("limit").AsInt64(); limit != 2 {
			mt.Fatalf("expected limit 2, got %d", limit)
		}
	})

	mt.Run("empty trail", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + collectionAudit
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		events, err := NewAuditRepository(mt.DB).Recent(context.Background(), "general", 10)
		if err != nil {
			mt.Fatalf("Recent returned error: %v", err)
		}
		if len(events) != 0 {
			mt.Fatalf("expected no events, got %+v", events)
		}
	})
}
