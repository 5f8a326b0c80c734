package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/courierhub/internal/app/store/audit"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/courierhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, models.OfficeUserOwner{OfficeUserID: primitive.NewObjectID()}, "password", "a@b.c")
	logger.Logout(ctx, req, nil)
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Admin: "off"})
	logger.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true})

	n, err := store.CountByFilter(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no events when config is 'off', got %d", n)
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: "db", Admin: "db"})

	owner := models.CorporateOwner{CorporateID: primitive.NewObjectID()}
	logger.LoginSuccess(ctx, httptest.NewRequest("POST", "/login", nil), owner, "password", "ops@acme.test")

	id := owner.ID()
	events, err := store.Query(ctx, audit.QueryFilter{SubjectType: "corporate", SubjectID: &id})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event in DB, got %d", len(events))
	}
	if events[0].ActorID != id.Hex() {
		t.Errorf("ActorID = %q, want %q", events[0].ActorID, id.Hex())
	}
	if logs.Len() != 0 {
		t.Errorf("expected no zap output in db mode, got %d entries", logs.Len())
	}
}

func TestLogger_Log_ConfigLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: "log", Admin: "log"})

	a := models.ConsignmentAssignment{
		ID:          primitive.NewObjectID(),
		OwnerRef:    models.OwnerRef{EntityType: models.EntityCorporate, EntityID: primitive.NewObjectID()},
		StartNumber: 100,
		EndNumber:   199,
	}
	logger.RangeAssigned(ctx, nil, "admin-1", a)

	n, err := store.CountByFilter(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing in DB for 'log' mode, got %d", n)
	}
	entries := logs.FilterField(zap.String("event_type", audit.EventRangeAssigned)).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 zap entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["detail_start"]; got != "100" {
		t.Errorf("detail_start = %v, want 100", got)
	}
}

func TestLogger_FailedLoginLogsWarn(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: "log"})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.LoginFailed(ctx, httptest.NewRequest("POST", "/login", nil),
		audit.EventLoginFailedUserNotFound, nil, "nobody@x.test", "user not found")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	if logs.All()[0].Level != zap.WarnLevel {
		t.Errorf("level = %v, want warn", logs.All()[0].Level)
	}
}

func TestLogger_AdminEventsPersist(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "all", Admin: "all"})
	ref := models.OwnerRef{EntityType: models.EntityOfficeUser, EntityID: primitive.NewObjectID()}

	logger.UsageCancelled(ctx, nil, "admin-1", models.ConsignmentUsage{ID: primitive.NewObjectID(), OwnerRef: ref, ConsignmentNumber: 42})
	logger.InvoiceGenerated(ctx, nil, "admin-1", models.Invoice{ID: primitive.NewObjectID(), OwnerRef: ref, Number: "INV-000001"})
	logger.InvoicePaid(ctx, nil, "admin-1", models.Invoice{ID: primitive.NewObjectID(), OwnerRef: ref, Number: "INV-000001"})
	logger.OfficeUserUpdated(ctx, nil, "admin-1", ref.EntityID, "role", "admin")

	n, err := store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryAdmin, SubjectID: &ref.EntityID})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 admin events, got %d", n)
	}
}
