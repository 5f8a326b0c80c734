// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/courierhub/internal/app/store/audit"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for range, usage, invoice and account changes.
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func subject(o models.Owner) (string, *primitive.ObjectID) {
	if o == nil {
		return "", nil
	}
	id := o.ID()
	return string(o.Kind()), &id
}

func hexOf(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.SubjectID != nil {
		fields = append(fields,
			zap.String("subject_type", event.SubjectType),
			zap.String("subject_id", event.SubjectID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(context.WithoutCancel(ctx), event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType, actorID string, subj models.Owner, details map[string]string) {
	st, sid := subject(subj)
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryAdmin,
		EventType:   eventType,
		ActorID:     actorID,
		SubjectType: st,
		SubjectID:   sid,
		IP:          getClientIP(r),
		UserAgent:   userAgent(r),
		Success:     true,
		Details:     details,
	})
}

// --- Authentication Events ---

// LoginSuccess logs a successful login by an office user or corporate.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, who models.Owner, authMethod, email string) {
	st, sid := subject(who)
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryAuth,
		EventType:   audit.EventLoginSuccess,
		ActorID:     hexOf(sid),
		SubjectType: st,
		SubjectID:   sid,
		IP:          getClientIP(r),
		UserAgent:   userAgent(r),
		Success:     true,
		Details: map[string]string{
			"auth_method": authMethod,
			"email":       email,
		},
	})
}

// LoginFailed logs a rejected login. who is nil when no account matched.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, who models.Owner, email, reason string) {
	st, sid := subject(who)
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		SubjectType:   st,
		SubjectID:     sid,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       false,
		FailureReason: reason,
		Details: map[string]string{
			"email": email,
		},
	})
}

// Logout logs a user logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, who models.Owner) {
	st, sid := subject(who)
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryAuth,
		EventType:   audit.EventLogout,
		ActorID:     hexOf(sid),
		SubjectType: st,
		SubjectID:   sid,
		IP:          getClientIP(r),
		UserAgent:   userAgent(r),
		Success:     true,
	})
}

// --- Admin Events ---

// RangeAssigned logs a new consignment range assignment.
func (l *Logger) RangeAssigned(ctx context.Context, r *http.Request, actorID string, a models.ConsignmentAssignment) {
	owner, _ := a.OwnerRef.Owner()
	l.admin(ctx, r, audit.EventRangeAssigned, actorID, owner, map[string]string{
		"assignment_id": a.ID.Hex(),
		"start":         strconv.FormatInt(a.StartNumber, 10),
		"end":           strconv.FormatInt(a.EndNumber, 10),
	})
}

// RangeDeactivated logs a range deactivation.
func (l *Logger) RangeDeactivated(ctx context.Context, r *http.Request, actorID string, a models.ConsignmentAssignment) {
	owner, _ := a.OwnerRef.Owner()
	l.admin(ctx, r, audit.EventRangeDeactivated, actorID, owner, map[string]string{
		"assignment_id": a.ID.Hex(),
		"start":         strconv.FormatInt(a.StartNumber, 10),
		"end":           strconv.FormatInt(a.EndNumber, 10),
	})
}

// UsageCancelled logs a cancelled booking number.
func (l *Logger) UsageCancelled(ctx context.Context, r *http.Request, actorID string, u models.ConsignmentUsage) {
	owner, _ := u.OwnerRef.Owner()
	l.admin(ctx, r, audit.EventUsageCancelled, actorID, owner, map[string]string{
		"usage_id":           u.ID.Hex(),
		"consignment_number": strconv.FormatInt(u.ConsignmentNumber, 10),
	})
}

// InvoiceGenerated logs a new invoice.
func (l *Logger) InvoiceGenerated(ctx context.Context, r *http.Request, actorID string, inv models.Invoice) {
	owner, _ := inv.OwnerRef.Owner()
	l.admin(ctx, r, audit.EventInvoiceGenerated, actorID, owner, map[string]string{
		"invoice_id": inv.ID.Hex(),
		"number":     inv.Number,
		"lines":      strconv.Itoa(len(inv.Lines)),
	})
}

// InvoicePaid logs an invoice settlement.
func (l *Logger) InvoicePaid(ctx context.Context, r *http.Request, actorID string, inv models.Invoice) {
	owner, _ := inv.OwnerRef.Owner()
	l.admin(ctx, r, audit.EventInvoicePaid, actorID, owner, map[string]string{
		"invoice_id": inv.ID.Hex(),
		"number":     inv.Number,
	})
}

// CorporateCreated logs a new corporate account.
func (l *Logger) CorporateCreated(ctx context.Context, r *http.Request, actorID string, c models.Corporate) {
	l.admin(ctx, r, audit.EventCorporateCreated, actorID, c.Owner(), map[string]string{
		"code": c.Code,
	})
}

// CorporateStatusChanged logs a corporate enable/disable.
func (l *Logger) CorporateStatusChanged(ctx context.Context, r *http.Request, actorID string, id primitive.ObjectID, status string) {
	l.admin(ctx, r, audit.EventCorporateStatusChanged, actorID, models.CorporateOwner{CorporateID: id}, map[string]string{
		"status": status,
	})
}

// OfficeUserCreated logs a new office user.
func (l *Logger) OfficeUserCreated(ctx context.Context, r *http.Request, actorID string, u models.OfficeUser) {
	l.admin(ctx, r, audit.EventOfficeUserCreated, actorID, u.Owner(), map[string]string{
		"role": u.Role,
	})
}

// OfficeUserUpdated logs a role or status change on an office user.
func (l *Logger) OfficeUserUpdated(ctx context.Context, r *http.Request, actorID string, id primitive.ObjectID, field, value string) {
	l.admin(ctx, r, audit.EventOfficeUserUpdated, actorID, models.OfficeUserOwner{OfficeUserID: id}, map[string]string{
		field: value,
	})
}
