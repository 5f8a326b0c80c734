// internal/app/system/events/events.go
package events

import (
	"context"
	"time"

	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Event types.
const (
	AssignmentCreated     = "assignment.created"
	AssignmentDeactivated = "assignment.deactivated"
	UsageRecorded         = "usage.recorded"
	UsageCancelled        = "usage.cancelled"
	InvoiceCreated        = "invoice.created"
	InvoicePaid           = "invoice.paid"
)

// Event is the envelope published for every domain change.
type Event struct {
	ID         string           `json:"id"` // ULID, sortable by time
	Type       string           `json:"type"`
	OccurredAt time.Time        `json:"occurredAt"`
	Actor      string           `json:"actor,omitempty"`
	Owner      *models.OwnerRef `json:"owner,omitempty"`
	Data       any              `json:"data,omitempty"`
}

// New builds an event with a fresh id and timestamp.
func New(typ string, owner models.Owner, actor string, data any) Event {
	e := Event{
		ID:         ulid.Make().String(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Data:       data,
	}
	if owner != nil {
		ref := models.RefOf(owner)
		e.Owner = &ref
	}
	return e
}

// Key is the partition/routing key: the owner when present, else the type.
func (e Event) Key() string {
	if e.Owner != nil {
		return string(e.Owner.EntityType) + ":" + e.Owner.EntityID.Hex()
	}
	return e.Type
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// LogPublisher writes events to the log only.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, e Event) error {
	p.Logger.Info("domain event",
		zap.String("event_id", e.ID),
		zap.String("type", e.Type),
		zap.String("key", e.Key()),
		zap.String("actor", e.Actor))
	return nil
}

func (LogPublisher) Close() error { return nil }

// Emitter publishes best-effort: failures are logged and never returned,
// so a broker outage cannot fail a committed allocation.
type Emitter struct {
	pub     Publisher
	logger  *zap.Logger
	timeout time.Duration
}

func NewEmitter(pub Publisher, logger *zap.Logger, timeout time.Duration) *Emitter {
	if pub == nil {
		pub = Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Emitter{pub: pub, logger: logger, timeout: timeout}
}

// Emit publishes e, detached from the request's cancellation.
func (em *Emitter) Emit(ctx context.Context, e Event) {
	if em == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), em.timeout)
	defer cancel()
	if err := em.pub.Publish(ctx, e); err != nil {
		em.logger.Warn("event publish failed",
			zap.Error(err),
			zap.String("event_id", e.ID),
			zap.String("type", e.Type))
	}
}

// Close closes the underlying publisher.
func (em *Emitter) Close() error {
	if em == nil {
		return nil
	}
	return em.pub.Close()
}
