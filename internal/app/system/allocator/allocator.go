// Package allocator assigns consignment-number ranges to corporates and
// office users and tracks which numbers have been consumed by bookings.
//
// Two invariants are enforced by the store rather than by pre-checks:
// active ranges never overlap (Assign runs its overlap check and insert in
// a serialized section), and an owner records each number at most once
// (a unique index on consignment_usages).
package allocator

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	assignmentstore "github.com/dalemusser/courierhub/internal/app/store/assignments"
	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	counterstore "github.com/dalemusser/courierhub/internal/app/store/counters"
	guardstore "github.com/dalemusser/courierhub/internal/app/store/guards"
	invoicestore "github.com/dalemusser/courierhub/internal/app/store/invoices"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	usagestore "github.com/dalemusser/courierhub/internal/app/store/usages"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultMinNumber is the lowest consignment number that may be assigned.
const DefaultMinNumber int64 = 871026571

// Serialization modes for range assignment.
const (
	ModeAuto        = "auto"        // transaction, falling back to lease when unsupported
	ModeTransaction = "transaction" // transactions only
	ModeLease       = "lease"       // lease lock only
)

// Config tunes the allocator.
type Config struct {
	MinNumber int64
	Mode      string
	LeaseTTL  time.Duration // how long a lease survives a crashed holder
	LeaseWait time.Duration // how long Assign waits for a busy lease
}

func (c Config) withDefaults() Config {
	if c.MinNumber <= 0 {
		c.MinNumber = DefaultMinNumber
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.LeaseWait <= 0 {
		c.LeaseWait = 10 * time.Second
	}
	return c
}

// OwnerChecker reports whether an owner's backing entity exists.
type OwnerChecker interface {
	Exists(ctx context.Context, owner models.Owner) (bool, error)
}

// Service is the consignment number allocator.
type Service struct {
	client *mongo.Client
	cfg    Config
	logger *zap.Logger
	owners OwnerChecker
	events *events.Emitter

	assignments *assignmentstore.Store
	usages      *usagestore.Store
	invoices    *invoicestore.Store
	counters    *counterstore.Store
	guards      *guardstore.Store
	corporates  *corporatestore.Store
	officeUsers *officeuserstore.Store

	// set once a transaction attempt reports the deployment cannot run them
	txnUnsupported atomic.Bool

	now func() time.Time
}

// New builds the allocator over db. em may be nil (events disabled).
func New(client *mongo.Client, db *mongo.Database, owners OwnerChecker, em *events.Emitter, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:      client,
		cfg:         cfg.withDefaults(),
		logger:      logger,
		owners:      owners,
		events:      em,
		assignments: assignmentstore.New(db),
		usages:      usagestore.New(db),
		invoices:    invoicestore.New(db),
		counters:    counterstore.New(db),
		guards:      guardstore.New(db),
		corporates:  corporatestore.New(db),
		officeUsers: officeuserstore.New(db),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MinNumber is the configured floor for assignable numbers.
func (s *Service) MinNumber() int64 { return s.cfg.MinNumber }

// Mode is the configured serialization mode.
func (s *Service) Mode() string { return s.cfg.Mode }

func (s *Service) emit(ctx context.Context, e events.Event) {
	s.events.Emit(ctx, e)
}
