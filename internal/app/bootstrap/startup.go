// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	auditstore "github.com/dalemusser/courierhub/internal/app/store/audit"
	corporatestore "github.com/dalemusser/courierhub/internal/app/store/corporates"
	guardstore "github.com/dalemusser/courierhub/internal/app/store/guards"
	"github.com/dalemusser/courierhub/internal/app/store/oauthstate"
	officeuserstore "github.com/dalemusser/courierhub/internal/app/store/officeusers"
	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/auditlog"
	"github.com/dalemusser/courierhub/internal/app/system/authutil"
	"github.com/dalemusser/courierhub/internal/app/system/entities"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/courierhub/internal/app/system/tasks"
	"github.com/dalemusser/courierhub/internal/app/system/timeouts"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time initialization after the database is connected and
// indexed, but before the HTTP handler is built. It builds the allocator
// and its collaborators, makes sure an admin can sign in, and starts the
// background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:       appCfg.TimeoutPing,
		Lookup:     appCfg.TimeoutLookup,
		Query:      appCfg.TimeoutQuery,
		Allocation: appCfg.TimeoutAllocation,
		Batch:      appCfg.TimeoutBatch,
	})

	db := deps.MongoDatabase

	pub, err := events.Open(events.Config{
		Backend:      appCfg.EventsBackend,
		KafkaBrokers: appCfg.EventsKafkaBrokers,
		KafkaTopic:   appCfg.EventsKafkaTopic,
		RabbitURL:    appCfg.EventsRabbitURL,
		RabbitQueue:  appCfg.EventsRabbitQueue,
	}, logger)
	if err != nil {
		logger.Error("event publisher init failed", zap.Error(err))
		return err
	}
	emitter := events.NewEmitter(pub, logger, appCfg.EventsPublishTimeout)

	resolver := entities.NewResolver(corporatestore.New(db), officeuserstore.New(db), appCfg.EntityCacheTTL)
	alloc := allocator.New(deps.MongoClient, db, resolver, emitter, allocator.Config{
		MinNumber: appCfg.ConsignmentMinNumber,
		Mode:      appCfg.AllocationMode,
		LeaseTTL:  appCfg.LeaseTTL,
		LeaseWait: appCfg.LeaseWait,
	}, logger)

	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	if err := ensureBootstrapAdmin(ctx, officeuserstore.New(db), appCfg, logger); err != nil {
		logger.Error("bootstrap admin failed", zap.Error(err))
		return err
	}

	jobs := []tasks.Job{
		tasks.OAuthStateCleanupJob(oauthstate.New(db), logger),
		tasks.LeaseReapJob(guardstore.New(db), logger, appCfg.LeaseReapInterval),
	}
	if appCfg.OrphanScanInterval > 0 {
		jobs = append(jobs, tasks.OrphanScanJob(alloc, logger, appCfg.OrphanScanInterval))
	}
	sched := tasks.NewScheduler(logger, jobs...)
	sched.Start()

	*deps.svc = services{
		allocator: alloc,
		emitter:   emitter,
		audit:     audit,
		scheduler: sched,
	}

	logger.Info("allocator ready",
		zap.String("mode", alloc.Mode()),
		zap.Int64("min_number", alloc.MinNumber()),
		zap.String("events_backend", appCfg.EventsBackend))
	return nil
}

// ensureBootstrapAdmin makes sure the configured email belongs to an active
// admin. A missing account is created; an existing one is promoted and
// re-enabled. Nothing happens when no email is configured.
func ensureBootstrapAdmin(ctx context.Context, users *officeuserstore.Store, appCfg AppConfig, logger *zap.Logger) error {
	email := strings.TrimSpace(appCfg.BootstrapAdminEmail)
	if email == "" {
		return nil
	}

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if _, err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return fmt.Errorf("promote bootstrap admin: %w", err)
			}
			logger.Info("promoted bootstrap admin", zap.String("email", email))
		}
		if existing.Status != officeuserstore.StatusActive {
			if _, err := users.SetStatus(ctx, existing.ID, officeuserstore.StatusActive); err != nil {
				return fmt.Errorf("enable bootstrap admin: %w", err)
			}
			logger.Info("re-enabled bootstrap admin", zap.String("email", email))
		}
		return nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	u := models.OfficeUser{
		FullName:   appCfg.BootstrapAdminName,
		Email:      strings.ToLower(email),
		Role:       models.RoleAdmin,
		Status:     officeuserstore.StatusActive,
		AuthMethod: officeuserstore.AuthGoogle,
	}
	if u.FullName == "" {
		u.FullName = "Administrator"
	}
	if appCfg.BootstrapAdminPassword != "" {
		hash, err := authutil.HashPassword(appCfg.BootstrapAdminPassword)
		if err != nil {
			return fmt.Errorf("hash bootstrap admin password: %w", err)
		}
		u.AuthMethod = officeuserstore.AuthPassword
		u.PasswordHash = hash
	}

	if _, err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	logger.Info("created bootstrap admin",
		zap.String("email", u.Email),
		zap.String("auth_method", u.AuthMethod))
	return nil
}
