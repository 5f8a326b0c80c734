// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/courierhub/internal/app/system/allocator"
	"github.com/dalemusser/courierhub/internal/app/system/events"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CourierHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: COURIERHUB_MONGO_URI, COURIERHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "courierhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "courierhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL (used for the Google OAuth callback)"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID (blank disables Google sign-in)"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Login rate limiting
	{Name: "login_ip_limit", Default: 20, Desc: "Login attempts allowed per client IP per window"},
	{Name: "login_email_limit", Default: 5, Desc: "Login attempts allowed per email per window"},
	{Name: "login_limit_window", Default: "15m", Desc: "Login rate limit window"},

	// Consignment allocation
	{Name: "consignment_min_number", Default: int(allocator.DefaultMinNumber), Desc: "Lowest consignment number a range may start at"},
	{Name: "allocation_mode", Default: allocator.ModeAuto, Desc: "Range allocation guard: 'auto', 'transaction' or 'lease'"},
	{Name: "lease_ttl", Default: "30s", Desc: "Allocation lease lifetime"},
	{Name: "lease_wait", Default: "10s", Desc: "How long a range assignment waits for a busy lease"},
	{Name: "entity_cache_ttl", Default: "5m", Desc: "Cache lifetime for owner existence checks"},

	// Domain events
	{Name: "events_backend", Default: events.BackendNone, Desc: "Event publisher: 'none', 'log', 'kafka' or 'rabbitmq'"},
	{Name: "events_kafka_brokers", Default: "", Desc: "Comma-separated Kafka brokers"},
	{Name: "events_kafka_topic", Default: "courierhub.consignments", Desc: "Kafka topic for domain events"},
	{Name: "events_rabbit_url", Default: "", Desc: "RabbitMQ URL (amqp://...)"},
	{Name: "events_rabbit_queue", Default: "courierhub.consignments", Desc: "RabbitMQ queue for domain events"},
	{Name: "events_publish_timeout", Default: "5s", Desc: "Per-event publish timeout"},

	// Timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Health check ping timeout"},
	{Name: "timeout_lookup", Default: "5s", Desc: "Single-document read timeout"},
	{Name: "timeout_query", Default: "10s", Desc: "List and aggregate timeout"},
	{Name: "timeout_allocation", Default: "20s", Desc: "Range assignment timeout"},
	{Name: "timeout_batch", Default: "60s", Desc: "Invoice generation and diagnostics timeout"},

	// Background jobs
	{Name: "orphan_scan_interval", Default: "1h", Desc: "Orphan scan interval (0 disables)"},
	{Name: "lease_reap_interval", Default: "1m", Desc: "Expired lease cleanup interval"},

	// Admin bootstrap
	{Name: "bootstrap_admin_email", Default: "", Desc: "Email of the office admin (promotes/creates on startup)"},
	{Name: "bootstrap_admin_name", Default: "Administrator", Desc: "Display name used when the admin is created"},
	{Name: "bootstrap_admin_password", Default: "", Desc: "Initial password when the admin is created (blank means Google sign-in)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, COURIERHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COURIERHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		BaseURL: strings.TrimRight(appValues.String("base_url"), "/"),

		// Google OAuth
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		// Audit logging
		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		// Login rate limiting
		LoginIPLimit:     appValues.Int("login_ip_limit"),
		LoginEmailLimit:  appValues.Int("login_email_limit"),
		LoginLimitWindow: appValues.Duration("login_limit_window", 15*time.Minute),

		// Allocation
		ConsignmentMinNumber: int64(appValues.Int("consignment_min_number")),
		AllocationMode:       strings.ToLower(strings.TrimSpace(appValues.String("allocation_mode"))),
		LeaseTTL:             appValues.Duration("lease_ttl", 30*time.Second),
		LeaseWait:            appValues.Duration("lease_wait", 10*time.Second),
		EntityCacheTTL:       appValues.Duration("entity_cache_ttl", 5*time.Minute),

		// Events
		EventsBackend:        strings.ToLower(strings.TrimSpace(appValues.String("events_backend"))),
		EventsKafkaBrokers:   appValues.String("events_kafka_brokers"),
		EventsKafkaTopic:     appValues.String("events_kafka_topic"),
		EventsRabbitURL:      appValues.String("events_rabbit_url"),
		EventsRabbitQueue:    appValues.String("events_rabbit_queue"),
		EventsPublishTimeout: appValues.Duration("events_publish_timeout", 5*time.Second),

		// Timeouts
		TimeoutPing:       appValues.Duration("timeout_ping", 2*time.Second),
		TimeoutLookup:     appValues.Duration("timeout_lookup", 5*time.Second),
		TimeoutQuery:      appValues.Duration("timeout_query", 10*time.Second),
		TimeoutAllocation: appValues.Duration("timeout_allocation", 20*time.Second),
		TimeoutBatch:      appValues.Duration("timeout_batch", 60*time.Second),

		// Jobs
		OrphanScanInterval: appValues.Duration("orphan_scan_interval", time.Hour),
		LeaseReapInterval:  appValues.Duration("lease_reap_interval", time.Minute),

		// Admin bootstrap
		BootstrapAdminEmail:    appValues.String("bootstrap_admin_email"),
		BootstrapAdminName:     appValues.String("bootstrap_admin_name"),
		BootstrapAdminPassword: appValues.String("bootstrap_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI format is checked before any connection attempt; the
// allocation mode and event backend must name something this build knows.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateAppConfig(appCfg)
}

func validateAppConfig(appCfg AppConfig) error {
	if appCfg.ConsignmentMinNumber < 1 {
		return fmt.Errorf("consignment_min_number must be positive, got %d", appCfg.ConsignmentMinNumber)
	}

	switch appCfg.AllocationMode {
	case allocator.ModeAuto, allocator.ModeTransaction, allocator.ModeLease:
	default:
		return fmt.Errorf("allocation_mode must be auto, transaction or lease, got %q", appCfg.AllocationMode)
	}

	switch appCfg.EventsBackend {
	case "", events.BackendNone, events.BackendLog:
	case events.BackendKafka:
		if len(events.SplitList(appCfg.EventsKafkaBrokers)) == 0 {
			return fmt.Errorf("events_backend kafka requires events_kafka_brokers")
		}
	case events.BackendRabbitMQ:
		if appCfg.EventsRabbitURL == "" {
			return fmt.Errorf("events_backend rabbitmq requires events_rabbit_url")
		}
	default:
		return fmt.Errorf("unknown events_backend %q", appCfg.EventsBackend)
	}

	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret == "" {
		return fmt.Errorf("google_client_id is set but google_client_secret is empty")
	}
	return nil
}
