// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from environment variables (COURIERHUB_*), config files, or
// command-line flags, loaded in LoadConfig. WAFFLE's CoreConfig covers the
// framework side (ports, TLS, log level, CORS, body limits); everything the
// consignment back office needs lives here and is handed to each lifecycle
// hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: courierhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Public base URL, used to build the Google OAuth redirect.
	BaseURL string

	// Google OAuth (office users only). Empty client id disables Google sign-in.
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string

	// Login rate limiting
	LoginIPLimit     int
	LoginEmailLimit  int
	LoginLimitWindow time.Duration

	// Consignment allocation
	ConsignmentMinNumber int64         // lowest number any range may start at
	AllocationMode       string        // auto | transaction | lease
	LeaseTTL             time.Duration // lifetime of an allocation lease
	LeaseWait            time.Duration // how long Assign waits for a busy lease
	EntityCacheTTL       time.Duration // cache lifetime for positive owner lookups

	// Domain events
	EventsBackend        string // none | log | kafka | rabbitmq
	EventsKafkaBrokers   string // comma-separated host:port list
	EventsKafkaTopic     string
	EventsRabbitURL      string
	EventsRabbitQueue    string
	EventsPublishTimeout time.Duration

	// Database operation timeouts
	TimeoutPing       time.Duration
	TimeoutLookup     time.Duration
	TimeoutQuery      time.Duration
	TimeoutAllocation time.Duration
	TimeoutBatch      time.Duration

	// Background jobs
	OrphanScanInterval time.Duration // 0 disables the scan
	LeaseReapInterval  time.Duration

	// Bootstrap admin (created or promoted on startup when the email is set)
	BootstrapAdminEmail    string
	BootstrapAdminName     string
	BootstrapAdminPassword string
}
