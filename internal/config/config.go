// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for all major components including
// the HTTP server, database connections, the payment provider and billing clients,
// and the reconciliation machinery.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Kafka       KafkaConfig
	Provider    ProviderConfig
	Billing     BillingConfig
	Poller      PollerConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration for the callback archive.
// An empty URI disables archiving.
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains Kafka configuration for the payment audit trail.
// An empty AuditTopic disables audit publishing.
type KafkaConfig struct {
	Brokers           string
	AuditTopic        string
	NumPartitions     int
	ReplicationFactor int
	WriteTimeout      time.Duration
}

// ProviderConfig contains settings for the mobile-money provider push API
type ProviderConfig struct {
	PushURL          string        // STK push endpoint
	TokenURL         string        // OAuth token endpoint
	CallbackURL      string        // Where the provider delivers confirmations
	ShortCode        string        // Business short code (PartyB)
	PassKey          string        // Passkey used to derive the push password
	ConsumerKey      string        // OAuth client credentials
	ConsumerSecret   string        //
	AccountReference string        // Default billing reference on pushes
	Timeout          time.Duration // Per-request timeout on the push call
}

// BillingConfig contains settings for the downstream billing system client
type BillingConfig struct {
	URL         string        // Billing post endpoint
	Timeout     time.Duration // Per-request timeout on the post call
	MaxRetries  int           // Retry ceiling for transient failures
	BaseBackoff time.Duration // First retry delay, doubled per attempt
	MaxBackoff  time.Duration // Backoff cap
}

// PollerConfig contains defaults for the outcome poller used by
// session-bound callers
type PollerConfig struct {
	DefaultTimeout  time.Duration
	DefaultInterval time.Duration
	MaxTimeout      time.Duration // Upper bound on caller-supplied timeouts
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config only when archiving is enabled
	if c.MongoDB.URI != "" {
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required when MONGO_URI is set")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
		if c.MongoDB.MaxPoolSize <= 0 {
			validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
		}
	}

	// Validate Kafka config only when the audit trail is enabled
	if c.Kafka.AuditTopic != "" {
		if c.Kafka.Brokers == "" {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required when KAFKA_AUDIT_TOPIC is set")
		}
		if c.Kafka.WriteTimeout <= 0 {
			validationErrors = append(validationErrors, "KAFKA_WRITE_TIMEOUT must be greater than 0")
		}
	}

	// Validate Provider config
	if c.Provider.PushURL == "" {
		validationErrors = append(validationErrors, "PROVIDER_PUSH_URL is required")
	}
	if c.Provider.TokenURL == "" {
		validationErrors = append(validationErrors, "PROVIDER_TOKEN_URL is required")
	}
	if c.Provider.CallbackURL == "" {
		validationErrors = append(validationErrors, "PROVIDER_CALLBACK_URL is required")
	}
	if c.Provider.Timeout <= 0 {
		validationErrors = append(validationErrors, "PROVIDER_TIMEOUT must be greater than 0")
	}

	// Validate Billing config
	if c.Billing.URL == "" {
		validationErrors = append(validationErrors, "BILLING_URL is required")
	}
	if c.Billing.Timeout <= 0 {
		validationErrors = append(validationErrors, "BILLING_TIMEOUT must be greater than 0")
	}
	if c.Billing.MaxRetries < 0 {
		validationErrors = append(validationErrors, "BILLING_MAX_RETRIES must not be negative")
	}
	if c.Billing.BaseBackoff <= 0 {
		validationErrors = append(validationErrors, "BILLING_BASE_BACKOFF must be greater than 0")
	}
	if c.Billing.MaxBackoff < c.Billing.BaseBackoff {
		validationErrors = append(validationErrors, "BILLING_MAX_BACKOFF must not be less than BILLING_BASE_BACKOFF")
	}

	// Validate Poller config
	if c.Poller.DefaultTimeout <= 0 {
		validationErrors = append(validationErrors, "POLLER_DEFAULT_TIMEOUT must be greater than 0")
	}
	if c.Poller.DefaultInterval <= 0 {
		validationErrors = append(validationErrors, "POLLER_DEFAULT_INTERVAL must be greater than 0")
	}
	if c.Poller.MaxTimeout < c.Poller.DefaultTimeout {
		validationErrors = append(validationErrors, "POLLER_MAX_TIMEOUT must not be less than POLLER_DEFAULT_TIMEOUT")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
