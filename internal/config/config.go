package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the capsule service.
// Environment variables are parsed from the CAPSULE_BACKEND_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override drivers
	DocStore  string `envconfig:"DOC_STORE" default:"auto"`
	BlobStore string `envconfig:"BLOB_STORE" default:"auto"`
	PushStore string `envconfig:"PUSH" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// PublicBaseURL prefixes media links served by this process.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// GCS media bucket
	GCSBucket string `envconfig:"GCS_BUCKET" default:""`

	// MongoDB / GridFS media store
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"aboutxtime"`

	// Friend cache size
	FriendCacheSize int `envconfig:"FRIEND_CACHE_SIZE" default:"256"`
}

// ResolveDefaults validates BuildTarget and derives the store drivers when
// set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDoc, defaultBlob, defaultPush string

	switch c.BuildTarget {
	case "local":
		defaultDoc = "memory"
		defaultBlob = "memory"
		defaultPush = "none"
	case "cloud":
		defaultDoc = "postgres"
		defaultBlob = "gcs"
		defaultPush = "fcm"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DocStore == "" || c.DocStore == "auto" {
		c.DocStore = defaultDoc
	}
	if c.BlobStore == "" || c.BlobStore == "auto" {
		c.BlobStore = defaultBlob
	}
	if c.PushStore == "" || c.PushStore == "auto" {
		c.PushStore = defaultPush
	}

	allowedDoc := map[string]bool{"postgres": true, "memory": true}
	if !allowedDoc[c.DocStore] {
		return fmt.Errorf("unsupported DOC_STORE: %s", c.DocStore)
	}
	allowedBlob := map[string]bool{"gcs": true, "gridfs": true, "memory": true}
	if !allowedBlob[c.BlobStore] {
		return fmt.Errorf("unsupported BLOB_STORE: %s", c.BlobStore)
	}
	allowedPush := map[string]bool{"fcm": true, "none": true}
	if !allowedPush[c.PushStore] {
		return fmt.Errorf("unsupported PUSH: %s", c.PushStore)
	}
	if c.DocStore == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for DOC_STORE=postgres")
	}
	if c.BlobStore == "gcs" && c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is required for BLOB_STORE=gcs")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: CAPSULE_BACKEND_HTTP_PORT, CAPSULE_BACKEND_POSTGRES_DSN.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CAPSULE_BACKEND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("doc_store", cfg.DocStore).
		Str("blob_store", cfg.BlobStore).
		Str("push", cfg.PushStore).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		BuildTarget:     "local",
		DocStore:        "memory",
		BlobStore:       "memory",
		PushStore:       "none",
		Environment:     EnvTesting,
		HTTPPort:        8080,
		PublicBaseURL:   "http://localhost:8080",
		FriendCacheSize: 64,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
