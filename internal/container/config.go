// Package container provides dependency injection and lifecycle management
// for the OPE approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/domain/entity"
)

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Auth configuration
	Auth AuthConfig

	// Approval routing configuration
	Approval ApprovalConfig

	// Storage configuration
	Storage StorageConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsEnabled applies the embedded schema migrations on start
	MigrationsEnabled bool
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ApprovalConfig holds the HR approver and the default OPE limit.
type ApprovalConfig struct {
	HRCode          string
	HRName          string
	DefaultOPELimit decimal.Decimal
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// AttachmentDir is the base directory for receipts; empty disables uploads
	AttachmentDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:            DriverSQLite,
			Path:              "data/ope.db",
			MaxOpenConns:      1,
			MaxIdleConns:      1,
			ConnMaxLifetime:   5 * time.Minute,
			MigrationsEnabled: true,
		},
		Auth: AuthConfig{
			Issuer: "ope-approval",
		},
		Approval: ApprovalConfig{
			DefaultOPELimit: decimal.NewFromInt(entity.DefaultOPELimit),
		},
		Storage: StorageConfig{
			AttachmentDir: "data/attachments",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Approval.HRCode == "" {
		return fmt.Errorf("approval.hr_code is required")
	}
	if !c.Approval.DefaultOPELimit.IsPositive() {
		return fmt.Errorf("approval.default_ope_limit must be positive")
	}

	return nil
}
