package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver            string        `mapstructure:"driver"`
	Path              string        `mapstructure:"path"`
	MaxOpenConns      int           `mapstructure:"max_open_conns"`
	MaxIdleConns      int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsEnabled bool          `mapstructure:"migrations_enabled"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds bearer-token settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`

	// AllowHeaderIdentity trusts X-Employee-Code when no token is sent; local development only
	AllowHeaderIdentity bool `mapstructure:"allow_header_identity"`
}

// ApprovalConfig holds the HR identity and the default OPE limit
type ApprovalConfig struct {
	HRCode          string  `mapstructure:"hr_code"`
	HRName          string  `mapstructure:"hr_name"`
	DefaultOPELimit float64 `mapstructure:"default_ope_limit"`
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	AttachmentDir      string `mapstructure:"attachment_dir"`
	MaxAttachmentBytes int64  `mapstructure:"max_attachment_bytes"`
}

// Load reads the YAML file at configPath, applies OPE_* environment overrides and validates.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("OPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/ope.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Duration(0))
	v.SetDefault("database.migrations_enabled", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "ope-approval")
	v.SetDefault("auth.allow_header_identity", false)

	v.SetDefault("approval.hr_code", "")
	v.SetDefault("approval.hr_name", "HR")
	v.SetDefault("approval.default_ope_limit", 1500)

	v.SetDefault("storage.attachment_dir", "data/attachments")
	v.SetDefault("storage.max_attachment_bytes", 10<<20)
}

// bindEnvVars accepts the unprefixed names used by deployment scripts for secrets
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.jwt_secret", "OPE_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("approval.hr_code", "OPE_APPROVAL_HR_CODE", "HR_EMPLOYEE_CODE")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite or memory, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" && !c.Auth.AllowHeaderIdentity {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if strings.TrimSpace(c.Approval.HRCode) == "" {
		return fmt.Errorf("approval.hr_code is required")
	}
	if c.Approval.DefaultOPELimit <= 0 {
		return fmt.Errorf("approval.default_ope_limit must be positive")
	}

	if c.Storage.AttachmentDir != "" && c.Storage.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("storage.max_attachment_bytes must be positive")
	}

	return nil
}
