package config

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/ope-approval/internal/container"
	httpserver "github.com/garyjia/ope-approval/internal/interfaces/http"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:            c.Database.Driver,
			Path:              c.Database.Path,
			MaxOpenConns:      c.Database.MaxOpenConns,
			MaxIdleConns:      c.Database.MaxIdleConns,
			ConnMaxLifetime:   c.Database.ConnMaxLifetime,
			MigrationsEnabled: c.Database.MigrationsEnabled,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
		},
		Approval: container.ApprovalConfig{
			HRCode:          strings.TrimSpace(c.Approval.HRCode),
			HRName:          c.Approval.HRName,
			DefaultOPELimit: decimal.NewFromFloat(c.Approval.DefaultOPELimit).Round(2),
		},
		Storage: container.StorageConfig{
			AttachmentDir: c.Storage.AttachmentDir,
		},
	}
}

// ToServerConfig converts the server section to the HTTP adapter's config.
func (c *Config) ToServerConfig() httpserver.ServerConfig {
	return httpserver.ServerConfig{
		Host:                c.Server.Host,
		Port:                c.Server.Port,
		ReadTimeout:         c.Server.ReadTimeout,
		WriteTimeout:        c.Server.WriteTimeout,
		Mode:                c.Server.Mode,
		MaxAttachmentBytes:  c.Storage.MaxAttachmentBytes,
		AllowHeaderIdentity: c.Auth.AllowHeaderIdentity,
	}
}
