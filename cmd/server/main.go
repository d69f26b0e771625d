package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/config"
	"github.com/garyjia/ope-approval/internal/container"
	httpserver "github.com/garyjia/ope-approval/internal/interfaces/http"
	"github.com/garyjia/ope-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Secrets may come from a local .env file
	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting OPE Approval Service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver))

	if cfg.Auth.AllowHeaderIdentity {
		logger.Warn("X-Employee-Code header identity is enabled; do not use in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	server := httpserver.NewServer(cfg.ToServerConfig(), dependencies(c), utils.NewKVLogger(logger))
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}

// dependencies maps the container's services onto the HTTP adapter
func dependencies(c *container.Container) httpserver.Dependencies {
	services := c.Services()
	deps := httpserver.Dependencies{
		Roles:      services.Roles,
		Drafts:     services.Drafts,
		Submission: services.Submission,
		Approval:   services.Approval,
		Amount:     services.Amount,
		Queue:      services.Queue,
		Status:     services.Status,
		Directory:  services.Directory,
		Exporter:   c.Spreadsheets().Exporter,
		Health: func() (bool, interface{}) {
			h := c.Health()
			return h.Overall, h.Components
		},
	}
	if id := c.Identity(); id != nil {
		deps.Identity = id
	}
	return deps
}
