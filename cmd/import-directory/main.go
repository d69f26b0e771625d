package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/config"
	"github.com/garyjia/ope-approval/internal/container"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// Loads an HRMS employee export into the employee, reporting manager and partner directories.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	file := flag.String("file", "", "HRMS export workbook (.xlsx)")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: import-directory -file hrms.xlsx [-config configs/config.yaml]")
		os.Exit(2)
	}

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *file, logger); err != nil {
		logger.Error("Directory import failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, path string, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	ctx := context.Background()
	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	employees, err := c.Spreadsheets().DirectorySource.ReadEmployees(f)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	result, err := c.Services().Directory.Import(ctx, employees)
	if err != nil {
		return err
	}

	logger.Info("Directory imported",
		zap.String("file", path),
		zap.Int("employees", result.Employees),
		zap.Int("reporting_managers", result.ReportingManagers),
		zap.Int("partners", result.Partners))
	return nil
}
