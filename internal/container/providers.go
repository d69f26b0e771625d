package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ope-approval/internal/application/dispatcher"
	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/application/service"
	"github.com/garyjia/ope-approval/internal/domain/routing"
	"github.com/garyjia/ope-approval/internal/infrastructure/auth"
	"github.com/garyjia/ope-approval/internal/infrastructure/persistence/memory"
	"github.com/garyjia/ope-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ope-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/ope-approval/internal/infrastructure/spreadsheet"
	"github.com/garyjia/ope-approval/internal/infrastructure/storage"
	"github.com/garyjia/ope-approval/pkg/database"
	"github.com/garyjia/ope-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
// SQL is nil for the memory driver, Memory is nil for sqlite.
type DatabaseBundle struct {
	SQL            *database.DB
	Memory         *memory.Store
	TransactionMgr port.TransactionManager
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	FileStorage port.FileStorage
	Attachments port.AttachmentStore
}

// SpreadsheetBundle holds the workbook reader and writer.
type SpreadsheetBundle struct {
	DirectorySource port.DirectorySource
	Exporter        port.WorkQueueExporter
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Config      *ApprovalConfig
	Repos       *RepositoryBundle
	TxManager   port.TransactionManager
	Attachments port.AttachmentStore
	Directory   port.DirectorySource
	Dispatcher  dispatcher.Dispatcher
	Clock       service.Clock
	Logger      *zap.Logger
}

// ProvideDatabase opens the configured store.
// For sqlite it also runs the embedded migrations when enabled.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == DriverMemory {
		store := memory.NewStore()
		return &DatabaseBundle{Memory: store, TransactionMgr: store}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsEnabled {
		if err := database.NewMigrator(db, logger).Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		SQL:            db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories for the opened store.
func ProvideRepositories(bundle *DatabaseBundle, logger *zap.Logger) (*RepositoryBundle, error) {
	if bundle == nil {
		return nil, fmt.Errorf("database bundle is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if bundle.Memory != nil {
		return &RepositoryBundle{
			Entry:     bundle.Memory.Entries(),
			Approval:  bundle.Memory.Approvals(),
			Queue:     bundle.Memory.Queues(),
			Directory: bundle.Memory.Directory(),
		}, nil
	}
	if bundle.SQL == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	sqlDB := bundle.SQL.DB
	return &RepositoryBundle{
		Entry:     repository.NewEntryRepository(sqlDB, logger),
		Approval:  repository.NewApprovalRepository(sqlDB, logger),
		Queue:     repository.NewQueueRepository(sqlDB, logger),
		Directory: repository.NewDirectoryRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the attachment store. An empty directory disables uploads.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if cfg.AttachmentDir == "" {
		logger.Info("Attachment directory not configured, uploads disabled")
		return &StorageBundle{}, nil
	}

	files := storage.NewLocalFileStorage(cfg.AttachmentDir, logger)
	return &StorageBundle{
		FileStorage: files,
		Attachments: storage.NewAttachmentStore(files, logger),
	}, nil
}

// ProvideSpreadsheets creates the HRMS reader and the work-queue exporter.
func ProvideSpreadsheets(logger *zap.Logger) *SpreadsheetBundle {
	return &SpreadsheetBundle{
		DirectorySource: spreadsheet.NewHRMSReader(logger),
		Exporter:        spreadsheet.NewWorkbookExporter(logger),
	}
}

// ProvideIdentity creates the bearer token verifier. It returns nil when no secret is set.
func ProvideIdentity(cfg *AuthConfig, logger *zap.Logger) *auth.JWTVerifier {
	if cfg == nil || cfg.JWTSecret == "" {
		logger.Warn("No JWT secret configured, bearer tokens are rejected")
		return nil
	}
	return auth.NewJWTVerifier(cfg.JWTSecret, cfg.Issuer, logger)
}

// ProvideDispatcher creates the synchronous event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger))), nil
}

// ProvideServices creates all application services and registers the
// work-queue projector on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Config == nil || deps.Repos == nil || deps.TxManager == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("config, repositories, transaction manager and dispatcher are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	hr := routing.Approver{Code: utils.NormalizeCode(deps.Config.HRCode), Name: deps.Config.HRName}
	resolver := routing.NewResolver(hr, deps.Config.DefaultOPELimit)
	roles := service.NewRoleResolver(repos.Directory, hr, logger)

	service.NewQueueProjector(repos.Queue, logger).Register(deps.Dispatcher)

	return &ServiceBundle{
		Roles:      roles,
		Drafts:     service.NewDraftService(repos.Entry, repos.Directory, deps.Attachments, deps.TxManager, deps.Clock, logger),
		Submission: service.NewSubmissionService(repos.Entry, repos.Approval, repos.Directory, deps.TxManager, roles, resolver, deps.Dispatcher, deps.Clock, logger),
		Approval:   service.NewApprovalService(repos.Entry, repos.Approval, deps.TxManager, roles, deps.Dispatcher, deps.Clock, logger),
		Amount:     service.NewAmountService(repos.Entry, repos.Approval, deps.TxManager, roles, deps.Dispatcher, deps.Clock, logger),
		Queue:      service.NewQueueService(repos.Queue, repos.Entry, repos.Approval, repos.Directory, roles, logger),
		Status:     service.NewStatusService(repos.Entry, repos.Approval, repos.Directory, roles, logger),
		Directory:  service.NewDirectoryService(repos.Directory, deps.Directory, deps.TxManager, roles, logger),
	}, nil
}
