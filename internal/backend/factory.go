package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgeteer/internal/ratelimit"
	"budgeteer/internal/records/kv"
	"budgeteer/internal/records/memory"
	gsheet "budgeteer/internal/sheets/google"
	memsheet "budgeteer/internal/sheets/memory"
	"budgeteer/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateStore opens the configured store.
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case RedisBackend:
		return f.createRedisStore(ctx, config)
	case FileBackend:
		return f.createFileStore(config)
	case MemoryBackend:
		return f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	version, dirty, err := storage.SchemaVersion(config.SQLiteDBPath)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		repo.Close()
		return nil, fmt.Errorf("schema version %d is dirty, fix the database before retrying", version)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "schema_version", version)

	return &StoreResult{Store: repo, SQLite: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createRedisStore(ctx context.Context, config Config) (*StoreResult, error) {
	rkv, err := kv.NewRedisKV(ctx, kv.RedisOptions{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
		Prefix:   config.RedisKeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	store := kv.New(rkv)

	f.logger.Info("Initialized Redis backend",
		"addr", config.RedisAddr,
		"db", config.RedisDB,
		"prefix", config.RedisKeyPrefix)

	return &StoreResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createFileStore(config Config) (*StoreResult, error) {
	fkv, err := kv.NewFileKV(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	store := kv.New(fkv)

	f.logger.Info("Initialized file backend", "data_directory", config.DataDirectory)

	return &StoreResult{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*StoreResult, error) {
	if config.DataDirectory == "" {
		store := memory.New()
		f.logger.Info("Initialized memory backend")
		return &StoreResult{Store: store, Cleanup: store.Close}, nil
	}

	store, err := memory.NewFromFiles(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)

	return &StoreResult{Store: store, Cleanup: store.Close}, nil
}

// CreateSheet connects to Google Sheets, or returns the in-memory sheet
// when no spreadsheet is configured.
func (f *DefaultFactory) CreateSheet(ctx context.Context, config Config) (*Sheet, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Warn("No spreadsheet configured, exporting to memory only")
		s := memsheet.New()
		return &Sheet{Exporter: s, Remover: s, Alerts: s}, nil
	}

	limiter := ratelimit.New(config.SheetsRequestsPerMinute)
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		ExpensesSheet:   config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Limiter:         limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets export",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName,
		"requests_per_minute", config.SheetsRequestsPerMinute)

	return &Sheet{Exporter: client, Remover: client, Alerts: client, Remote: true, Limiter: limiter}, nil
}
