// Package backend builds the storage, messaging and spreadsheet adapters
// selected by configuration.
package backend

import (
	"context"

	"budgeteer/internal/ratelimit"
	"budgeteer/internal/records"
	"budgeteer/internal/sheets"
	"budgeteer/internal/storage"
)

// CleanupFunc releases resources held by a created adapter.
type CleanupFunc func() error

// StoreResult is the created store. SQLite is set only for the sqlite
// backend, the one that tracks spreadsheet sync state.
type StoreResult struct {
	Store   records.Store
	SQLite  *storage.SQLiteRepository
	Cleanup CleanupFunc
}

// Sheet bundles the spreadsheet ports, all served by one adapter.
type Sheet struct {
	Exporter sheets.ExpenseExporter
	Remover  sheets.ExpenseRemover
	Alerts   sheets.AlertSink
	// Remote is false for the in-memory stand-in.
	Remote bool
	// Limiter throttles a remote sheet; nil otherwise.
	Limiter *ratelimit.Limiter
}

// Factory creates adapters based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreateSheet(ctx context.Context, config Config) (*Sheet, error)
}

// Config holds configuration for adapter creation
type Config struct {
	Type BackendType

	// File and memory backends
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Redis specific
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Google Sheets. Empty SpreadsheetID selects the in-memory sheet.
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	// SheetsRequestsPerMinute caps calls to a remote sheet.
	SheetsRequestsPerMinute int
}

// BackendType represents the type of storage backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	RedisBackend  BackendType = "redis"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, RedisBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
