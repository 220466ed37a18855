package backend

import (
	"context"

	"payouts/internal/sheets"
	"payouts/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger store, the optional payout journal and a
// cleanup function releasing both.
type BackendResult struct {
	Store   storage.SnapshotStore
	Journal sheets.PayoutJournal
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File backend
	DataFile string

	// SQLite backend
	SQLiteDBPath string

	// Optional Google Sheets journal
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// BackendType selects where the ledger record lives.
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
