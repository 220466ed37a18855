package backend

import (
	"context"
	"fmt"

	"payouts/internal/log"
	"payouts/internal/sheets"
	gsheet "payouts/internal/sheets/google"
	"payouts/internal/sheets/memory"
	"payouts/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	journal, err := f.createJournal(ctx, config)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &BackendResult{
		Store:   store,
		Journal: journal,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.SnapshotStore, error) {
	switch config.Type {
	case FileBackend:
		store, err := storage.NewFileStore(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		f.logger.Info("Initialized file backend", "path", config.DataFile)
		return store, nil
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return store, nil
	case MemoryBackend:
		f.logger.Warn("Initialized memory backend: ledger state will not survive a restart")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createJournal returns nil when no journal applies.
func (f *DefaultFactory) createJournal(ctx context.Context, config Config) (sheets.PayoutJournal, error) {
	switch {
	case config.GoogleSpreadsheetID != "":
		j, err := gsheet.NewJournal(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets journal: %w", err)
		}
		f.logger.Info("Initialized Google Sheets journal", "sheet", config.GoogleSheetName)
		return j, nil
	case config.Type == MemoryBackend:
		return memory.New(), nil
	default:
		return nil, nil
	}
}
