// Package storage persists the ledger aggregate. Every implementation writes
// the full state on each Save; there is no batching.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"payouts/internal/core"
)

var (
	// ErrNotFound reports that no durable record exists yet (first run).
	ErrNotFound = errors.New("ledger record not found")
	// ErrMalformed reports a record that exists but cannot be decoded.
	ErrMalformed = errors.New("ledger record malformed")
)

// SnapshotStore reads and writes the whole ledger state.
type SnapshotStore interface {
	Load(ctx context.Context) (core.LedgerState, error)
	Save(ctx context.Context, state core.LedgerState) error
	Close() error
}

// LoadOrDefault loads the persisted state, falling back to defaults for the
// given step when the record is absent or malformed. A record that decodes but
// fails validation keeps its counted ids. Other errors (I/O, database) are
// returned so startup can fail loudly.
func LoadOrDefault(ctx context.Context, s SnapshotStore, step int64) (core.LedgerState, error) {
	state, err := s.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		slog.InfoContext(ctx, "No ledger record found, starting fresh", "step", step)
		return core.DefaultState(step), nil
	case errors.Is(err, ErrMalformed):
		slog.WarnContext(ctx, "Ledger record malformed, starting fresh", "error", err, "step", step)
		return core.DefaultState(step), nil
	case err != nil:
		return core.LedgerState{}, fmt.Errorf("load ledger state: %w", err)
	}

	if state.CountedMessageIDs == nil {
		state.CountedMessageIDs = []string{}
	}
	// Step is configuration; the stored copy is only kept for transparency.
	state.Step = step
	if err := state.Validate(); err != nil {
		// Counters are untrustworthy but the counted ids still guard against
		// double counting.
		slog.WarnContext(ctx, "Ledger record invalid, resetting counters",
			"error", err, "step", step, "counted", len(state.CountedMessageIDs))
		fresh := core.DefaultState(step)
		fresh.CountedMessageIDs = state.CountedMessageIDs
		return fresh, nil
	}
	return state, nil
}
