// Package ledger owns the payout aggregate. All reads and writes go through a
// single mutex; the duplicate check, the mutation and the durable write happen
// inside one critical section.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"payouts/internal/core"
	"payouts/internal/log"
	"payouts/internal/storage"
)

var (
	// ErrDuplicate means the message was already counted.
	ErrDuplicate = errors.New("message already counted")
	// ErrUnparseable means the message carries no valid payout amount.
	ErrUnparseable = errors.New("no payout amount in message")
	// ErrOverflow means the amount would push the total past what it can hold.
	ErrOverflow = errors.New("payout would overflow total")
)

// PersistError reports a mutation that is applied in memory but not yet
// durable. Retrying with Flush writes the current state again without
// re-applying anything.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist after %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError reports whether err carries a PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// Options configure a Ledger.
type Options struct {
	Step    int64
	Keyword string
	Logger  *log.Logger
}

type Ledger struct {
	mu      sync.Mutex
	store   storage.SnapshotStore
	keyword string
	logger  *log.Logger

	state   core.LedgerState
	counted map[string]struct{}
	// dirty is set when the last write failed; the next write or Flush retries.
	dirty bool
}

// New loads the persisted state (or defaults), aligns its step with the
// configured one and writes it back once.
func New(ctx context.Context, store storage.SnapshotStore, opts Options) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is nil")
	}
	if opts.Step <= 0 {
		return nil, core.ErrInvalidStep
	}
	if opts.Keyword == "" {
		opts.Keyword = core.DefaultKeyword
	}
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentLedger)
	}

	state, err := storage.LoadOrDefault(ctx, store, opts.Step)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:   store,
		keyword: opts.Keyword,
		logger:  opts.Logger,
		state:   state,
		counted: make(map[string]struct{}, len(state.CountedMessageIDs)),
	}
	for _, id := range state.CountedMessageIDs {
		l.counted[id] = struct{}{}
	}

	if err := l.store.Save(ctx, l.state.Clone()); err != nil {
		return nil, fmt.Errorf("write initial ledger state: %w", err)
	}

	l.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldTotal, state.Total,
		"step", state.Step,
		"counted", len(state.CountedMessageIDs),
		log.FieldMilestone, state.LastMilestoneAnnounced)
	return l, nil
}

// ApplyApproval counts an approved message. Checks short-circuit in order:
// duplicate, unparseable, then overflow. On a persist failure the outcome is still
// returned together with a *PersistError.
func (l *Ledger) ApplyApproval(ctx context.Context, ev core.ApprovalEvent) (core.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.counted[ev.MessageID]; seen {
		return core.Outcome{}, ErrDuplicate
	}

	amount, ok := core.ParseAmount(ev.Text, l.keyword)
	if !ok {
		return core.Outcome{}, ErrUnparseable
	}

	if amount > math.MaxInt64-l.state.Total {
		return core.Outcome{}, ErrOverflow
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	l.state.Total += amount
	l.state.LastPayout = amount
	l.state.LastStudent = ev.AuthorLabel
	l.state.LastAt = at.UnixMilli()
	l.state.CountedMessageIDs = append(l.state.CountedMessageIDs, ev.MessageID)
	l.counted[ev.MessageID] = struct{}{}
	crossed := l.state.AdvanceMilestone()

	outcome := core.Outcome{
		Amount:           amount,
		Total:            l.state.Total,
		Milestone:        l.state.LastMilestoneAnnounced,
		MilestoneCrossed: crossed,
	}

	if err := l.persistLocked(ctx, log.OpApply); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Reset zeroes the ledger, keeping only the configured step, and persists.
// Callers gate who may invoke it.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = core.DefaultState(l.state.Step)
	l.counted = make(map[string]struct{})

	l.logger.InfoContext(ctx, "Ledger reset", log.FieldOperation, log.OpReset)
	return l.persistLocked(ctx, log.OpReset)
}

// Snapshot returns the observable state and clears the one-shot milestone
// flag in the same critical section, so concurrent pollers see a given
// crossing at most once. The snapshot is valid even when the returned error
// is a *PersistError.
func (l *Ledger) Snapshot(ctx context.Context) (core.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.state.Project()
	if !l.state.MilestoneJustHit && !l.dirty {
		return snap, nil
	}

	l.state.MilestoneJustHit = false
	return snap, l.persistLocked(ctx, log.OpSnapshot)
}

// Flush writes the current in-memory state if an earlier write failed.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}
	return l.persistLocked(ctx, log.OpFlush)
}

// State returns a copy of the full aggregate without side effects.
func (l *Ledger) State() core.LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

// Dirty reports whether the in-memory state is ahead of the durable record.
func (l *Ledger) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

func (l *Ledger) persistLocked(ctx context.Context, op string) error {
	if err := l.store.Save(ctx, l.state.Clone()); err != nil {
		l.dirty = true
		fields := log.NewFields().WithOperation(op).WithError(err)
		fields["error_type"] = log.ErrorTypeStorage
		l.logger.ErrorContext(ctx, "Failed to persist ledger state", fields.ToSlice()...)
		return &PersistError{Op: op, Err: err}
	}
	l.dirty = false
	return nil
}
