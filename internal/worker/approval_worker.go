package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"payouts/internal/amqp"
	"payouts/internal/core"
	"payouts/internal/ledger"
	"payouts/internal/log"
	"payouts/internal/sheets"
)

// Ledger is the part of *ledger.Ledger the worker drives.
type Ledger interface {
	ApplyApproval(ctx context.Context, ev core.ApprovalEvent) (core.Outcome, error)
	Flush(ctx context.Context) error
	Dirty() bool
}

// ApprovalWorker turns gated reactions into ledger approvals.
type ApprovalWorker struct {
	gate    Gate
	ledger  Ledger
	journal sheets.PayoutJournal
	logger  *log.Logger
	now     func() time.Time

	// held keeps accepted payouts whose write failed; they are journaled once
	// a redelivery finds the state durable.
	mu   sync.Mutex
	held map[string]heldPayout
}

type heldPayout struct {
	ev      core.ApprovalEvent
	outcome core.Outcome
}

// NewApprovalWorker builds a worker. journal may be nil.
func NewApprovalWorker(gate Gate, l Ledger, journal sheets.PayoutJournal) *ApprovalWorker {
	return &ApprovalWorker{
		gate:    gate,
		ledger:  l,
		journal: journal,
		logger:  log.Default(log.ComponentWorker),
		now:     time.Now,
		held:    make(map[string]heldPayout),
	}
}

// HandleReaction processes one reaction message. A nil return acknowledges the
// delivery; an error asks for redelivery, which only happens while the ledger
// cannot reach durable storage.
func (w *ApprovalWorker) HandleReaction(ctx context.Context, msg *amqp.ReactionMessage) error {
	if reason := w.gate.Check(msg); reason != "" {
		w.logger.DebugContext(ctx, "Reaction ignored",
			log.FieldMessageID, msg.MessageID,
			log.FieldReason, reason)
		return nil
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = w.now()
	}
	ev := core.ApprovalEvent{
		MessageID:   msg.MessageID,
		AuthorLabel: authorLabel(msg.AuthorName),
		Text:        msg.Content,
		At:          at,
	}

	outcome, err := w.ledger.ApplyApproval(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrDuplicate):
		w.logger.InfoContext(ctx, "Payout already counted", log.FieldMessageID, msg.MessageID)
		// A redelivery after a failed write lands here; keep it queued until
		// the state is durable.
		if w.ledger.Dirty() {
			if err := w.flush(ctx, msg.MessageID); err != nil {
				return err
			}
		}
		w.journalHeld(ctx, msg.MessageID)
		return nil
	case errors.Is(err, ledger.ErrUnparseable):
		w.logger.InfoContext(ctx, "Approved message has no payout amount",
			log.FieldMessageID, msg.MessageID,
			log.FieldAuthor, ev.AuthorLabel)
		return nil
	case errors.Is(err, ledger.ErrOverflow):
		w.logger.WarnContext(ctx, "Payout rejected, total would overflow",
			log.FieldMessageID, msg.MessageID,
			log.FieldAuthor, ev.AuthorLabel)
		return nil
	case ledger.IsPersistError(err):
		if ferr := w.flush(ctx, msg.MessageID); ferr != nil {
			w.hold(ev, outcome)
			return ferr
		}
	default:
		return fmt.Errorf("apply approval %s: %w", msg.MessageID, err)
	}

	w.logger.InfoContext(ctx, "Payout counted",
		log.NewFields().WithPayout(msg.MessageID, ev.AuthorLabel, outcome.Amount, outcome.Total).ToSlice()...)
	if outcome.MilestoneCrossed {
		w.logger.InfoContext(ctx, "Milestone reached",
			log.FieldMilestone, outcome.Milestone,
			log.FieldTotal, outcome.Total)
	}

	w.journalPayout(ctx, ev, outcome)
	return nil
}

func (w *ApprovalWorker) flush(ctx context.Context, messageID string) error {
	if err := w.ledger.Flush(ctx); err != nil {
		return fmt.Errorf("persist approval %s: %w", messageID, err)
	}
	return nil
}

// journalPayout is best effort: the ledger is the source of truth.
func (w *ApprovalWorker) journalPayout(ctx context.Context, ev core.ApprovalEvent, outcome core.Outcome) {
	if w.journal == nil {
		return
	}
	ref, err := w.journal.Append(ctx, sheets.JournalEntry{
		MessageID: ev.MessageID,
		Author:    ev.AuthorLabel,
		Amount:    outcome.Amount,
		Total:     outcome.Total,
		Milestone: outcome.Milestone,
		At:        ev.At,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to journal payout",
			log.FieldMessageID, ev.MessageID,
			log.FieldError, err,
			log.FieldOperation, log.OpAppend)
		return
	}
	w.logger.DebugContext(ctx, "Payout journaled", log.FieldMessageID, ev.MessageID, "row", ref)
}

func (w *ApprovalWorker) hold(ev core.ApprovalEvent, outcome core.Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held[ev.MessageID] = heldPayout{ev: ev, outcome: outcome}
}

func (w *ApprovalWorker) journalHeld(ctx context.Context, messageID string) {
	w.mu.Lock()
	p, ok := w.held[messageID]
	delete(w.held, messageID)
	w.mu.Unlock()
	if ok {
		w.journalPayout(ctx, p.ev, p.outcome)
	}
}

// authorLabel is the trimmed display name, empty when unknown.
func authorLabel(name string) string {
	return strings.TrimSpace(name)
}
