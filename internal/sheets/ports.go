package sheets

import (
	"context"
	"time"
)

// JournalEntry is one accepted payout as written to the journal.
type JournalEntry struct {
	MessageID string
	Author    string
	Amount    int64
	Total     int64
	Milestone int64
	At        time.Time
}

// Ports for outbound adapters.
type (
	// PayoutJournal records accepted payouts somewhere humans can audit them.
	// It is an append-only side channel; the ledger never reads it back.
	PayoutJournal interface {
		Append(ctx context.Context, e JournalEntry) (rowRef string, err error)
	}
)
