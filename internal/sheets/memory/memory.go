package memory

import (
	"context"
	"fmt"
	"sync"

	ports "payouts/internal/sheets"
)

// Journal keeps journal rows in memory. Backs the memory store backend and
// tests.
type Journal struct {
	mu      sync.Mutex
	entries []ports.JournalEntry
	failErr error
}

var _ ports.PayoutJournal = (*Journal)(nil)

func New() *Journal {
	return &Journal{}
}

// Append stores the entry and returns a synthetic row reference.
func (j *Journal) Append(_ context.Context, e ports.JournalEntry) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failErr != nil {
		return "", j.failErr
	}
	j.entries = append(j.entries, e)
	return fmt.Sprintf("mem:%d", len(j.entries)), nil
}

// Entries returns a copy of the rows appended so far.
func (j *Journal) Entries() []ports.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ports.JournalEntry(nil), j.entries...)
}

// FailWith makes subsequent appends return err; nil restores normal behavior.
func (j *Journal) FailWith(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failErr = err
}
