package core

import (
	"errors"
	"fmt"
	"time"
)

// DefaultStep is the milestone granularity used when none is configured.
const DefaultStep int64 = 100000

var ErrInvalidStep = errors.New("step must be positive")

// LedgerState is the single persisted aggregate. The JSON layout is the
// durable record format.
type LedgerState struct {
	Total                  int64    `json:"total"`
	Step                   int64    `json:"step"`
	LastPayout             int64    `json:"lastPayout"`
	LastStudent            string   `json:"lastStudent"`
	LastAt                 int64    `json:"lastAt"`
	CountedMessageIDs      []string `json:"countedMessageIds"`
	LastMilestoneAnnounced int64    `json:"lastMilestoneAnnounced"`
	MilestoneJustHit       bool     `json:"milestoneJustHit"`
}

// DefaultState returns the first-run state for the given step.
func DefaultState(step int64) LedgerState {
	return LedgerState{
		Step:              step,
		CountedMessageIDs: []string{},
	}
}

// Clone returns a deep copy so callers can hand the state to a store without
// sharing the id slice.
func (s LedgerState) Clone() LedgerState {
	out := s
	out.CountedMessageIDs = make([]string, len(s.CountedMessageIDs))
	copy(out.CountedMessageIDs, s.CountedMessageIDs)
	return out
}

// Validate checks the structural invariants of a loaded record.
func (s LedgerState) Validate() error {
	if s.Step <= 0 {
		return ErrInvalidStep
	}
	if s.Total < 0 || s.LastPayout < 0 || s.LastAt < 0 || s.LastMilestoneAnnounced < 0 {
		return fmt.Errorf("negative counter in ledger state")
	}
	if s.LastMilestoneAnnounced > s.Total {
		return fmt.Errorf("milestone %d above total %d", s.LastMilestoneAnnounced, s.Total)
	}
	return nil
}

// Snapshot is the externally observable projection of the ledger.
type Snapshot struct {
	Total            int64  `json:"total"`
	Step             int64  `json:"step"`
	LastPayout       int64  `json:"lastPayout"`
	LastStudent      string `json:"lastStudent"`
	LastAt           int64  `json:"lastAt"`
	Milestone        int64  `json:"milestone"`
	MilestoneJustHit bool   `json:"milestoneJustHit"`
}

// Project returns the snapshot view of s.
func (s LedgerState) Project() Snapshot {
	return Snapshot{
		Total:            s.Total,
		Step:             s.Step,
		LastPayout:       s.LastPayout,
		LastStudent:      s.LastStudent,
		LastAt:           s.LastAt,
		Milestone:        s.LastMilestoneAnnounced,
		MilestoneJustHit: s.MilestoneJustHit,
	}
}

// ApprovalEvent is a reaction that already passed the approval gate.
type ApprovalEvent struct {
	MessageID   string
	AuthorLabel string
	Text        string
	At          time.Time
}

// Outcome describes an accepted approval.
type Outcome struct {
	Amount           int64
	Total            int64
	Milestone        int64
	MilestoneCrossed bool
}
