package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"payouts/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the ledger in two tables: a single-row ledger_state and
// the ordered counted_messages set.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; the ledger serializes access anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (core.LedgerState, error) {
	var (
		state core.LedgerState
		hit   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT total, step, last_payout, last_student, last_at, last_milestone_announced, milestone_just_hit
		FROM ledger_state WHERE id = 1`).
		Scan(&state.Total, &state.Step, &state.LastPayout, &state.LastStudent, &state.LastAt, &state.LastMilestoneAnnounced, &hit)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerState{}, ErrNotFound
	}
	if err != nil {
		return core.LedgerState{}, fmt.Errorf("query ledger state: %w", err)
	}
	state.MilestoneJustHit = hit != 0

	rows, err := s.db.QueryContext(ctx, `SELECT message_id FROM counted_messages ORDER BY position`)
	if err != nil {
		return core.LedgerState{}, fmt.Errorf("query counted messages: %w", err)
	}
	defer rows.Close()

	state.CountedMessageIDs = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return core.LedgerState{}, fmt.Errorf("scan counted message: %w", err)
		}
		state.CountedMessageIDs = append(state.CountedMessageIDs, id)
	}
	if err := rows.Err(); err != nil {
		return core.LedgerState{}, fmt.Errorf("iterate counted messages: %w", err)
	}
	return state, nil
}

// Save writes the full state in one transaction. The id set is append-only
// between resets, so only the missing tail is inserted when the stored prefix
// still matches; otherwise the set is rewritten.
func (s *SQLiteStore) Save(ctx context.Context, state core.LedgerState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	hit := 0
	if state.MilestoneJustHit {
		hit = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_state (id, total, step, last_payout, last_student, last_at, last_milestone_announced, milestone_just_hit, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			total = excluded.total,
			step = excluded.step,
			last_payout = excluded.last_payout,
			last_student = excluded.last_student,
			last_at = excluded.last_at,
			last_milestone_announced = excluded.last_milestone_announced,
			milestone_just_hit = excluded.milestone_just_hit,
			updated_at = CURRENT_TIMESTAMP`,
		state.Total, state.Step, state.LastPayout, state.LastStudent, state.LastAt, state.LastMilestoneAnnounced, hit)
	if err != nil {
		return fmt.Errorf("upsert ledger state: %w", err)
	}

	start, err := storedPrefix(ctx, tx, state.CountedMessageIDs)
	if err != nil {
		return err
	}
	if start == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM counted_messages`); err != nil {
			return fmt.Errorf("clear counted messages: %w", err)
		}
	}

	if start < len(state.CountedMessageIDs) {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO counted_messages (position, message_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare counted message insert: %w", err)
		}
		defer stmt.Close()
		for i := start; i < len(state.CountedMessageIDs); i++ {
			if _, err := stmt.ExecContext(ctx, i, state.CountedMessageIDs[i]); err != nil {
				return fmt.Errorf("insert counted message %q: %w", state.CountedMessageIDs[i], err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger state: %w", err)
	}

	slog.DebugContext(ctx, "Ledger state saved to SQLite",
		"total", state.Total,
		"counted", len(state.CountedMessageIDs),
		"inserted", len(state.CountedMessageIDs)-start)
	return nil
}

// storedPrefix returns how many leading ids are already stored in order, or 0
// when the stored set diverges and must be rewritten.
func storedPrefix(ctx context.Context, tx *sql.Tx, ids []string) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT position, message_id FROM counted_messages ORDER BY position`)
	if err != nil {
		return 0, fmt.Errorf("read counted messages: %w", err)
	}
	defer rows.Close()

	n := 0
	diverged := false
	for rows.Next() {
		var (
			pos int
			id  string
		)
		if err := rows.Scan(&pos, &id); err != nil {
			return 0, fmt.Errorf("scan counted message: %w", err)
		}
		if diverged {
			continue
		}
		if pos != n || n >= len(ids) || ids[n] != id {
			diverged = true
			continue
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate counted messages: %w", err)
	}
	if diverged {
		return 0, nil
	}
	return n, nil
}
