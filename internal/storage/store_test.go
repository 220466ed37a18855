package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"payouts/internal/core"
)

// storeFactories lets every test run against each implementation.
func storeFactories(t *testing.T) map[string]func() SnapshotStore {
	t.Helper()
	return map[string]func() SnapshotStore{
		"memory": func() SnapshotStore { return NewMemoryStore() },
		"file": func() SnapshotStore {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "data", "data.json"))
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return s
		},
		"sqlite": func() SnapshotStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "payouts.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		},
	}
}

func sampleState() core.LedgerState {
	return core.LedgerState{
		Total:                  260000,
		Step:                   100000,
		LastPayout:             210000,
		LastStudent:            "ana",
		LastAt:                 1700000000000,
		CountedMessageIDs:      []string{"m1", "m2", "m3"},
		LastMilestoneAnnounced: 200000,
		MilestoneJustHit:       true,
	}
}

func TestStores_LoadEmpty(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			if _, err := s.Load(context.Background()); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStores_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			want := sampleState()
			if err := s.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Load() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestStores_OverwriteAndShrink(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			st := sampleState()
			if err := s.Save(ctx, st); err != nil {
				t.Fatalf("Save: %v", err)
			}

			// Append one id: incremental path.
			st.CountedMessageIDs = append(st.CountedMessageIDs, "m4")
			st.Total += 10
			if err := s.Save(ctx, st); err != nil {
				t.Fatalf("Save append: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got.CountedMessageIDs, []string{"m1", "m2", "m3", "m4"}) {
				t.Fatalf("ids after append = %v", got.CountedMessageIDs)
			}

			// Reset then recount a different id at the same length: rewrite path.
			reset := core.DefaultState(st.Step)
			if err := s.Save(ctx, reset); err != nil {
				t.Fatalf("Save reset: %v", err)
			}
			got, err = s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, reset) {
				t.Fatalf("Load() after reset = %+v, want %+v", got, reset)
			}

			diverged := core.DefaultState(st.Step)
			diverged.CountedMessageIDs = []string{"x1", "m2", "m3", "m4"}
			if err := s.Save(ctx, diverged); err != nil {
				t.Fatalf("Save diverged: %v", err)
			}
			got, err = s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got.CountedMessageIDs, diverged.CountedMessageIDs) {
				t.Fatalf("ids after rewrite = %v", got.CountedMessageIDs)
			}
		})
	}
}

func TestFileStore_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFileStore_RecordLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Save(context.Background(), sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, key := range []string{`"total"`, `"step"`, `"lastPayout"`, `"lastStudent"`, `"lastAt"`, `"countedMessageIds"`, `"lastMilestoneAnnounced"`, `"milestoneJustHit"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("record missing key %s: %s", key, data)
		}
	}
	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the record in the data dir, found %d entries", len(entries))
	}
}

func TestLoadOrDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("absent record yields defaults", func(t *testing.T) {
		got, err := LoadOrDefault(ctx, NewMemoryStore(), 500)
		if err != nil {
			t.Fatalf("LoadOrDefault: %v", err)
		}
		if !reflect.DeepEqual(got, core.DefaultState(500)) {
			t.Fatalf("got %+v, want defaults", got)
		}
	})

	t.Run("malformed record yields defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		if err := os.WriteFile(path, []byte("[]"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		s, _ := NewFileStore(path)
		got, err := LoadOrDefault(ctx, s, 500)
		if err != nil {
			t.Fatalf("LoadOrDefault: %v", err)
		}
		if !reflect.DeepEqual(got, core.DefaultState(500)) {
			t.Fatalf("got %+v, want defaults", got)
		}
	})

	t.Run("configured step overrides stored step", func(t *testing.T) {
		s := NewMemoryStore()
		st := sampleState()
		_ = s.Save(ctx, st)
		got, err := LoadOrDefault(ctx, s, 50000)
		if err != nil {
			t.Fatalf("LoadOrDefault: %v", err)
		}
		if got.Step != 50000 || got.Total != st.Total || len(got.CountedMessageIDs) != 3 {
			t.Fatalf("unexpected state %+v", got)
		}
	})

	t.Run("invalid record keeps counted ids", func(t *testing.T) {
		s := NewMemoryStore()
		st := sampleState()
		st.Total = -446744073709551616
		_ = s.Save(ctx, st)
		got, err := LoadOrDefault(ctx, s, 100000)
		if err != nil {
			t.Fatalf("LoadOrDefault: %v", err)
		}
		if got.Total != 0 || got.LastMilestoneAnnounced != 0 {
			t.Fatalf("counters not reset: %+v", got)
		}
		if !reflect.DeepEqual(got.CountedMessageIDs, []string{"m1", "m2", "m3"}) {
			t.Fatalf("counted ids = %v, want them kept", got.CountedMessageIDs)
		}
	})

	t.Run("io errors propagate", func(t *testing.T) {
		_, err := LoadOrDefault(ctx, failingStore{err: errors.New("disk gone")}, 100)
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) (core.LedgerState, error) { return core.LedgerState{}, f.err }
func (f failingStore) Save(context.Context, core.LedgerState) error { return f.err }
func (f failingStore) Close() error { return nil }
