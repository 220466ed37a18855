package google

import (
	"context"
	"strings"
	"testing"
	"time"

	ports "payouts/internal/sheets"
)

func TestNewJournal_MissingSpreadsheetID(t *testing.T) {
	_, err := NewJournal(context.Background(), "  ", "Payouts")
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewJournal_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewJournal(context.Background(), "sheet-id", "Payouts")
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewJournal_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+"/missing.json")

	_, err := NewJournal(context.Background(), "sheet-id", "Payouts")
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestJournal_AppendWithoutService(t *testing.T) {
	j := &Journal{spreadsheetID: "test", sheetName: "Payouts"}
	if _, err := j.Append(context.Background(), ports.JournalEntry{MessageID: "1"}); err == nil {
		t.Fatal("expected error when service is not initialized")
	}
}

func TestJournalRange(t *testing.T) {
	tests := []struct {
		sheet string
		want  string
	}{
		{"Payouts", "Payouts!A:F"},
		{"Payouts 2024", "'Payouts 2024'!A:F"},
		{"Ana's sheet", "'Ana''s sheet'!A:F"},
	}
	for _, tt := range tests {
		if got := journalRange(tt.sheet); got != tt.want {
			t.Errorf("journalRange(%q) = %q, want %q", tt.sheet, got, tt.want)
		}
	}
}

func TestJournalRow(t *testing.T) {
	at := time.Date(2024, 5, 2, 13, 4, 5, 0, time.FixedZone("CEST", 2*3600))
	row := journalRow(ports.JournalEntry{
		MessageID: "1210987654321098765",
		Author:    "=HYPERLINK(\"x\")",
		Amount:    1200,
		Total:     101200,
		Milestone: 100000,
		At:        at,
	})

	want := []any{"2024-05-02 11:04:05", "'1210987654321098765", "'=HYPERLINK(\"x\")", int64(1200), int64(101200), int64(100000)}
	if len(row) != len(want) {
		t.Fatalf("row has %d cells, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %#v, want %#v", i, row[i], want[i])
		}
	}
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"ana":     "ana",
		"":        "",
		"+39 333": "'+39 333",
		"-dash":   "'-dash",
		"@handle": "'@handle",
	}
	for in, want := range tests {
		if got := plainText(in); got != want {
			t.Errorf("plainText(%q) = %q, want %q", in, got, want)
		}
	}
}
