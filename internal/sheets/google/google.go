package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"payouts/internal/log"
	ports "payouts/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Journal appends accepted payouts to a Google Sheet, one row per payout:
// timestamp, message id, author, amount, running total, milestone.
type Journal struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.PayoutJournal = (*Journal)(nil)

// NewJournal creates a journal client with Service Account credentials taken
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewJournal(ctx context.Context, spreadsheetID, sheetName string) (*Journal, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Payouts"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Journal{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        log.Default(log.ComponentJournal),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// Append writes one row after the last used row of the journal sheet.
func (j *Journal) Append(ctx context.Context, e ports.JournalEntry) (string, error) {
	if j.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := journalRange(j.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{journalRow(e)}}

	resp, err := j.svc.Spreadsheets.Values.Append(j.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", rng, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	j.logger.DebugContext(ctx, "Payout journaled",
		log.FieldMessageID, e.MessageID,
		log.FieldAmount, e.Amount,
		"range", ref)
	return ref, nil
}

func journalRange(sheetName string) string {
	return fmt.Sprintf("%s!A:F", quoteSheetName(sheetName))
}

// quoteSheetName wraps names containing spaces or quotes in A1 single quotes.
func quoteSheetName(name string) string {
	if !strings.ContainsAny(name, " '!") {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func journalRow(e ports.JournalEntry) []any {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return []any{
		at.UTC().Format("2006-01-02 15:04:05"),
		// Message ids are snowflakes; as numbers the sheet would round them.
		"'" + e.MessageID,
		plainText(e.Author),
		e.Amount,
		e.Total,
		e.Milestone,
	}
}

// plainText stops USER_ENTERED from evaluating author names as formulas.
func plainText(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
