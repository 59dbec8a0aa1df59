//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"

	"github.com/google/uuid"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_GoogleSheetsFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	opts := Options{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
	}
	if opts.CredentialsFile == "" && opts.CredentialsJSON == "" {
		t.Skip("service account not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, opts, log.Discard())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	now := time.Now()
	e := core.Expense{
		ID:       uuid.NewString(),
		UserID:   "integration-" + uuid.NewString(),
		Title:    "Integration test",
		Amount:   core.Money{Cents: 123},
		Category: "test",
		Date:     core.DateOf(now),
	}

	ref, err := client.Append(ctx, e)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	t.Logf("appended at %s", ref)

	items, err := client.ListExpenses(ctx, e.UserID, now.Year(), int(now.Month()))
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(items) != 1 || items[0].ID != e.ID {
		t.Fatalf("expected the appended row back, got %+v", items)
	}

	if err := client.DeleteExpense(ctx, e); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
}
