package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"budgeteer/internal/core"
	ports "budgeteer/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultExpensesSheet = "Expenses"
	DefaultAlertsSheet   = "Budget Alerts"
)

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	ExpensesSheet string
	AlertsSheet   string
	// Credentials: inline service account JSON wins over a file path. When
	// both are empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
	// Limiter, when set, is waited on before every API request.
	Limiter ports.Waiter
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	alertsSheet   string
	limiter       ports.Waiter
}

var (
	_ ports.ExpenseExporter = (*Client)(nil)
	_ ports.ExpenseRemover  = (*Client)(nil)
	_ ports.AlertSink       = (*Client)(nil)
)

// New creates a Sheets client. Extra client options are appended after the
// credentials and override them.
func New(ctx context.Context, opts Options, extra ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	clientOpts := extra
	if len(extra) == 0 {
		creds, err := loadCredentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := &Client{
		svc:           svc,
		spreadsheetID: id,
		expensesSheet: strings.TrimSpace(opts.ExpensesSheet),
		alertsSheet:   strings.TrimSpace(opts.AlertsSheet),
		limiter:       opts.Limiter,
	}
	if c.expensesSheet == "" {
		c.expensesSheet = DefaultExpensesSheet
	}
	if c.alertsSheet == "" {
		c.alertsSheet = DefaultAlertsSheet
	}

	slog.InfoContext(ctx, "Google Sheets client ready",
		"spreadsheet_id", id,
		"expenses_sheet", c.expensesSheet)
	return c, nil
}

func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Export writes e to the row holding its ID, or appends a new row.
func (c *Client) Export(ctx context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", errors.New("expense has no id")
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return "", err
		}
	}

	vr := &gsheet.ValueRange{Values: [][]any{ports.ExpenseRow(e)}}

	if row := findRow(ids, e.ID); row > 0 {
		rng := a1(c.expensesSheet, fmt.Sprintf("A%d:H%d", row, row))
		if err := c.wait(ctx); err != nil {
			return "", err
		}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		return rng, nil
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(c.expensesSheet, "A:H"), vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.expensesSheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return a1(c.expensesSheet, "A:H"), nil
}

// Remove clears the row holding id.
func (c *Client) Remove(ctx context.Context, id string) error {
	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := findRow(ids, id)
	if row == 0 {
		slog.DebugContext(ctx, "Expense not present in sheet", "id", id)
		return nil
	}

	rng := a1(c.expensesSheet, fmt.Sprintf("A%d:H%d", row, row))
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// RecordAlert appends a to the alerts sheet.
func (c *Client) RecordAlert(ctx context.Context, a ports.BudgetAlert) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{ports.AlertRow(a)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(c.alertsSheet, "A:G"), vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.alertsSheet, err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	rng := a1(c.expensesSheet, "A:A")
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return firstColumn(resp.Values), nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := a1(c.expensesSheet, "A1:H1")
	if err := c.wait(ctx); err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{ports.ExpenseHeader}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// wait takes one request slot from the limiter.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx, ports.ThrottleKey); err != nil {
		return fmt.Errorf("wait for sheets rate limit: %w", err)
	}
	return nil
}
