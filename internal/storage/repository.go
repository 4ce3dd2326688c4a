package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"budgeteer/internal/core"
	"budgeteer/internal/records"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

// Sync states of an expense row with respect to the spreadsheet export.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ records.Store = (*SQLiteRepository)(nil)

// PendingExpense identifies an expense row awaiting export.
type PendingExpense struct {
	ID        string
	UpdatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const expenseColumns = `id, amount, description, category, date, payment_method, notes,
	is_recurring, recurring_frequency, created_at, updated_at`

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
	}
	return e, err
}

// SaveExpense upserts the row. Any write marks the row pending so the
// exporter picks up the new state.
func (r *SQLiteRepository) SaveExpense(ctx context.Context, e core.Expense) error {
	if e.ID == "" {
		return errors.New("expense id is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			description = excluded.description,
			category = excluded.category,
			date = excluded.date,
			payment_method = excluded.payment_method,
			notes = excluded.notes,
			is_recurring = excluded.is_recurring,
			recurring_frequency = excluded.recurring_frequency,
			updated_at = excluded.updated_at,
			sync_status = 'pending'`,
		e.ID, e.Amount.String(), e.Description, e.Category, e.Date.String(),
		string(e.PaymentMethod), e.Notes, e.IsRecurring, string(e.RecurringFrequency),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount", e.Amount.String(),
		"category", e.Category,
		"date", e.Date.String())
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if err := requireAffected(res, "expense", id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recurring_runs WHERE expense_id = ?`, id); err != nil {
		return fmt.Errorf("delete recurring run: %w", err)
	}
	return nil
}

const budgetColumns = `id, name, amount, period, category, start_date, end_date, is_active, created_at, updated_at`

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, records.ErrNotFound)
	}
	return b, err
}

func (r *SQLiteRepository) SaveBudget(ctx context.Context, b core.Budget) error {
	if b.ID == "" {
		return errors.New("budget id is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			period = excluded.period,
			category = excluded.category,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		b.ID, b.Name, b.Amount.String(), string(b.Period), b.Category,
		b.StartDate.String(), b.EndDate.String(), b.IsActive,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireAffected(res, "budget", id)
}

func (r *SQLiteRepository) LastRecurringRun(ctx context.Context, expenseID string) (time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT last_run_at FROM recurring_runs WHERE expense_id = ?`, expenseID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get recurring run: %w", err)
	}
	return parseTime(raw)
}

func (r *SQLiteRepository) RecordRecurringRun(ctx context.Context, expenseID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_runs (expense_id, last_run_at) VALUES (?, ?)
		ON CONFLICT(expense_id) DO UPDATE SET last_run_at = excluded.last_run_at`,
		expenseID, formatTime(at))
	if err != nil {
		return fmt.Errorf("record recurring run: %w", err)
	}
	return nil
}

// GetPendingSyncExpenses returns up to limit expenses not yet exported,
// oldest change first.
func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]PendingExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, updated_at FROM expenses
		WHERE sync_status IN ('pending', 'error')
		ORDER BY updated_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending expenses: %w", err)
	}
	defer rows.Close()

	var out []PendingExpense
	for rows.Next() {
		var (
			p   PendingExpense
			raw string
		)
		if err := rows.Scan(&p.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		if p.UpdatedAt, err = parseTime(raw); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced flags the expense as exported, but only if it has not been
// modified since the exported revision.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_status = 'synced', synced_at = ?
		WHERE id = ? AND updated_at = ?`,
		formatTime(time.Now().UTC()), id, formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE expenses SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	return nil
}

// SyncStatus returns the export state of one expense.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM expenses WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync status: %w", err)
	}
	return status, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                          core.Expense
		amount, date, method, freq string
		createdAt, updatedAt       string
	)
	err := s.Scan(&e.ID, &amount, &e.Description, &e.Category, &date, &method, &e.Notes,
		&e.IsRecurring, &freq, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s amount: %w", e.ID, err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s date: %w", e.ID, err)
	}
	e.PaymentMethod = core.PaymentMethod(method)
	e.RecurringFrequency = core.Frequency(freq)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                          core.Budget
		amount, period, start, end string
		createdAt, updatedAt       string
	)
	err := s.Scan(&b.ID, &b.Name, &amount, &period, &b.Category, &start, &end,
		&b.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, err
		}
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}

	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Budget{}, fmt.Errorf("budget %s amount: %w", b.ID, err)
	}
	b.Period = core.Period(period)
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, fmt.Errorf("budget %s start date: %w", b.ID, err)
	}
	if b.EndDate, err = core.ParseDate(end); err != nil {
		return core.Budget{}, fmt.Errorf("budget %s end date: %w", b.ID, err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, records.ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
