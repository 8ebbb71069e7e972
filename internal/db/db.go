package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/telegram-finance-bot/internal/types"
)

// DB is the SQLite-backed transaction ledger. Rows are only ever inserted
// or bulk-deleted per user; nothing is updated in place.
type DB struct {
	db       *sql.DB
	logger   *log.Logger
	timezone *time.Location
}

// New opens (creating if necessary) the ledger database in dataDir.
func New(dataDir string, logger *log.Logger, timezone *time.Location) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "finance.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to set database pragmas: %v", err)
	}

	d := &DB{
		db:       db,
		logger:   logger,
		timezone: timezone,
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %v", err)
	}

	return d, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			amount DECIMAL(15,2) NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			category TEXT NOT NULL,
			description TEXT,
			date TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create transactions table: %v", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_user_type ON transactions(user_id, type)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date)",
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

// Add inserts a new transaction and returns it with the assigned ID and
// timestamp. A zero Date is replaced with the current time in the store's
// timezone. The insert is a single statement: the row lands fully or not
// at all.
func (d *DB) Add(ctx context.Context, t types.Transaction) (types.Transaction, error) {
	if !t.Kind.Valid() {
		return types.Transaction{}, fmt.Errorf("invalid transaction kind %q", t.Kind)
	}
	if t.Amount.IsNegative() {
		return types.Transaction{}, fmt.Errorf("transaction amount must not be negative")
	}
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	// Store every timestamp in the configured timezone so the text encoding
	// carries a uniform offset; range filters compare these values as text.
	t.Date = t.Date.In(d.timezone)

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, amount, type, category, description, date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.UserID, t.Amount, string(t.Kind), t.Category, t.Description, t.Date)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("failed to store transaction: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return types.Transaction{}, fmt.Errorf("failed to get transaction id: %v", err)
	}
	t.ID = id

	d.logger.Debug("Transaction stored",
		"id", t.ID, "user", t.UserID, "kind", t.Kind, "category", t.Category, "amount", t.Amount)
	return t, nil
}

// TransactionsSince returns a user's transactions dated at or after since,
// newest first.
func (d *DB) TransactionsSince(ctx context.Context, userID int64, since time.Time) ([]types.Transaction, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, category, description, date
		FROM transactions
		WHERE user_id = ? AND date >= ?
		ORDER BY date DESC, id DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows, d.timezone)
}

// Recent returns the user's most recently added transactions, newest first.
func (d *DB) Recent(ctx context.Context, userID int64, limit int) ([]types.Transaction, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, category, description, date
		FROM transactions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows, d.timezone)
}

// Total returns the sum of amounts for a user's transactions of the given
// kind, zero if there are none.
func (d *DB) Total(ctx context.Context, userID int64, kind types.Kind) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = ? AND type = ?
	`, userID, string(kind)).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return total, nil
}

// MonthlyTotal returns the sum of amounts for the calendar month containing
// month, zero if there are none. The month's bounds are taken in the store's
// timezone and compared as half-open range filters; SQLite's own date
// functions normalize offset-bearing timestamps to UTC and would mis-bucket
// rows near a month boundary.
func (d *DB) MonthlyTotal(ctx context.Context, userID int64, kind types.Kind, month time.Time) (decimal.Decimal, error) {
	local := month.In(d.timezone)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, d.timezone)
	end := start.AddDate(0, 1, 0)

	var total decimal.Decimal
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = ? AND type = ? AND date >= ? AND date < ?
	`, userID, string(kind), start, end).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to sum monthly transactions: %w", err)
	}
	return total, nil
}

// ByCategory returns per-category sums and operation counts for a user's
// transactions of the given kind, largest sum first. Ties break on
// category name so the order is stable.
func (d *DB) ByCategory(ctx context.Context, userID int64, kind types.Kind) ([]types.CategoryTotal, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT category, SUM(amount), COUNT(*)
		FROM transactions
		WHERE user_id = ? AND type = ?
		GROUP BY category
		ORDER BY SUM(amount) DESC, category ASC
	`, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	var totals []types.CategoryTotal
	for rows.Next() {
		var ct types.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Sum, &ct.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}

	return totals, nil
}

// TopExpenses returns the user's limit largest expense transactions.
// Ties break on id so the order is stable.
func (d *DB) TopExpenses(ctx context.Context, userID int64, limit int) ([]types.Transaction, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, category, description, date
		FROM transactions
		WHERE user_id = ? AND type = 'expense'
		ORDER BY amount DESC, id ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top expenses: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows, d.timezone)
}

// Count returns the number of transactions stored for the user.
func (d *DB) Count(ctx context.Context, userID int64) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE user_id = ?
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DeleteAll removes every transaction belonging to the user and returns
// the number of rows removed.
func (d *DB) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	result, err := d.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE user_id = ?
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	d.logger.Info("Deleted all transactions", "user", userID, "removed", removed)
	return removed, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func scanTransactions(rows *sql.Rows, timezone *time.Location) ([]types.Transaction, error) {
	var transactions []types.Transaction
	for rows.Next() {
		var t types.Transaction
		var kind string
		var description sql.NullString
		var date time.Time

		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &kind, &t.Category, &description, &date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		t.Kind = types.Kind(kind)
		t.Description = description.String
		t.Date = date.In(timezone)
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
