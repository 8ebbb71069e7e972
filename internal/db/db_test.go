package db

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/telegram-finance-bot/internal/types"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	return setupTestDBIn(t, time.UTC)
}

func setupTestDBIn(t *testing.T, timezone *time.Location) *DB {
	t.Helper()

	// Create a temporary directory for the test database
	tempDir, err := os.MkdirTemp("", "finance-bot-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	// Create a logger that discards output
	logger := log.New(io.Discard)

	db, err := New(tempDir, logger, timezone)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func add(t *testing.T, db *DB, userID int64, kind types.Kind, category, amount string, date time.Time) types.Transaction {
	t.Helper()

	stored, err := db.Add(context.Background(), types.Transaction{
		UserID:   userID,
		Kind:     kind,
		Category: category,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
	})
	if err != nil {
		t.Fatalf("failed to add transaction: %v", err)
	}
	return stored
}

func TestAddAssignsIDAndTimestamp(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.Add(ctx, types.Transaction{
		UserID:      1,
		Kind:        types.KindIncome,
		Category:    "💼 Salary",
		Description: "June payroll",
		Amount:      decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("failed to add transaction: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected an assigned id")
	}
	if first.Date.IsZero() {
		t.Fatal("expected an assigned timestamp")
	}

	second, err := db.Add(ctx, types.Transaction{
		UserID:   1,
		Kind:     types.KindExpense,
		Category: "🍔 Food",
		Amount:   decimal.NewFromInt(300),
	})
	if err != nil {
		t.Fatalf("failed to add transaction: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected monotonically increasing ids, got %d then %d", first.ID, second.ID)
	}
}

func TestAddRejectsInvalidTransactions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Add(ctx, types.Transaction{
		UserID:   1,
		Kind:     types.Kind("transfer"),
		Category: "🍔 Food",
		Amount:   decimal.NewFromInt(10),
	})
	if err == nil {
		t.Error("expected error for unknown kind")
	}

	_, err = db.Add(ctx, types.Transaction{
		UserID:   1,
		Kind:     types.KindExpense,
		Category: "🍔 Food",
		Amount:   decimal.NewFromInt(-10),
	})
	if err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestTotals(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	add(t, db, 1, types.KindIncome, "💼 Salary", "1000", now)
	add(t, db, 1, types.KindExpense, "🍔 Food", "300", now)
	add(t, db, 1, types.KindExpense, "🚗 Transport", "120.50", now)
	// Another user's rows must never leak into user 1's aggregates
	add(t, db, 2, types.KindExpense, "🍔 Food", "9999", now)

	income, err := db.Total(ctx, 1, types.KindIncome)
	if err != nil {
		t.Fatalf("failed to total income: %v", err)
	}
	if !income.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected income 1000, got %s", income)
	}

	expense, err := db.Total(ctx, 1, types.KindExpense)
	if err != nil {
		t.Fatalf("failed to total expenses: %v", err)
	}
	if !expense.Equal(decimal.RequireFromString("420.50")) {
		t.Errorf("expected expenses 420.50, got %s", expense)
	}
}

func TestTotalEmptyIsZero(t *testing.T) {
	db := setupTestDB(t)

	total, err := db.Total(context.Background(), 42, types.KindIncome)
	if err != nil {
		t.Fatalf("failed to total income: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("expected zero total for empty ledger, got %s", total)
	}
}

func TestMonthlyTotal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	june := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	add(t, db, 1, types.KindExpense, "🍔 Food", "100", june)
	add(t, db, 1, types.KindExpense, "🍔 Food", "50", june)
	add(t, db, 1, types.KindExpense, "🍔 Food", "75", may)

	total, err := db.MonthlyTotal(ctx, 1, types.KindExpense, june)
	if err != nil {
		t.Fatalf("failed to total month: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected June total 150, got %s", total)
	}
}

func TestMonthlyTotalLocalMonthBoundary(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	db := setupTestDBIn(t, msk)
	ctx := context.Background()

	// 00:30 local on June 1 is still May 31 in UTC; it must count as June
	earlyJune := time.Date(2024, 6, 1, 0, 30, 0, 0, msk)
	lateMay := time.Date(2024, 5, 31, 23, 30, 0, 0, msk)

	add(t, db, 1, types.KindExpense, "🍔 Food", "100", earlyJune)
	add(t, db, 1, types.KindExpense, "🍔 Food", "40", lateMay)

	june, err := db.MonthlyTotal(ctx, 1, types.KindExpense, time.Date(2024, 6, 15, 12, 0, 0, 0, msk))
	if err != nil {
		t.Fatalf("failed to total June: %v", err)
	}
	if !june.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected June total 100, got %s", june)
	}

	may, err := db.MonthlyTotal(ctx, 1, types.KindExpense, time.Date(2024, 5, 15, 12, 0, 0, 0, msk))
	if err != nil {
		t.Fatalf("failed to total May: %v", err)
	}
	if !may.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected May total 40, got %s", may)
	}
}

func TestByCategoryOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	add(t, db, 1, types.KindExpense, "🍔 Food", "100", now)
	add(t, db, 1, types.KindExpense, "🍔 Food", "200", now)
	add(t, db, 1, types.KindExpense, "🚗 Transport", "500", now)
	add(t, db, 1, types.KindExpense, "🏠 Housing", "50", now)
	add(t, db, 1, types.KindIncome, "💼 Salary", "9000", now)

	totals, err := db.ByCategory(ctx, 1, types.KindExpense)
	if err != nil {
		t.Fatalf("failed to query category totals: %v", err)
	}

	if len(totals) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(totals))
	}
	if totals[0].Category != "🚗 Transport" || !totals[0].Sum.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected Transport 500 first, got %s %s", totals[0].Category, totals[0].Sum)
	}
	if totals[1].Category != "🍔 Food" || totals[1].Count != 2 {
		t.Errorf("expected Food with 2 operations second, got %s with %d", totals[1].Category, totals[1].Count)
	}
	if totals[2].Category != "🏠 Housing" {
		t.Errorf("expected Housing last, got %s", totals[2].Category)
	}
}

func TestTopExpenses(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	add(t, db, 1, types.KindExpense, "🍔 Food", "10", now)
	add(t, db, 1, types.KindExpense, "🏠 Housing", "800", now)
	add(t, db, 1, types.KindExpense, "🚗 Transport", "50", now)
	add(t, db, 1, types.KindIncome, "💼 Salary", "5000", now)

	top, err := db.TopExpenses(ctx, 1, 2)
	if err != nil {
		t.Fatalf("failed to query top expenses: %v", err)
	}

	if len(top) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(top))
	}
	if top[0].Category != "🏠 Housing" {
		t.Errorf("expected Housing first, got %s", top[0].Category)
	}
	if top[1].Category != "🚗 Transport" {
		t.Errorf("expected Transport second, got %s", top[1].Category)
	}
}

func TestTransactionsSince(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	add(t, db, 1, types.KindExpense, "🍔 Food", "10", old)
	add(t, db, 1, types.KindExpense, "🚗 Transport", "20", recent)

	got, err := db.TransactionsSince(ctx, 1, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction in window, got %d", len(got))
	}
	if got[0].Category != "🚗 Transport" {
		t.Errorf("expected the recent transaction, got %s", got[0].Category)
	}

	all, err := db.TransactionsSince(ctx, 1, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected every transaction for all_time window, got %d", len(all))
	}
	// Newest first
	if !all[0].Date.After(all[1].Date) {
		t.Errorf("expected descending date order, got %s before %s", all[0].Date, all[1].Date)
	}
}

func TestRecentOrderAndDescription(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	first := add(t, db, 1, types.KindExpense, "🍔 Food", "10", now)
	stored, err := db.Add(ctx, types.Transaction{
		UserID:      1,
		Kind:        types.KindIncome,
		Category:    "🎁 Gift",
		Description: "birthday",
		Amount:      decimal.NewFromInt(50),
		Date:        now,
	})
	if err != nil {
		t.Fatalf("failed to add transaction: %v", err)
	}

	recent, err := db.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("failed to query recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(recent))
	}
	if recent[0].ID != stored.ID || recent[1].ID != first.ID {
		t.Errorf("expected newest first, got ids %d, %d", recent[0].ID, recent[1].ID)
	}
	if recent[0].Description != "birthday" {
		t.Errorf("expected description to round-trip, got %q", recent[0].Description)
	}
}

func TestDeleteAll(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	add(t, db, 1, types.KindExpense, "🍔 Food", "10", now)
	add(t, db, 1, types.KindIncome, "💼 Salary", "100", now)
	add(t, db, 2, types.KindExpense, "🍔 Food", "30", now)

	removed, err := db.DeleteAll(ctx, 1)
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 rows removed, got %d", removed)
	}

	count, err := db.Count(ctx, 1)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty ledger for user 1, got %d rows", count)
	}

	// Other users are untouched
	otherCount, err := db.Count(ctx, 2)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if otherCount != 1 {
		t.Errorf("expected user 2's data to survive, got %d rows", otherCount)
	}
}
