package stats

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/telegram-finance-bot/internal/db"
	"github.com/lox/telegram-finance-bot/internal/types"
)

func setupEngine(t *testing.T, now time.Time) (*Engine, *db.DB) {
	t.Helper()

	database, err := db.New(t.TempDir(), log.New(io.Discard), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	engine := New(database, log.New(io.Discard), "₽")
	engine.now = func() time.Time { return now }
	return engine, database
}

func add(t *testing.T, database *db.DB, userID int64, kind types.Kind, category, amount string, date time.Time) {
	t.Helper()
	_, err := database.Add(context.Background(), types.Transaction{
		UserID:   userID,
		Kind:     kind,
		Category: category,
		Amount:   decimal.RequireFromString(amount),
		Date:     date,
	})
	require.NoError(t, err)
}

func TestSnapshotBalance(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	engine, database := setupEngine(t, now)

	add(t, database, 1, types.KindIncome, "💼 Salary", "1000", now)
	add(t, database, 1, types.KindExpense, "🍔 Food", "300", now)

	s, err := engine.Snapshot(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, s.TotalIncome.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.TotalExpense.Equal(decimal.NewFromInt(300)))
	assert.True(t, s.Balance().Equal(decimal.NewFromInt(700)))
	assert.Equal(t, 2, s.Operations)

	require.Len(t, s.ExpenseByCat, 1)
	assert.Equal(t, "🍔 Food", s.ExpenseByCat[0].Category)
	assert.True(t, s.ExpenseByCat[0].Sum.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "100", Percentage(s.ExpenseByCat[0].Sum, s.TotalExpense).String())
}

func TestSnapshotMonthlySplit(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	engine, database := setupEngine(t, now)

	add(t, database, 1, types.KindIncome, "💼 Salary", "1000", now)
	add(t, database, 1, types.KindIncome, "💼 Salary", "900", now.AddDate(0, -2, 0))
	add(t, database, 1, types.KindExpense, "🍔 Food", "200", now)
	add(t, database, 1, types.KindExpense, "🍔 Food", "400", now.AddDate(0, -2, 0))

	s, err := engine.Snapshot(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, s.TotalIncome.Equal(decimal.NewFromInt(1900)))
	assert.True(t, s.MonthIncome.Equal(decimal.NewFromInt(1000)))
	assert.True(t, s.MonthExpense.Equal(decimal.NewFromInt(200)))
	assert.True(t, s.MonthBalance().Equal(decimal.NewFromInt(800)))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0", Percentage(decimal.NewFromInt(100), decimal.Zero).String())
	assert.Equal(t, "50", Percentage(decimal.NewFromInt(50), decimal.NewFromInt(100)).String())
	assert.Equal(t, "33.3", Percentage(decimal.NewFromInt(1), decimal.NewFromInt(3)).String())
}

func TestPercentagesSumToHundred(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	engine, database := setupEngine(t, now)

	add(t, database, 1, types.KindExpense, "🍔 Food", "123.45", now)
	add(t, database, 1, types.KindExpense, "🚗 Transport", "67.89", now)
	add(t, database, 1, types.KindExpense, "🏠 Housing", "10.10", now)

	s, err := engine.Snapshot(context.Background(), 1)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, ct := range s.ExpenseByCat {
		sum = sum.Add(Percentage(ct.Sum, s.TotalExpense))
	}
	// Within rounding tolerance of 100%
	diff := sum.Sub(decimal.NewFromInt(100)).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.3")),
		"percentages should sum to ~100, got %s", sum)
}

func TestStatisticsMessage(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	engine, database := setupEngine(t, now)

	add(t, database, 1, types.KindIncome, "💼 Salary", "1000", now)
	add(t, database, 1, types.KindExpense, "🍔 Food", "300", now)

	text, err := engine.StatisticsMessage(context.Background(), 1)
	require.NoError(t, err)

	assert.Contains(t, text, "1000.00 ₽")
	assert.Contains(t, text, "300.00 ₽")
	assert.Contains(t, text, "700.00 ₽")
	assert.Contains(t, text, "🍔 Food")
	assert.Contains(t, text, "(100%)")
}

func TestRecentMessageEmpty(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	engine, _ := setupEngine(t, now)

	text, err := engine.RecentMessage(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, text, "no recorded operations")
}

func TestRecentMessage(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	engine, database := setupEngine(t, now)

	_, err := database.Add(context.Background(), types.Transaction{
		UserID:      1,
		Kind:        types.KindExpense,
		Category:    "🍔 Food",
		Description: "lunch",
		Amount:      decimal.RequireFromString("12.50"),
		Date:        now,
	})
	require.NoError(t, err)

	text, err := engine.RecentMessage(context.Background(), 1)
	require.NoError(t, err)

	assert.Contains(t, text, "Expense: 12.50 ₽")
	assert.Contains(t, text, "🍔 Food")
	assert.Contains(t, text, "lunch")
	assert.Contains(t, text, "15.06.2024")
}
