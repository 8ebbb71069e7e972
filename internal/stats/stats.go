package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/telegram-finance-bot/internal/types"
)

// Store is the read-side surface of the transaction ledger that the engine
// aggregates over.
type Store interface {
	Total(ctx context.Context, userID int64, kind types.Kind) (decimal.Decimal, error)
	MonthlyTotal(ctx context.Context, userID int64, kind types.Kind, month time.Time) (decimal.Decimal, error)
	ByCategory(ctx context.Context, userID int64, kind types.Kind) ([]types.CategoryTotal, error)
	TopExpenses(ctx context.Context, userID int64, limit int) ([]types.Transaction, error)
	Recent(ctx context.Context, userID int64, limit int) ([]types.Transaction, error)
	Count(ctx context.Context, userID int64) (int, error)
}

// Engine computes read-only aggregate views over a user's transactions.
type Engine struct {
	store    Store
	logger   *log.Logger
	currency string
	now      func() time.Time
}

// New creates a statistics engine over the given store.
func New(store Store, logger *log.Logger, currency string) *Engine {
	return &Engine{
		store:    store,
		logger:   logger,
		currency: currency,
		now:      time.Now,
	}
}

// Snapshot is a point-in-time view of a user's finances, consumed by the
// statistics message and the AI advisor.
type Snapshot struct {
	TotalIncome     decimal.Decimal
	TotalExpense    decimal.Decimal
	MonthIncome     decimal.Decimal
	MonthExpense    decimal.Decimal
	ExpenseByCat    []types.CategoryTotal
	LargestExpenses []types.Transaction
	Operations      int
}

// Balance is total income minus total expense.
func (s *Snapshot) Balance() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// MonthBalance is the current month's income minus expense.
func (s *Snapshot) MonthBalance() decimal.Decimal {
	return s.MonthIncome.Sub(s.MonthExpense)
}

// Percentage returns part/total*100 rounded to one decimal place, and zero
// when total is zero.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
}

// Snapshot gathers every aggregate the advisor and statistics views need.
// The queries are independent reads; the store provides whatever snapshot
// consistency SQLite naturally gives short-lived sequential queries.
func (e *Engine) Snapshot(ctx context.Context, userID int64) (*Snapshot, error) {
	s := &Snapshot{}
	now := e.now()

	var err error
	if s.TotalIncome, err = e.store.Total(ctx, userID, types.KindIncome); err != nil {
		return nil, fmt.Errorf("failed to compute total income: %w", err)
	}
	if s.TotalExpense, err = e.store.Total(ctx, userID, types.KindExpense); err != nil {
		return nil, fmt.Errorf("failed to compute total expense: %w", err)
	}
	if s.MonthIncome, err = e.store.MonthlyTotal(ctx, userID, types.KindIncome, now); err != nil {
		return nil, fmt.Errorf("failed to compute monthly income: %w", err)
	}
	if s.MonthExpense, err = e.store.MonthlyTotal(ctx, userID, types.KindExpense, now); err != nil {
		return nil, fmt.Errorf("failed to compute monthly expense: %w", err)
	}
	if s.ExpenseByCat, err = e.store.ByCategory(ctx, userID, types.KindExpense); err != nil {
		return nil, fmt.Errorf("failed to compute category breakdown: %w", err)
	}
	if s.LargestExpenses, err = e.store.TopExpenses(ctx, userID, 3); err != nil {
		return nil, fmt.Errorf("failed to fetch largest expenses: %w", err)
	}
	if s.Operations, err = e.store.Count(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to count operations: %w", err)
	}

	return s, nil
}

// StatisticsMessage renders the overall statistics view sent in chat.
func (e *Engine) StatisticsMessage(ctx context.Context, userID int64) (string, error) {
	s, err := e.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("📊 *OVERALL STATISTICS*\n\n")
	fmt.Fprintf(&b, "💵 *Income:* %s\n", e.money(s.TotalIncome))
	fmt.Fprintf(&b, "💰 *Expenses:* %s\n", e.money(s.TotalExpense))
	fmt.Fprintf(&b, "⚖️ *Balance:* %s\n", e.money(s.Balance()))

	if len(s.ExpenseByCat) > 0 {
		b.WriteString("\n📈 *EXPENSES BY CATEGORY:*\n")
		for _, ct := range s.ExpenseByCat {
			pct := Percentage(ct.Sum, s.TotalExpense)
			fmt.Fprintf(&b, "• %s: %s (%s%%)\n", ct.Category, e.money(ct.Sum), pct.String())
		}
	}

	return b.String(), nil
}

// RecentMessage renders the last ten transactions as a chat message, or a
// "nothing recorded yet" note for an empty ledger.
func (e *Engine) RecentMessage(ctx context.Context, userID int64) (string, error) {
	transactions, err := e.store.Recent(ctx, userID, 10)
	if err != nil {
		return "", err
	}

	if len(transactions) == 0 {
		return "📭 You have no recorded operations yet", nil
	}

	var b strings.Builder
	b.WriteString("📋 *RECENT OPERATIONS:*\n\n")
	for i, t := range transactions {
		fmt.Fprintf(&b, "%d. %s *%s: %s*\n", i+1, t.Kind.Emoji(), t.Kind.Label(), e.money(t.Amount))
		fmt.Fprintf(&b, "   🏷️ %s\n", t.Category)
		if t.Description != "" {
			fmt.Fprintf(&b, "   📝 %s\n", t.Description)
		}
		fmt.Fprintf(&b, "   🕒 %s\n\n", t.Date.Format("02.01.2006 15:04"))
	}

	return b.String(), nil
}

func (e *Engine) money(d decimal.Decimal) string {
	return types.FormatMoney(d, e.currency)
}
