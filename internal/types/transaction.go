package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction as money coming in or going out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Kinds in display order.
var Kinds = []Kind{KindIncome, KindExpense}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Label returns the human-readable label used in messages and reports.
func (k Kind) Label() string {
	if k == KindIncome {
		return "Income"
	}
	return "Expense"
}

// Emoji returns the emoji the bot uses to mark the kind in messages.
func (k Kind) Emoji() string {
	if k == KindIncome {
		return "💵"
	}
	return "💰"
}

// Transaction is a single persisted ledger entry. All fields are immutable
// after the row is inserted; the sign of Amount is carried by Kind, the
// stored value is always a non-negative magnitude.
type Transaction struct {
	ID          int64
	UserID      int64
	Kind        Kind
	Category    string
	Description string
	Amount      decimal.Decimal
	Date        time.Time
}

// CategoryTotal is a per-category aggregate of one kind of transaction.
type CategoryTotal struct {
	Category string
	Sum      decimal.Decimal
	Count    int
}

// IncomeCategories are the selectable income categories, in keyboard order.
var IncomeCategories = []string{
	"💼 Salary",
	"👨‍💻 Freelance",
	"🎁 Gift",
	"📈 Investments",
	"🏆 Bonus",
	"📱 Other",
}

// ExpenseCategories are the selectable expense categories, in keyboard order.
var ExpenseCategories = []string{
	"🍔 Food",
	"🚗 Transport",
	"🏠 Housing",
	"🎬 Entertainment",
	"🏥 Health",
	"🎓 Education",
	"👕 Clothing",
	"📱 Other",
}

// CategoriesFor returns the category set matching the given kind.
func CategoriesFor(k Kind) []string {
	if k == KindIncome {
		return IncomeCategories
	}
	return ExpenseCategories
}

// ValidCategory reports whether label is a member of the category set for k.
// Matching is exact: labels come from the bot's own keyboards.
func ValidCategory(k Kind, label string) bool {
	for _, c := range CategoriesFor(k) {
		if c == label {
			return true
		}
	}
	return false
}

// ParseAmount parses a user-entered monetary amount. Both "." and "," are
// accepted as the decimal separator. Negative values are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount must not be negative")
	}
	return d, nil
}

// FormatMoney renders a monetary value rounded to two decimal places with
// the configured currency suffix.
func FormatMoney(d decimal.Decimal, currency string) string {
	return d.StringFixed(2) + " " + currency
}
