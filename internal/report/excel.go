// Package report renders a user's transactions for a selected period into
// a formatted three-sheet Excel workbook.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"

	"github.com/lox/telegram-finance-bot/internal/types"
)

// ErrNoData is returned when no transactions fall inside the requested
// period. Callers should render a "no data" message instead of sending an
// empty workbook.
var ErrNoData = errors.New("no transactions in the selected period")

// Store is the slice of the ledger the exporter reads from.
type Store interface {
	TransactionsSince(ctx context.Context, userID int64, since time.Time) ([]types.Transaction, error)
}

// Document is a rendered workbook ready to hand to the transport. It lives
// in memory only; nothing is written to disk.
type Document struct {
	Name string
	Data []byte
}

// Exporter builds Excel reports from the transaction ledger.
type Exporter struct {
	store    Store
	logger   *log.Logger
	currency string
	now      func() time.Time
}

// New creates an exporter. Timestamps in the workbook are rendered in the
// transactions' own location; timezone only anchors "now" for the period
// window.
func New(store Store, logger *log.Logger, currency string, timezone *time.Location) *Exporter {
	return &Exporter{
		store:    store,
		logger:   logger,
		currency: currency,
		now:      func() time.Time { return time.Now().In(timezone) },
	}
}

const (
	sheetDetail   = "Transactions"
	sheetCategory = "By category"
	sheetSummary  = "Summary"
)

// Export renders the user's transactions inside the period window into a
// workbook named deterministically by user and period. Returns ErrNoData
// when the window is empty.
func (e *Exporter) Export(ctx context.Context, userID int64, period types.Period) (*Document, error) {
	since := period.Start(e.now())
	transactions, err := e.store.TransactionsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) == 0 {
		return nil, ErrNoData
	}

	e.logger.Debug("Building report", "user", userID, "period", period, "transactions", len(transactions))

	f := excelize.NewFile()
	defer f.Close()

	styles := newStyleCache(f)

	if err := f.SetSheetName("Sheet1", sheetDetail); err != nil {
		return nil, fmt.Errorf("failed to name detail sheet: %w", err)
	}
	if err := e.writeDetailSheet(f, styles, transactions); err != nil {
		return nil, err
	}
	if err := e.writeCategorySheet(f, styles, transactions); err != nil {
		return nil, err
	}
	if err := e.writeSummarySheet(f, styles, transactions); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	return &Document{
		Name: fmt.Sprintf("finance_report_%d_%s.xlsx", userID, period),
		Data: buf.Bytes(),
	}, nil
}

// writeDetailSheet writes one row per transaction, newest first, with the
// amount cell colored by kind.
func (e *Exporter) writeDetailSheet(f *excelize.File, styles *styleCache, transactions []types.Transaction) error {
	if err := writeHeader(f, styles, sheetDetail,
		[]string{"Date", "Type", "Category", "Amount", "Description"},
		[]float64{20, 10, 18, 15, 30}); err != nil {
		return err
	}

	for i, t := range transactions {
		row := i + 2
		cells := []any{
			t.Date.Format("02.01.2006 15:04"),
			t.Kind.Label(),
			t.Category,
			amountValue(t.Amount),
			t.Description,
		}
		if err := setRow(f, sheetDetail, row, cells); err != nil {
			return err
		}

		amountStyle := cellStyle{color: kindColor(t.Kind), numFmt: e.moneyFormat()}
		if err := styles.apply(sheetDetail, 4, row, amountStyle); err != nil {
			return err
		}
	}

	return nil
}

// writeCategorySheet writes one row per (kind, category) pair present in
// the filtered set, ordered by kind then category.
func (e *Exporter) writeCategorySheet(f *excelize.File, styles *styleCache, transactions []types.Transaction) error {
	if _, err := f.NewSheet(sheetCategory); err != nil {
		return fmt.Errorf("failed to create category sheet: %w", err)
	}
	if err := writeHeader(f, styles, sheetCategory,
		[]string{"Type", "Category", "Amount", "Operations"},
		[]float64{10, 18, 15, 20}); err != nil {
		return err
	}

	row := 2
	for _, kind := range types.Kinds {
		sums := make(map[string]decimal.Decimal)
		counts := make(map[string]int)
		for _, t := range transactions {
			if t.Kind != kind {
				continue
			}
			sums[t.Category] = sums[t.Category].Add(t.Amount)
			counts[t.Category]++
		}

		categories := make([]string, 0, len(sums))
		for c := range sums {
			categories = append(categories, c)
		}
		slices.Sort(categories)

		for _, c := range categories {
			cells := []any{kind.Label(), c, amountValue(sums[c]), counts[c]}
			if err := setRow(f, sheetCategory, row, cells); err != nil {
				return err
			}
			if err := styles.apply(sheetCategory, 3, row, cellStyle{numFmt: e.moneyFormat()}); err != nil {
				return err
			}
			if err := styles.apply(sheetCategory, 4, row, cellStyle{numFmt: "0"}); err != nil {
				return err
			}
			row++
		}
	}

	return nil
}

// writeSummarySheet writes per-kind count/sum/mean/max/min rows and a
// trailing balance row colored by sign.
func (e *Exporter) writeSummarySheet(f *excelize.File, styles *styleCache, transactions []types.Transaction) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeHeader(f, styles, sheetSummary,
		[]string{"Type", "Operations", "Total", "Average", "Max", "Min"},
		[]float64{12, 12, 16, 16, 16, 16}); err != nil {
		return err
	}

	var totalIncome, totalExpense decimal.Decimal
	row := 2
	for _, kind := range types.Kinds {
		var sum, max, min decimal.Decimal
		count := 0
		for _, t := range transactions {
			if t.Kind != kind {
				continue
			}
			if count == 0 || t.Amount.GreaterThan(max) {
				max = t.Amount
			}
			if count == 0 || t.Amount.LessThan(min) {
				min = t.Amount
			}
			sum = sum.Add(t.Amount)
			count++
		}
		if count == 0 {
			continue
		}
		if kind == types.KindIncome {
			totalIncome = sum
		} else {
			totalExpense = sum
		}

		mean := sum.Div(decimal.NewFromInt(int64(count)))
		cells := []any{
			kind.Label(), count,
			amountValue(sum), amountValue(mean), amountValue(max), amountValue(min),
		}
		if err := setRow(f, sheetSummary, row, cells); err != nil {
			return err
		}
		if err := styles.apply(sheetSummary, 2, row, cellStyle{numFmt: "0"}); err != nil {
			return err
		}
		for col := 3; col <= 6; col++ {
			if err := styles.apply(sheetSummary, col, row, cellStyle{numFmt: e.moneyFormat()}); err != nil {
				return err
			}
		}
		row++
	}

	// Balance row, separated from the per-kind block by one empty row.
	balance := totalIncome.Sub(totalExpense)
	balanceRow := row + 1
	if err := setRow(f, sheetSummary, balanceRow, []any{"BALANCE:", amountValue(balance)}); err != nil {
		return err
	}
	if err := styles.apply(sheetSummary, 1, balanceRow, cellStyle{bold: true}); err != nil {
		return err
	}

	balanceColor := colorIncome
	if balance.IsNegative() {
		balanceColor = colorExpense
	}
	balanceStyle := cellStyle{bold: true, color: balanceColor, numFmt: e.moneyFormat()}
	return styles.apply(sheetSummary, 2, balanceRow, balanceStyle)
}

func (e *Exporter) moneyFormat() string {
	return fmt.Sprintf(`#,##0.00" %s"`, e.currency)
}

// amountValue converts a monetary decimal to the 2dp float the workbook's
// number formats expect.
func amountValue(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}

const (
	colorIncome  = "008000"
	colorExpense = "FF0000"
)

func kindColor(k types.Kind) string {
	if k == types.KindIncome {
		return colorIncome
	}
	return colorExpense
}

func writeHeader(f *excelize.File, styles *styleCache, sheet string, headers []string, widths []float64) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to resolve header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := styles.apply(sheet, i+1, 1, cellStyle{bold: true}); err != nil {
			return err
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to resolve column name: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	for i, v := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}

// cellStyle is an immutable style descriptor computed per cell from data.
// Styles are resolved to excelize style IDs through the cache, so no
// mutable formatting object is ever shared between cells.
type cellStyle struct {
	bold   bool
	color  string
	numFmt string
}

type styleCache struct {
	f   *excelize.File
	ids map[cellStyle]int
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, ids: make(map[cellStyle]int)}
}

func (c *styleCache) apply(sheet string, col, row int, s cellStyle) error {
	id, err := c.id(s)
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	if err := c.f.SetCellStyle(sheet, cell, cell, id); err != nil {
		return fmt.Errorf("failed to style cell %s: %w", cell, err)
	}
	return nil
}

func (c *styleCache) id(s cellStyle) (int, error) {
	if id, ok := c.ids[s]; ok {
		return id, nil
	}

	style := &excelize.Style{}
	if s.bold || s.color != "" {
		style.Font = &excelize.Font{Bold: s.bold, Color: s.color}
	}
	if s.numFmt != "" {
		numFmt := s.numFmt
		style.CustomNumFmt = &numFmt
	}

	id, err := c.f.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("failed to create style: %w", err)
	}
	c.ids[s] = id
	return id, nil
}
