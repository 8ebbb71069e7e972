// Package dialog drives the per-user conversational state machine for
// entering transactions, confirming destructive actions and picking report
// periods. The machine is transport-agnostic: every input produces an
// Outcome value describing the reply, the keyboard to show and any side
// effect that was performed.
package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/telegram-finance-bot/internal/types"
)

// State identifies what input the machine is waiting for. One explicit
// enumeration covers every mode, so no two "awaiting" flags can overlap.
type State int

const (
	StateIdle State = iota
	StateAmount
	StateCategory
	StateDescription
	StateClearConfirm
	StatePeriod
)

// Keyboard selects which reply keyboard the transport should attach.
type Keyboard int

const (
	KeyboardMain Keyboard = iota
	KeyboardBack
	KeyboardCategories
	KeyboardPeriods
	KeyboardConfirm
)

// Button labels the machine recognizes. The transport builds its keyboards
// from the same constants.
const (
	ButtonBack       = "↩️ Back"
	ButtonConfirmYes = "✅ Yes, delete everything"
	ButtonConfirmNo  = "❌ No, keep my data"
)

// Store is the write-side surface the machine commits to.
type Store interface {
	Add(ctx context.Context, t types.Transaction) (types.Transaction, error)
	DeleteAll(ctx context.Context, userID int64) (int64, error)
}

// Outcome describes the result of feeding one input into the machine.
type Outcome struct {
	Reply    string
	Keyboard Keyboard
	// Kind of the active draft; set when Keyboard is KeyboardCategories.
	Kind types.Kind
	// Committed is the transaction persisted by this input, if any.
	Committed *types.Transaction
	// Export is the period the caller should run the exporter for, if any.
	Export types.Period
	// Cleared and DidClear report a completed clear-data confirmation.
	Cleared  int64
	DidClear bool
}

// draft is the in-progress, unpersisted transaction being collected.
type draft struct {
	kind     types.Kind
	amount   decimal.Decimal
	category string
}

type session struct {
	state State
	draft draft
}

// Manager owns one session per user. Sessions are ephemeral: they live in
// memory until completed, cancelled or overwritten by a new entry action.
type Manager struct {
	store  Store
	logger *log.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewManager creates a dialogue manager committing to the given store.
func NewManager(store Store, logger *log.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		sessions: make(map[int64]*session),
	}
}

// State returns the user's current dialogue state.
func (m *Manager) State(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.state
	}
	return StateIdle
}

// Active reports whether the user is mid-dialogue.
func (m *Manager) Active(userID int64) bool {
	return m.State(userID) != StateIdle
}

// StartEntry begins a new income or expense entry. Any in-progress draft
// for the user is overwritten.
func (m *Manager) StartEntry(userID int64, kind types.Kind) Outcome {
	m.setSession(userID, &session{state: StateAmount, draft: draft{kind: kind}})

	return Outcome{
		Reply:    fmt.Sprintf("%s Enter the %s amount (or %q to cancel):", kind.Emoji(), kind.Label(), ButtonBack),
		Keyboard: KeyboardBack,
	}
}

// StartClear asks the user to confirm wiping all of their data.
func (m *Manager) StartClear(userID int64) Outcome {
	m.setSession(userID, &session{state: StateClearConfirm})

	return Outcome{
		Reply:    "⚠️ WARNING!\n\nAre you sure you want to delete ALL your data?\nThis cannot be undone!",
		Keyboard: KeyboardConfirm,
	}
}

// StartExport asks the user to pick a report period.
func (m *Manager) StartExport(userID int64) Outcome {
	m.setSession(userID, &session{state: StatePeriod})

	return Outcome{
		Reply:    "📊 Choose a report period:",
		Keyboard: KeyboardPeriods,
	}
}

// Cancel discards any in-progress session and returns to the main menu.
// Nothing is persisted.
func (m *Manager) Cancel(userID int64) Outcome {
	m.reset(userID)
	return Outcome{Reply: "Operation cancelled.", Keyboard: KeyboardMain}
}

// SkipDescription commits the current draft with an empty description.
// Outside the description step it behaves like an unknown input.
func (m *Manager) SkipDescription(ctx context.Context, userID int64) (Outcome, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok || s.state != StateDescription {
		m.mu.Unlock()
		return Outcome{Reply: "Nothing to skip right now.", Keyboard: KeyboardMain}, nil
	}
	d := s.draft
	m.mu.Unlock()

	return m.commit(ctx, userID, d, "")
}

// Input feeds one message of user text into the machine and advances it.
// Invalid input re-prompts in the same state with the draft preserved; a
// store failure is returned as an error with the session left intact so
// the user can retry.
func (m *Manager) Input(ctx context.Context, userID int64, text string) (Outcome, error) {
	if text == ButtonBack {
		return m.Cancel(userID), nil
	}

	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{state: StateIdle}
	}
	state := s.state
	d := s.draft
	m.mu.Unlock()

	switch state {
	case StateAmount:
		return m.inputAmount(userID, d, text), nil
	case StateCategory:
		return m.inputCategory(userID, d, text), nil
	case StateDescription:
		return m.commit(ctx, userID, d, text)
	case StateClearConfirm:
		return m.inputClearConfirm(ctx, userID, text)
	case StatePeriod:
		return m.inputPeriod(userID, text), nil
	default:
		return Outcome{Reply: "Choose an action from the menu:", Keyboard: KeyboardMain}, nil
	}
}

func (m *Manager) inputAmount(userID int64, d draft, text string) Outcome {
	amount, err := types.ParseAmount(text)
	if err != nil {
		m.logger.Debug("Rejected amount input", "user", userID, "input", text, "error", err)
		return Outcome{
			Reply:    fmt.Sprintf("❌ Please enter a number (for example 1500 or 99.99), or %q to cancel:", ButtonBack),
			Keyboard: KeyboardBack,
		}
	}

	d.amount = amount
	m.setSession(userID, &session{state: StateCategory, draft: d})

	return Outcome{
		Reply:    "📂 Choose a category:",
		Keyboard: KeyboardCategories,
		Kind:     d.kind,
	}
}

func (m *Manager) inputCategory(userID int64, d draft, text string) Outcome {
	if !types.ValidCategory(d.kind, text) {
		return Outcome{
			Reply:    fmt.Sprintf("❌ Please pick a category from the list, or %q to cancel:", ButtonBack),
			Keyboard: KeyboardCategories,
			Kind:     d.kind,
		}
	}

	d.category = text
	m.setSession(userID, &session{state: StateDescription, draft: d})

	return Outcome{
		Reply:    fmt.Sprintf("💬 Enter a description (or /skip to leave it empty, %q to cancel):", ButtonBack),
		Keyboard: KeyboardBack,
	}
}

// commit persists the draft as a new transaction and ends the dialogue.
// On a store failure the session is left as-is so the draft survives.
func (m *Manager) commit(ctx context.Context, userID int64, d draft, description string) (Outcome, error) {
	t, err := m.store.Add(ctx, types.Transaction{
		UserID:      userID,
		Kind:        d.kind,
		Category:    d.category,
		Description: description,
		Amount:      d.amount,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to save transaction: %w", err)
	}

	m.reset(userID)

	shownDesc := description
	if shownDesc == "" {
		shownDesc = "none"
	}
	reply := fmt.Sprintf("%s %s of %s added in category %q!\n\n📝 Description: %s",
		t.Kind.Emoji(), t.Kind.Label(), t.Amount.StringFixed(2), t.Category, shownDesc)

	return Outcome{Reply: reply, Keyboard: KeyboardMain, Committed: &t}, nil
}

func (m *Manager) inputClearConfirm(ctx context.Context, userID int64, text string) (Outcome, error) {
	if text != ButtonConfirmYes {
		m.reset(userID)
		return Outcome{Reply: "❌ Clearing cancelled", Keyboard: KeyboardMain}, nil
	}

	removed, err := m.store.DeleteAll(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to clear data: %w", err)
	}

	m.reset(userID)
	return Outcome{
		Reply:    "🗑 All your data has been deleted!",
		Keyboard: KeyboardMain,
		Cleared:  removed,
		DidClear: true,
	}, nil
}

func (m *Manager) inputPeriod(userID int64, text string) Outcome {
	period, ok := types.PeriodFromLabel(text)
	if !ok {
		return Outcome{
			Reply:    "❌ Please pick a period from the list:",
			Keyboard: KeyboardPeriods,
		}
	}

	m.reset(userID)
	return Outcome{
		Reply:    fmt.Sprintf("📊 Generating the Excel report for %s...", period),
		Keyboard: KeyboardMain,
		Export:   period,
	}
}

func (m *Manager) setSession(userID int64, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s
}

func (m *Manager) reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
