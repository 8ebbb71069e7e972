// Package bot is the Telegram transport: it routes inbound messages to the
// dialogue machine, statistics engine, report exporter and AI advisor, and
// renders their results back into chat messages, keyboards and documents.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lox/telegram-finance-bot/internal/advisor"
	"github.com/lox/telegram-finance-bot/internal/dialog"
	"github.com/lox/telegram-finance-bot/internal/report"
	"github.com/lox/telegram-finance-bot/internal/stats"
	"github.com/lox/telegram-finance-bot/internal/types"
)

const genericFailure = "❌ Something went wrong. Please try again later."

// Bot wires the Telegram API to the finance components.
type Bot struct {
	api      *tgbotapi.BotAPI
	logger   *log.Logger
	dialog   *dialog.Manager
	stats    *stats.Engine
	exporter *report.Exporter
	advisor  *advisor.Advisor
}

// New creates the bot transport.
func New(api *tgbotapi.BotAPI, logger *log.Logger, d *dialog.Manager, s *stats.Engine, e *report.Exporter, a *advisor.Advisor) *Bot {
	return &Bot{
		api:      api,
		logger:   logger,
		dialog:   d,
		stats:    s,
		exporter: e,
		advisor:  a,
	}
}

// Run polls for updates until the context is cancelled. Every update is
// handled on its own goroutine so a slow operation for one user (the AI
// call in particular) never blocks other users' sessions.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in message handler", "panic", r)
		}
	}()

	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if b.dialog.Active(userID) {
		outcome, err := b.dialog.Input(ctx, userID, msg.Text)
		if err != nil {
			b.logger.Error("Dialogue input failed", "user", userID, "error", err)
			b.sendText(chatID, genericFailure, mainKeyboard())
			return
		}
		b.sendOutcome(ctx, chatID, userID, outcome)
		return
	}

	b.handleMenu(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendText(chatID,
			"👋 Hi! I'm your finance assistant!\nI'll help you keep track of your money 💰\n\nPick an action:",
			mainKeyboard())
	case "help":
		b.sendMarkdown(chatID, helpText, mainKeyboard())
	case "cancel":
		b.sendOutcome(ctx, chatID, userID, b.dialog.Cancel(userID))
	case "skip":
		outcome, err := b.dialog.SkipDescription(ctx, userID)
		if err != nil {
			b.logger.Error("Skip failed", "user", userID, "error", err)
			b.sendText(chatID, genericFailure, mainKeyboard())
			return
		}
		b.sendOutcome(ctx, chatID, userID, outcome)
	default:
		b.sendText(chatID, "Unknown command. Pick an action from the menu:", mainKeyboard())
	}
}

func (b *Bot) handleMenu(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Text {
	case btnAddIncome:
		b.sendOutcome(ctx, chatID, userID, b.dialog.StartEntry(userID, types.KindIncome))
	case btnAddExpense:
		b.sendOutcome(ctx, chatID, userID, b.dialog.StartEntry(userID, types.KindExpense))
	case btnStatistics:
		text, err := b.stats.StatisticsMessage(ctx, userID)
		if err != nil {
			b.logger.Error("Statistics failed", "user", userID, "error", err)
			b.sendText(chatID, genericFailure, mainKeyboard())
			return
		}
		b.sendMarkdown(chatID, text, mainKeyboard())
	case btnRecent:
		text, err := b.stats.RecentMessage(ctx, userID)
		if err != nil {
			b.logger.Error("Recent transactions failed", "user", userID, "error", err)
			b.sendText(chatID, genericFailure, mainKeyboard())
			return
		}
		b.sendMarkdown(chatID, text, mainKeyboard())
	case btnReport:
		b.sendOutcome(ctx, chatID, userID, b.dialog.StartExport(userID))
	case btnClearData:
		b.sendOutcome(ctx, chatID, userID, b.dialog.StartClear(userID))
	case btnAIAnalysis:
		b.sendText(chatID, "🤖 Analyzing your finances in depth... this takes 15-20 seconds", nil)
		chunks, err := b.advisor.Analyze(ctx, userID)
		if err != nil {
			b.logger.Error("AI analysis failed", "user", userID, "error", err)
			b.sendText(chatID, "❌ The analysis failed. Please try again later.", mainKeyboard())
			return
		}
		for _, chunk := range chunks {
			b.sendText(chatID, chunk, nil)
		}
	case btnAITip:
		b.sendText(chatID, "💡 Preparing a personal tip for you...", nil)
		tip, err := b.advisor.Tip(ctx, userID)
		if err != nil {
			b.logger.Error("AI tip failed", "user", userID, "error", err)
			b.sendText(chatID, genericFailure, mainKeyboard())
			return
		}
		b.sendText(chatID, tip, nil)
	case btnHelp:
		b.sendMarkdown(chatID, helpText, mainKeyboard())
	default:
		b.sendText(chatID, "Pick an action from the menu:", mainKeyboard())
	}
}

// sendOutcome renders a dialogue outcome: the reply with its keyboard, and
// the export side effect when the user picked a report period.
func (b *Bot) sendOutcome(ctx context.Context, chatID, userID int64, outcome dialog.Outcome) {
	if outcome.Reply != "" {
		b.sendText(chatID, outcome.Reply, b.keyboard(outcome))
	}
	if outcome.Export != "" {
		b.sendReport(ctx, chatID, userID, outcome.Export)
	}
	if outcome.Committed != nil {
		b.logger.Info("Transaction added",
			"user", userID, "id", outcome.Committed.ID, "kind", outcome.Committed.Kind,
			"category", outcome.Committed.Category, "amount", outcome.Committed.Amount)
	}
}

func (b *Bot) keyboard(outcome dialog.Outcome) any {
	switch outcome.Keyboard {
	case dialog.KeyboardBack:
		return backKeyboard()
	case dialog.KeyboardCategories:
		return categoryKeyboard(outcome.Kind)
	case dialog.KeyboardPeriods:
		return periodKeyboard()
	case dialog.KeyboardConfirm:
		return confirmKeyboard()
	default:
		return mainKeyboard()
	}
}

// sendReport generates and delivers the Excel document for the period. An
// empty window becomes a "no data" message, any other failure a generic
// one; the main menu is re-presented either way.
func (b *Bot) sendReport(ctx context.Context, chatID, userID int64, period types.Period) {
	doc, err := b.exporter.Export(ctx, userID, period)
	if errors.Is(err, report.ErrNoData) {
		b.sendText(chatID, "❌ No data for the selected period.", mainKeyboard())
		return
	}
	if err != nil {
		b.logger.Error("Report generation failed", "user", userID, "period", period, "error", err)
		b.sendText(chatID, "❌ Failed to generate the report. Please try again later.", mainKeyboard())
		return
	}

	file := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data})
	file.Caption = fmt.Sprintf("📊 Excel report for %s\n\n"+
		"The file contains 3 sheets:\n"+
		"📋 Transactions - every operation with dates\n"+
		"📈 By category - totals per type and category\n"+
		"📊 Summary - key metrics and the balance", period)
	file.ReplyMarkup = mainKeyboard()

	if _, err := b.api.Send(file); err != nil {
		b.logger.Error("Failed to send report document", "user", userID, "error", err)
		b.sendText(chatID, genericFailure, mainKeyboard())
	}
}

func (b *Bot) sendText(chatID int64, text string, keyboard any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", "chat", chatID, "error", err)
	}
}

// sendMarkdown sends with Markdown parse mode, retrying as plain text when
// Telegram rejects the formatting.
func (b *Bot) sendMarkdown(chatID int64, text string, keyboard any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Markdown send failed, retrying as plain text", "chat", chatID, "error", err)
		b.sendText(chatID, text, keyboard)
	}
}

const helpText = `🤖 *FINANCE ASSISTANT - HELP*

*Main actions:*
💵 *Add income* - record money you received
💰 *Add expense* - record money you spent
📊 *Statistics* - overall income/expense statistics
📋 *Recent transactions* - your last 10 operations
📊 *Excel report* - export your data to an Excel file
🤖 *AI analysis* - analysis of your finances with recommendations
💡 *AI tip* - a short personalized tip
🗑 *Clear data* - delete all your records

*Excel report periods:*
📅 Today - operations from today
📅 Week - the last 7 days
📅 Month - the last 30 days
📅 Half year - the last 180 days
📅 Year - the last 365 days
📅 All time - everything on record`
