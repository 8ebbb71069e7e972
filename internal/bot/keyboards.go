package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lox/telegram-finance-bot/internal/dialog"
	"github.com/lox/telegram-finance-bot/internal/types"
)

// Main menu button labels.
const (
	btnAddIncome  = "💵 Add income"
	btnAddExpense = "💰 Add expense"
	btnStatistics = "📊 Statistics"
	btnRecent     = "📋 Recent transactions"
	btnAIAnalysis = "🤖 AI analysis"
	btnAITip      = "💡 AI tip"
	btnReport     = "📊 Excel report"
	btnClearData  = "🗑 Clear data"
	btnHelp       = "❓ Help"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAddIncome),
			tgbotapi.NewKeyboardButton(btnAddExpense),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStatistics),
			tgbotapi.NewKeyboardButton(btnRecent),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAIAnalysis),
			tgbotapi.NewKeyboardButton(btnAITip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnReport),
			tgbotapi.NewKeyboardButton(btnClearData),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)
}

func backKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(dialog.ButtonBack)),
	)
}

// categoryKeyboard lays the kind's categories out two per row, with a back
// button at the bottom.
func categoryKeyboard(kind types.Kind) tgbotapi.ReplyKeyboardMarkup {
	return pairedKeyboard(types.CategoriesFor(kind))
}

func periodKeyboard() tgbotapi.ReplyKeyboardMarkup {
	labels := make([]string, 0, len(types.Periods))
	for _, p := range types.Periods {
		labels = append(labels, p.Label())
	}
	return pairedKeyboard(labels)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dialog.ButtonConfirmYes),
			tgbotapi.NewKeyboardButton(dialog.ButtonConfirmNo),
		),
	)
}

func pairedKeyboard(labels []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(labels); i += 2 {
		if i+1 < len(labels) {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(labels[i]),
				tgbotapi.NewKeyboardButton(labels[i+1]),
			))
		} else {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(labels[i]),
			))
		}
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(dialog.ButtonBack),
	))
	return tgbotapi.NewReplyKeyboard(rows...)
}
