package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/lox/telegram-finance-bot/internal/advisor"
	"github.com/lox/telegram-finance-bot/internal/bot"
	"github.com/lox/telegram-finance-bot/internal/db"
	"github.com/lox/telegram-finance-bot/internal/dialog"
	"github.com/lox/telegram-finance-bot/internal/report"
	"github.com/lox/telegram-finance-bot/internal/stats"
)

type CLI struct {
	TelegramToken   string `help:"Telegram bot token" env:"TELEGRAM_TOKEN" required:""`
	OpenRouterKey   string `help:"OpenRouter API key" env:"OPENROUTER_API_KEY" required:""`
	OpenRouterURL   string `help:"OpenRouter API base URL" default:"https://openrouter.ai/api/v1" env:"OPENROUTER_API_URL"`
	OpenRouterModel string `help:"OpenRouter model to use for advice" default:"google/gemini-2.5-flash-preview" env:"OPENROUTER_MODEL"`
	DataDir         string `help:"Path to data directory" default:"./data" env:"DATA_DIR"`
	Timezone        string `help:"Timezone to use for transaction dates" default:"Europe/Moscow" env:"TIMEZONE"`
	Currency        string `help:"Currency suffix for formatted amounts" default:"₽" env:"CURRENCY"`
	LogLevel        string `help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error" env:"LOG_LEVEL"`
}

func (c *CLI) Run() error {
	logger := log.New(os.Stderr)

	// Set log level
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	// Load timezone
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", "error", err)
	}

	// Initialize database
	database, err := db.New(c.DataDir, logger, loc)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	// Wire up the finance components
	engine := stats.New(database, logger, c.Currency)
	exporter := report.New(database, logger, c.Currency, loc)
	adv := advisor.NewOpenRouter(logger, c.OpenRouterKey, c.OpenRouterURL, c.OpenRouterModel, engine, c.Currency)
	dialogs := dialog.NewManager(database, logger)

	// Connect to Telegram
	api, err := tgbotapi.NewBotAPI(c.TelegramToken)
	if err != nil {
		logger.Fatal("Failed to connect to Telegram", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.New(api, logger, dialogs, engine, exporter, adv)
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("Bot stopped")
	return nil
}

func main() {
	// A .env file is optional; environment variables win either way
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("finance-bot"),
		kong.Description("A Telegram bot for tracking personal finances"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
