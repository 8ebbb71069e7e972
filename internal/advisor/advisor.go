// Package advisor turns statistics snapshots into natural-language prompts,
// relays them to an LLM over OpenRouter's OpenAI-compatible API, and
// post-processes the response for chat delivery.
package advisor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/lox/telegram-finance-bot/internal/stats"
	"github.com/lox/telegram-finance-bot/internal/types"
)

const (
	// MaxChunkLen is the per-message character budget for split replies,
	// kept under Telegram's 4096 hard limit.
	MaxChunkLen = 4000

	defaultTimeout = 30 * time.Second
	maxTokens      = 500
	temperature    = 0.7
	retryAttempts  = 3
)

// Snapshots provides the statistics view the advisor personalizes from.
type Snapshots interface {
	Snapshot(ctx context.Context, userID int64) (*stats.Snapshot, error)
}

// Advisor relays financial snapshots to a remote text-generation model.
type Advisor struct {
	logger   *log.Logger
	client   *openai.Client
	model    string
	stats    Snapshots
	currency string
	timeout  time.Duration
}

// New creates an Advisor with an already-configured client.
func New(logger *log.Logger, client *openai.Client, model string, snapshots Snapshots, currency string) *Advisor {
	return &Advisor{
		logger:   logger,
		client:   client,
		model:    model,
		stats:    snapshots,
		currency: currency,
		timeout:  defaultTimeout,
	}
}

// NewOpenRouter creates an Advisor for OpenRouter's OpenAI-compatible API.
func NewOpenRouter(logger *log.Logger, apiKey, baseURL, model string, snapshots Snapshots, currency string) *Advisor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)
	return New(logger, client, model, snapshots, currency)
}

// fallbackTips is used when the remote call fails on the one-off tip
// operation. Picked uniformly at random.
var fallbackTips = []string{
	"💡 Try the 72-hour rule: wait three days before any large purchase",
	"💡 Keep a small buffer fund for minor expenses to avoid impulse buys",
	"💡 Automate your savings: move 10% of every income automatically",
	"💡 Review your subscriptions and cancel at least one unused one this month",
	"💡 Use cashback services: even 5% back adds up to real savings over a year",
}

// Analyze gathers a full statistics snapshot, asks the model for a detailed
// analysis, and returns the sanitized response split into sendable chunks.
// A remote failure is returned as an error for the caller to render as a
// degraded notice; it never panics or crashes the session.
func (a *Advisor) Analyze(ctx context.Context, userID int64) ([]string, error) {
	snapshot, err := a.stats.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to gather statistics: %w", err)
	}

	response, err := a.complete(ctx, a.analysisPrompt(snapshot))
	if err != nil {
		a.logger.Error("AI analysis failed", "user", userID, "error", err)
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	text := "📊 AI ANALYSIS OF YOUR FINANCES:\n\n" + Sanitize(response)
	return SplitMessage(text, MaxChunkLen), nil
}

// Tip asks the model for one short personalized tip. When the remote call
// fails the degraded response is a random entry from the static tip list,
// so the operation itself never fails on the network.
func (a *Advisor) Tip(ctx context.Context, userID int64) (string, error) {
	snapshot, err := a.stats.Snapshot(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to gather statistics: %w", err)
	}

	response, err := a.complete(ctx, a.tipPrompt(snapshot))
	if err != nil {
		a.logger.Warn("AI tip failed, using fallback", "user", userID, "error", err)
		return fallbackTips[rand.Intn(len(fallbackTips))], nil
	}

	return "💡 PERSONAL FINANCIAL TIP:\n\n" + Sanitize(response), nil
}

// complete sends a single user-role prompt to the model with a bounded
// timeout and backoff retries.
func (a *Advisor) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var content string
	err := retry.Do(
		func() error {
			resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: a.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return fmt.Errorf("chat completion failed: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("no choices in response")
			}
			content = resp.Choices[0].Message.Content
			if content == "" {
				return fmt.Errorf("empty completion content")
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("Retrying completion request", "attempt", n+1, "max_attempts", retryAttempts, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}

	return content, nil
}

func (a *Advisor) analysisPrompt(s *stats.Snapshot) string {
	var b strings.Builder
	b.WriteString("You are a personal financial consultant. Analyze this user's situation and give CONCRETE recommendations.\n\n")

	b.WriteString("BASIC STATISTICS:\n")
	fmt.Fprintf(&b, "- Total income: %s\n", a.money(s.TotalIncome))
	fmt.Fprintf(&b, "- Total expenses: %s\n", a.money(s.TotalExpense))
	fmt.Fprintf(&b, "- Overall balance: %s\n", a.money(s.Balance()))
	fmt.Fprintf(&b, "- Income this month: %s\n", a.money(s.MonthIncome))
	fmt.Fprintf(&b, "- Expenses this month: %s\n", a.money(s.MonthExpense))
	fmt.Fprintf(&b, "- Monthly balance: %s\n\n", a.money(s.MonthBalance()))

	b.WriteString("EXPENSE BREAKDOWN:\n")
	if len(s.ExpenseByCat) == 0 {
		b.WriteString("No expense data\n")
	}
	for _, ct := range s.ExpenseByCat {
		pct := stats.Percentage(ct.Sum, s.TotalExpense)
		fmt.Fprintf(&b, "- %s: %s (%d operations, %s%% of total expenses)\n",
			ct.Category, a.money(ct.Sum), ct.Count, pct.String())
	}

	b.WriteString("\nLARGEST EXPENSES:\n")
	if len(s.LargestExpenses) == 0 {
		b.WriteString("No large expense data\n")
	}
	for _, t := range s.LargestExpenses {
		desc := t.Description
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", t.Category, a.money(t.Amount), desc)
	}

	b.WriteString(`
Analyze this information and give CONCRETE recommendations:

1. FINANCIAL HEALTH: rate the current situation, name the most problematic
areas, and point out the strengths.

2. CONCRETE ACTIONS for THIS user: the 3 most effective ways to cut their
expenses, how to optimize the most expensive categories, and practical steps
to grow savings.

3. PERSONAL ADVICE based on their spending patterns: achievable goals for
the next month with concrete amounts to save.

Avoid generic phrases like "keep a budget" or "save 10%". Be as specific
and practical as possible.
`)

	return b.String()
}

func (a *Advisor) tipPrompt(s *stats.Snapshot) string {
	topCategory := "not determined"
	if len(s.ExpenseByCat) > 0 {
		ct := s.ExpenseByCat[0]
		topCategory = fmt.Sprintf("%s (%s)", ct.Category, a.money(ct.Sum))
	}

	var b strings.Builder
	b.WriteString("Give ONE concrete, practical and UNUSUAL financial tip for this user.\n\n")
	b.WriteString("USER CONTEXT:\n")
	fmt.Fprintf(&b, "- Total expenses: %s\n", a.money(s.TotalExpense))
	fmt.Fprintf(&b, "- Most expensive category: %s\n", topCategory)
	fmt.Fprintf(&b, "- Total operations: %d\n\n", s.Operations)
	b.WriteString(`REQUIREMENTS:
- Actionable right now
- Unusual (no "keep a budget" or "save 10%" banalities)
- Practical, motivating and positive
- At most 2 sentences
- Based on their spending habits

Reply with the tip only, no preamble.`)

	return b.String()
}

func (a *Advisor) money(d decimal.Decimal) string {
	return types.FormatMoney(d, a.currency)
}
