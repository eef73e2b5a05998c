package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// BudgetExceededEvent describes a budget limit crossed by a ledger write.
type BudgetExceededEvent struct {
	UserID          int64
	CategoryName    string
	CurrentSpending decimal.Decimal
	LimitAmount     decimal.Decimal
	OverAmount      decimal.Decimal
}

// Notifier delivers budget alerts. Delivery is fire-and-forget: a failed
// notification never rolls back the ledger write that produced it.
type Notifier interface {
	BudgetExceeded(ctx context.Context, ev BudgetExceededEvent) error
}

// LogNotifier writes alerts to the server log only.
type LogNotifier struct{}

func (LogNotifier) BudgetExceeded(_ context.Context, ev BudgetExceededEvent) error {
	log.Printf("INFO: Budget exceeded for user %d, category %s: spent %s of %s (over by %s)",
		ev.UserID, ev.CategoryName, ev.CurrentSpending, ev.LimitAmount, ev.OverAmount)
	return nil
}

// TelegramNotifier pushes alerts to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token, chatID string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return &TelegramNotifier{bot: bot, chatID: id}, nil
}

func (n *TelegramNotifier) BudgetExceeded(_ context.Context, ev BudgetExceededEvent) error {
	text := fmt.Sprintf("Budget exceeded: %s is at %s of %s (%s over the limit)",
		ev.CategoryName, ev.CurrentSpending, ev.LimitAmount, ev.OverAmount)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return err
	}
	return nil
}

// New returns a Telegram notifier when both token and chat id are
// configured, otherwise the log-only fallback.
func New(botToken, chatID string) Notifier {
	if botToken == "" || chatID == "" {
		return LogNotifier{}
	}
	n, err := NewTelegramNotifier(botToken, chatID)
	if err != nil {
		log.Printf("ERROR: Failed to initialize telegram notifier, falling back to log: %v", err)
		return LogNotifier{}
	}
	return n
}
