package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Type classifies a notification.
type Type string

const (
	TypeTradeOpen  Type = "trade_open"
	TypeTradeClose Type = "trade_close"
	TypeRiskHalt   Type = "risk_halt"
	TypeError      Type = "error"
)

// Notification is a message for the operator.
type Notification struct {
	Type      Type
	Title     string
	Message   string
	Symbol    string
	PnL       float64
	Timestamp time.Time
}

// Notifier delivers notifications through one channel.
type Notifier interface {
	Send(n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to all registered notifiers. Delivery
// failures are logged, never propagated to trading code.
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewManager creates an empty notification manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers n through every enabled notifier.
func (m *Manager) Send(n *Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	for _, notifier := range m.notifiers {
		if !notifier.IsEnabled() {
			continue
		}
		if err := notifier.Send(n); err != nil {
			m.logger.Warn().Err(err).Str("notifier", notifier.Name()).Msg("notification delivery failed")
		}
	}
}

// SendTradeOpen announces a new position.
func (m *Manager) SendTradeOpen(symbol string, price, quantity, stopLoss, takeProfit float64) {
	m.Send(&Notification{
		Type:   TypeTradeOpen,
		Title:  fmt.Sprintf("Trade Opened: %s", symbol),
		Symbol: symbol,
		Message: fmt.Sprintf("BUY %s\nPrice: %.4f\nQuantity: %.4f\nSL: %.4f | TP: %.4f",
			symbol, price, quantity, stopLoss, takeProfit),
	})
}

// SendTradeClose announces a closed position.
func (m *Manager) SendTradeClose(symbol string, entryPrice, exitPrice, pnl float64, reason string) {
	outcome := "WIN"
	if pnl < 0 {
		outcome = "LOSS"
	}
	m.Send(&Notification{
		Type:   TypeTradeClose,
		Title:  fmt.Sprintf("Trade Closed (%s): %s", outcome, symbol),
		Symbol: symbol,
		PnL:    pnl,
		Message: fmt.Sprintf("Entry: %.4f -> Exit: %.4f\nP&L: %.4f\nReason: %s",
			entryPrice, exitPrice, pnl, reason),
	})
}

// SendRiskHalt announces that trading was halted by a risk limit.
func (m *Manager) SendRiskHalt(reason string, equity float64) {
	m.Send(&Notification{
		Type:    TypeRiskHalt,
		Title:   "TRADING HALTED",
		Message: fmt.Sprintf("Reason: %s\nEquity: %.2f\nManual restart required.", reason, equity),
	})
}

// SendError reports an operational error.
func (m *Manager) SendError(title, message string) {
	m.Send(&Notification{
		Type:    TypeError,
		Title:   title,
		Message: message,
	})
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// TelegramNotifier sends notifications via the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(n *Notification) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", n.Title, n.Message),
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
