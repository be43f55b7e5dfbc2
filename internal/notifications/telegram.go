package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/BlockByBlockAI/stocktrading/pkg/types"
)

type TelegramNotifier struct {
	token  string
	chatID string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramNotifier) SendAlert(level, message string) error {
	emoji := "ℹ️"
	switch level {
	case "warning":
		emoji = "⚠️"
	case "error":
		emoji = "🚨"
	case "success":
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Trading Engine Alert*\n\n%s", emoji, message)
	return t.send(text)
}

func (t *TelegramNotifier) NotifyTrade(rec *types.TradeRecord) error {
	emoji := "📈"
	if rec.Action == types.TradeClose {
		emoji = "📉"
		if rec.PnL > 0 {
			emoji = "💰"
		}
	}

	text := fmt.Sprintf(`%s *%s %s*

Instrument: %s (%s)
Direction: %s
Quantity: %d
Price: $%.2f`, emoji, rec.Symbol, rec.Action, rec.Instrument, rec.Slot, rec.Direction, rec.Quantity, rec.Price)

	if rec.Action == types.TradeClose {
		text += fmt.Sprintf("\nP&L: $%.2f", rec.PnL)
	}
	text += fmt.Sprintf("\nReason: %s", rec.Reason)

	return t.send(text)
}

func (t *TelegramNotifier) send(text string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := http.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
