package notifications

import "github.com/BlockByBlockAI/stocktrading/pkg/types"

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error

	// NotifyTrade sends a formatted trade execution alert
	NotifyTrade(rec *types.TradeRecord) error
}
