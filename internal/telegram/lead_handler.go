package telegram

import (
	"context"
	"time"

	"github.com/mixelka/metaleads/internal/formatter"
	"github.com/mixelka/metaleads/pkg/models"
)

// SetupLeadNotifications posts every new lead to TELEGRAM_NOTIFY_CHAT_ID
func (b *Bot) SetupLeadNotifications() {
	if b.config.TelegramNotifyChatID == 0 {
		b.logger.Info("lead notifications disabled, TELEGRAM_NOTIFY_CHAT_ID not set")
		return
	}
	b.service.SetLeadHandler(b.onNewLead)
}

// onNewLead sends a lead notification. It runs inside the message unit, so
// the send is bounded to keep the folder barrier moving.
func (b *Bot) onNewLead(lead *models.Lead) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	text := b.formatter.FormatLead(lead)
	keyboard := formatter.BuildLeadKeyboard(lead.ID, lead.Status)

	tgMsg, err := b.sendMessageWithKeyboard(ctx, b.config.TelegramNotifyChatID, 0, text, keyboard)
	if err != nil {
		b.logger.Error("failed to send lead notification", "error", err, "lead_id", lead.ID)
		return
	}

	b.logger.Info("lead sent to telegram",
		"lead_id", lead.ID,
		"customer_id", lead.CustomerID,
		"telegram_msg_id", tgMsg.ID,
	)
}
