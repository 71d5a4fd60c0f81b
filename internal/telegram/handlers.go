package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/metaleads/internal/database"
	"github.com/mixelka/metaleads/internal/formatter"
	appmodels "github.com/mixelka/metaleads/pkg/models"
)

// handleCheck handles /check command
// Usage: /check [days]
func (b *Bot) handleCheck(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	days, err := parseCheckArgs(msg.Text, b.config.LookbackDays)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, err.Error())
		return
	}

	b.logger.Info("manual check requested", "user_id", msg.From.ID, "days", days)
	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, fmt.Sprintf("Checking the mailbox, last %d day(s)...", days))

	res := b.service.CheckForNewEmails(ctx, days)
	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, b.formatter.FormatCheckResult(res))
}

// handleStatus handles /status command
func (b *Bot) handleStatus(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, b.formatter.FormatStatus(b.service.Status()))
}

// handleMapCommands dispatches /map and /mappings
func (b *Bot) handleMapCommands(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	switch commandName(update.Message.Text) {
	case "/mappings":
		b.handleMappings(ctx, update.Message)
	case "/map":
		b.handleMap(ctx, update.Message)
	}
}

// handleMappings lists subject mappings
func (b *Bot) handleMappings(ctx context.Context, msg *models.Message) {
	mappings, err := b.db.ListSubjectMappings(ctx)
	if err != nil {
		b.logger.Error("failed to list subject mappings", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, "Failed to load subject mappings")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, b.formatter.FormatMappings(mappings))
}

// handleMap creates or updates a subject mapping
// Usage: /map customer_id subject
func (b *Bot) handleMap(ctx context.Context, msg *models.Message) {
	customerID, subject, err := parseMapArgs(msg.Text)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID,
			"Usage: <code>/map customer_id subject</code>\nExample: <code>/map C1 Acme Dental Leads</code>")
		return
	}

	mapping := &appmodels.SubjectMapping{
		CustomerID:   customerID,
		EmailSubject: subject,
		IsActive:     true,
	}
	if err := b.db.UpsertSubjectMapping(ctx, mapping); err != nil {
		b.logger.Error("failed to save subject mapping", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, "Failed to save the mapping")
		return
	}

	b.logger.Info("subject mapping saved",
		"mapping_id", mapping.ID,
		"customer_id", customerID,
		"subject", subject,
		"user_id", msg.From.ID,
	)
	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID,
		fmt.Sprintf("Mapping #%d saved: emails with subject <b>%s</b> go to <code>%s</code>",
			mapping.ID, b.formatter.Escape(subject), b.formatter.Escape(customerID)))
}

// handleUnmap handles /unmap command
// Usage: /unmap id
func (b *Bot) handleUnmap(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	id, err := parseIDArg(msg.Text)
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, err.Error())
		return
	}

	mapping, err := b.db.GetSubjectMappingByID(ctx, id)
	if err == nil {
		err = b.db.DeleteSubjectMapping(ctx, id)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, fmt.Sprintf("Mapping #%d not found", id))
			return
		}
		b.logger.Error("failed to delete subject mapping", "error", err, "mapping_id", id)
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, "Failed to delete the mapping")
		return
	}

	b.logger.Info("subject mapping deleted",
		"mapping_id", id,
		"customer_id", mapping.CustomerID,
		"subject", mapping.EmailSubject,
		"user_id", msg.From.ID,
	)
	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID,
		fmt.Sprintf("Mapping #%d deleted: <b>%s</b> no longer goes to <code>%s</code>",
			id, b.formatter.Escape(mapping.EmailSubject), b.formatter.Escape(mapping.CustomerID)))
}

// handleLeads handles /leads command
// Usage: /leads [customer_id]
func (b *Bot) handleLeads(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	leads, err := b.db.ListLeads(ctx, optionalArg(msg.Text), 10)
	if err != nil {
		b.logger.Error("failed to list leads", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, "Failed to load leads")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, b.formatter.FormatLeadList(leads))
}

// handleCallback handles inline button callbacks
func (b *Bot) handleCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	if !isAdmin(b.config.TelegramAdminIDs, callback.From.ID) {
		b.answerCallback(ctx, callback.ID, "Only administrators can update leads", false)
		return
	}

	data, err := formatter.DecodeCallback(callback.Data)
	if err != nil {
		b.logger.Error("failed to decode callback", "error", err, "data", callback.Data)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	status, ok := formatter.StatusForAction(data.Action)
	if !ok {
		b.answerCallback(ctx, callback.ID, "Unknown action", false)
		return
	}

	b.handleSetStatus(ctx, callback, data.LeadID, status)
}

// handleSetStatus updates a lead's status from a notification button
func (b *Bot) handleSetStatus(ctx context.Context, callback *models.CallbackQuery, leadID int64, status appmodels.LeadStatus) {
	reason := fmt.Sprintf("set from telegram by %d", callback.From.ID)
	if err := b.db.UpdateLeadStatus(ctx, leadID, status, reason); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			b.answerCallback(ctx, callback.ID, "Lead not found", false)
			return
		}
		b.logger.Error("failed to update lead status", "error", err, "lead_id", leadID)
		b.answerCallback(ctx, callback.ID, "Error: "+err.Error(), false)
		return
	}

	b.logger.Info("lead status updated", "lead_id", leadID, "status", status, "user_id", callback.From.ID)

	// Update keyboard
	if msg := callback.Message.Message; msg != nil {
		keyboard := formatter.BuildLeadKeyboard(leadID, status)
		if err := b.editMessageReplyMarkup(ctx, msg.Chat.ID, msg.ID, keyboard); err != nil {
			b.logger.Warn("failed to update keyboard", "error", err, "lead_id", leadID)
		}
	}

	b.answerCallback(ctx, callback.ID, fmt.Sprintf("Lead #%d marked %s", leadID, formatter.StatusLabel(status)), false)
}
