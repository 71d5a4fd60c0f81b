package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/metaleads/internal/routing"
)

// maxCheckDays caps manual lookbacks so one command cannot scan the whole mailbox
const maxCheckDays = 30

// commandName returns the command word of text without a @botname suffix
func commandName(text string) string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(parts[0], "@")
	return name
}

// parseCheckArgs parses "/check [days]"; without an argument defaultDays is used
func parseCheckArgs(text string, defaultDays int) (int, error) {
	parts := strings.Fields(text)
	if len(parts) == 1 {
		return max(defaultDays, 1), nil
	}
	if len(parts) != 2 {
		return 0, fmt.Errorf("usage: /check [days]")
	}
	days, err := strconv.Atoi(parts[1])
	if err != nil || days < 1 || days > maxCheckDays {
		return 0, fmt.Errorf("days must be a number between 1 and %d", maxCheckDays)
	}
	return days, nil
}

// parseMapArgs parses "/map customer_id subject words..."
func parseMapArgs(text string) (customerID, subject string, err error) {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return "", "", fmt.Errorf("usage: /map customer_id subject")
	}
	return parts[1], routing.Normalize(strings.Join(parts[2:], " ")), nil
}

// parseIDArg parses the single numeric argument of "/unmap id"
func parseIDArg(text string) (int64, error) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return 0, fmt.Errorf("usage: %s id", commandName(text))
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", parts[1])
	}
	return id, nil
}

// optionalArg returns the first argument of a command, if any
func optionalArg(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// sendMessage sends a message to a chat, optionally into a topic
func (b *Bot) sendMessage(ctx context.Context, chatID int64, topicID int, text string) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if topicID != 0 {
		params.MessageThreadID = topicID
	}

	msg, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		b.logger.Error("failed to send message", "error", err, "chat_id", chatID)
	}
	return msg, err
}

// sendMessageWithKeyboard sends a message with inline keyboard
func (b *Bot) sendMessageWithKeyboard(ctx context.Context, chatID int64, topicID int, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	}

	if topicID != 0 {
		params.MessageThreadID = topicID
	}

	return b.bot.SendMessage(ctx, params)
}

// editMessageReplyMarkup edits the reply markup of a message
func (b *Bot) editMessageReplyMarkup(ctx context.Context, chatID int64, msgID int, keyboard *models.InlineKeyboardMarkup) error {
	_, err := b.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   msgID,
		ReplyMarkup: keyboard,
	})
	return err
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	return err
}
