package telegram

import (
	"context"
	"log/slog"
	"slices"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/metaleads/internal/config"
	"github.com/mixelka/metaleads/internal/database"
	"github.com/mixelka/metaleads/internal/formatter"
	"github.com/mixelka/metaleads/internal/ingest"
)

// Bot represents the Telegram admin bot
type Bot struct {
	bot       *bot.Bot
	db        *database.DB
	service   *ingest.Service
	formatter *formatter.TelegramFormatter
	logger    *slog.Logger
	config    *config.Config
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Config    *config.Config
	DB        *database.DB
	Service   *ingest.Service
	Formatter *formatter.TelegramFormatter
	Logger    *slog.Logger
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	b := &Bot{
		db:        deps.DB,
		service:   deps.Service,
		formatter: deps.Formatter,
		logger:    deps.Logger.With("component", "telegram_bot"),
		config:    deps.Config,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Config.TelegramToken, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.registerHandlers()

	return b, nil
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/check", bot.MatchTypePrefix, b.adminOnly(b.handleCheck))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypePrefix, b.adminOnly(b.handleStatus))
	// "/map" is a prefix of "/mappings"; one handler serves both
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/map", bot.MatchTypePrefix, b.adminOnly(b.handleMapCommands))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unmap", bot.MatchTypePrefix, b.adminOnly(b.handleUnmap))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/leads", bot.MatchTypePrefix, b.adminOnly(b.handleLeads))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, b.handleCallback)
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// adminOnly drops commands from users not listed in TELEGRAM_ADMIN_IDS
func (b *Bot) adminOnly(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil || msg.From == nil {
			return
		}
		if !isAdmin(b.config.TelegramAdminIDs, msg.From.ID) {
			b.logger.Warn("command from non-admin user", "user_id", msg.From.ID, "text", msg.Text)
			b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, "Only administrators can use this command")
			return
		}
		next(ctx, tgBot, update)
	}
}

func isAdmin(admins []int64, userID int64) bool {
	return slices.Contains(admins, userID)
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	// Ignore non-message updates and messages without text
	if update.Message == nil {
		return
	}

	// Log unknown commands
	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}

// handleStart handles /start command
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelp(ctx, tgBot, update)
}

// handleHelp handles /help command
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	text := `<b>Meta Leads Bot</b>

Collects Facebook/Instagram lead emails and routes them to customers by subject.

<b>Commands:</b>
/check [days] - check the mailbox now (default: today)
/status - monitoring state and last check
/mappings - list subject mappings
/map customer_id subject - route a subject to a customer
/unmap id - delete a subject mapping
/leads [customer_id] - recent leads

<b>Examples:</b>
<code>/check 3</code>
<code>/map C1 Acme Dental Leads</code>`

	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, text)
}
