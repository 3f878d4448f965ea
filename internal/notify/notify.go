package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/config"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Notifier sends one best-effort message to the paging channel.
// Params: context and message body.
// Returns: transport error; delivery is never retried or escalated.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// TelegramNotifier sends messages to one Telegram chat.
// Params: bot client, chat id, and deferred init error.
// Returns: Telegram paging channel implementation.
type TelegramNotifier struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramNotifier creates a Telegram notifier from config.
// Params: Telegram notifier config.
// Returns: initialized notifier; configuration problems surface on Send.
func NewTelegramNotifier(cfg config.TelegramNotifier) *TelegramNotifier {
	notifier := &TelegramNotifier{
		chatID: normalizeChatID(cfg.ChatID),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		notifier.initErr = errors.New("telegram bot token is required")
		return notifier
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		notifier.initErr = errors.New("telegram chat_id is required")
		return notifier
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
	}
	if strings.TrimSpace(cfg.APIBase) != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		notifier.initErr = fmt.Errorf("init telegram bot: %w", err)
		return notifier
	}
	notifier.client = botClient
	return notifier
}

// Send posts one message to the configured Telegram chat.
// Params: context and message body.
// Returns: transport or HTTP error.
func (n *TelegramNotifier) Send(ctx context.Context, message string) error {
	if n.initErr != nil {
		return n.initErr
	}
	if n.client == nil {
		return errors.New("telegram client is not initialized")
	}

	sent, err := n.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      message,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// NopNotifier drops messages when no channel is configured.
// Params: none.
// Returns: always-successful notifier.
type NopNotifier struct{}

// Send drops one message.
// Params: context and message body (unused).
// Returns: nil.
func (NopNotifier) Send(_ context.Context, _ string) error {
	return nil
}
