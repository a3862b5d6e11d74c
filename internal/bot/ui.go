package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"feedctx/internal/markdown"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	telegramMessageMaxLength = 4096
	sendSpinnerInterval      = 4 * time.Second
)

// sendMessage sends MarkdownV2 text, split into as many messages as
// needed. The keyboard is attached to the last one.
func (b *Bot) sendMessage(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	chunks := markdown.Split(normalizedText, telegramMessageMaxLength)

	var errs []error
	for i, chunk := range chunks {
		if err := b.rateLimiter.Wait(ctx, chatKey(chatID)); err != nil {
			return errors.Join(append(errs, fmt.Errorf("wait for rate limiter: %w", err))...)
		}

		params := &tgbot.SendMessageParams{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: models.ParseModeMarkdown,
			LinkPreviewOptions: &models.LinkPreviewOptions{
				IsDisabled: tgbot.True(),
			},
		}
		if keyboard != nil && i == len(chunks)-1 {
			params.ReplyMarkup = keyboard
		}

		if _, err := b.sender.SendMessage(ctx, params); err != nil {
			errs = append(errs, fmt.Errorf("send message part %d/%d: %w", i+1, len(chunks), err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	_, err := b.sender.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	spinnerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(spinnerCtx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-spinnerCtx.Done():
				return
			case <-t.C:
				b.sendTyping(spinnerCtx, chatID)
			}
		}
	}()

	return fn()
}

func chatKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}
