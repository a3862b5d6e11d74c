package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	_, err := b.sender.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	})

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("answer callback query: %w", err))
	}

	if callback.Message.Message == nil {
		return errors.Join(errs...)
	}
	chatID := callback.Message.Message.Chat.ID

	err = b.withSpinner(ctx, chatID, func() error {
		switch strings.TrimSpace(callback.Data) {
		case callbackMenu:
			return b.handleMenuCommand(ctx, chatID)
		case callbackFeeds:
			return b.handleFeedsCommand(ctx, chatID)
		case callbackCategory:
			return b.handleCategoriesCommand(ctx, chatID)
		case callbackRefresh:
			return b.handleRefreshCommand(ctx, chatID)
		case callbackSuggest:
			return b.handleSuggestCommand(ctx, chatID)
		default:
			return nil
		}
	})
	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
