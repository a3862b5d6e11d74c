package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"feedctx/internal/markdown"

	"github.com/go-telegram/bot/models"
)

const noMentionText = "💡 Mention *@rss* or *@news* to get recent articles from your feeds\\. See /suggest\\."

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return nil
	}

	chatID := message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		command, args := splitCommand(text)

		switch command {
		case "/start", "/help":
			return b.handleStartCommand(ctx, chatID)
		case "/menu":
			return b.handleMenuCommand(ctx, chatID)
		case "/add":
			return b.handleAddCommand(ctx, args, chatID)
		case "/remove":
			return b.handleRemoveCommand(ctx, args, chatID)
		case "/feeds", "/list":
			return b.handleFeedsCommand(ctx, chatID)
		case "/refresh":
			return b.handleRefreshCommand(ctx, chatID)
		case "/categories":
			return b.handleCategoriesCommand(ctx, chatID)
		case "/category":
			return b.handleCategoryCommand(ctx, args, chatID)
		case "/suggest":
			return b.handleSuggestCommand(ctx, chatID)
		default:
			return b.handleChatText(ctx, text, chatID)
		}
	})
}

// handleChatText runs the message through mention processing and answers
// with the assistant, or with the attached context when there is none.
func (b *Bot) handleChatText(ctx context.Context, text string, chatID int64) error {
	result := b.mentions.Process(ctx, text)

	if b.responder == nil {
		if !result.Mentioned {
			return b.sendMessage(ctx, chatID, noMentionText, nil)
		}

		attached := strings.TrimSpace(strings.TrimPrefix(result.Text, text))
		return b.sendMessage(ctx, chatID, markdown.EscapeV2(attached), nil)
	}

	answer, err := b.responder.Respond(ctx, result.Text)
	if err != nil {
		errs := []error{fmt.Errorf("respond: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, "❌ The assistant is unavailable right now\\.", nil); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessage(ctx, chatID, markdown.EscapeV2(answer), nil)
}

// splitCommand returns the command without a @botname suffix and the rest
// of the text. Non-command text yields an empty command.
func splitCommand(text string) (command, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command, args = text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		command, args = text[:i], text[i:]
	}
	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), strings.TrimSpace(args)
}
