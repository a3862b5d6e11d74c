package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"feedctx/internal/assistant"
	"feedctx/internal/domain"
	"feedctx/internal/manager"
	"feedctx/internal/mention"
	"feedctx/internal/ratelimiter"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	updateProcessingTimeout = 90 * time.Second
	perChatInterval         = time.Second
)

type FeedManager interface {
	AddFeed(ctx context.Context, url string, opts manager.AddFeedOptions) (domain.Feed, error)
	RemoveFeed(ctx context.Context, feedID string) error
	Feeds() []domain.Feed
	RefreshAllFeeds(ctx context.Context) map[string]manager.RefreshResult
	Categories() []domain.Category
	CreateCategory(ctx context.Context, name, color string) (domain.Category, error)
}

type MentionProcessor interface {
	Process(ctx context.Context, text string) mention.Result
	Suggestions() []mention.Suggestion
}

// Sender is the part of the Telegram API the handlers talk to.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

type Bot struct {
	api          *tgbot.Bot
	sender       Sender
	manager      FeedManager
	mentions     MentionProcessor
	responder    assistant.Responder
	rateLimiter  *ratelimiter.Limiter
	allowedUsers []int64
	log          *slog.Logger
}

// New connects to the Bot API. responder may be nil, in which case chat
// messages are answered with the feed context alone.
func New(
	token string,
	feeds FeedManager,
	mentions MentionProcessor,
	responder assistant.Responder,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...tgbot.Option,
) (*Bot, error) {
	b := newBot(nil, feeds, mentions, responder, allowedUsers, log)

	opts = append([]tgbot.Option{
		tgbot.WithDefaultHandler(b.handleUpdate),
		tgbot.WithMiddlewares(b.allowOnly),
		tgbot.WithErrorsHandler(func(err error) {
			log.Error("Failed to poll updates",
				"error", err)
		}),
	}, opts...)

	api, err := tgbot.New(strings.TrimSpace(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.api = api
	b.sender = api

	return b, nil
}

func newBot(
	sender Sender,
	feeds FeedManager,
	mentions MentionProcessor,
	responder assistant.Responder,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		sender:       sender,
		manager:      feeds,
		mentions:     mentions,
		responder:    responder,
		rateLimiter:  ratelimiter.New(perChatInterval, log),
		allowedUsers: allowedUsers,
		log:          log,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started")
	b.api.Start(ctx)
	b.log.InfoContext(ctx, "Bot is stopped",
		"error", ctx.Err())
}

func (b *Bot) allowOnly(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		userID, chatID := updateUser(update)
		if !b.userAllowed(userID) {
			b.log.DebugContext(ctx, "User is not allowed",
				"userID", userID,
				"chatID", chatID)

			return
		}

		next(ctx, api, update)
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		userID, chatID := updateUser(update)

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		userID, chatID := updateUser(update)

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"data", callback.Data)
		}
	}
}

func updateUser(update *models.Update) (userID int64, chatID int64) {
	switch {
	case update == nil:
	case update.Message != nil:
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		userID = update.CallbackQuery.From.ID
		if update.CallbackQuery.Message.Message != nil {
			chatID = update.CallbackQuery.Message.Message.Chat.ID
		}
	}

	return userID, chatID
}
