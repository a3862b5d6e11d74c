package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"feedctx/internal/domain"
	"feedctx/internal/manager"
	"feedctx/internal/markdown"

	"mvdan.cc/xurls/v2"
)

const welcomeText = `🤖 *Welcome\!*

I keep track of your feeds and bring recent articles into our chat\.

– Add feeds with /add \<url\>
– See them with /feeds, remove with /remove \<number or id\>
– Refresh everything now with /refresh
– Group feeds: /categories, /category \<name\>
– Mention *@rss* or *@news* in any message to attach the last 24h of articles
– Narrow it down with *@rss:category* or *@feed:name*, see /suggest`

const failedText = "❌ Failed\\."

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessage(ctx, chatID, welcomeText, menuKeyboard())
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessage(ctx, chatID, "❔ *Choose an option:*", menuKeyboard())
}

func (b *Bot) handleAddCommand(ctx context.Context, args string, chatID int64) error {
	urls := xurls.Strict().FindAllString(args, -1)
	if len(urls) == 0 {
		return b.sendMessage(ctx, chatID, "✖️ Send /add followed by a feed URL\\.", returnKeyboard())
	}

	var (
		errs  []error
		lines []string
	)

	for _, url := range urls {
		f, err := b.manager.AddFeed(ctx, url, manager.AddFeedOptions{})
		switch {
		case err == nil:
			lines = append(lines, fmt.Sprintf("✅ %s", markdown.Link(f.Title, f.URL)))
		case errors.Is(err, domain.ErrDuplicate):
			lines = append(lines, fmt.Sprintf("☑️ Already added: %s", markdown.EscapeV2(url)))
		case f.ID != "":
			errs = append(errs, fmt.Errorf("add feed %s: %w", url, err))
			lines = append(lines, fmt.Sprintf("⚠️ Added %s, but the first refresh failed\\.",
				markdown.Link(f.Title, f.URL)))
		default:
			errs = append(errs, fmt.Errorf("add feed %s: %w", url, err))
			lines = append(lines, fmt.Sprintf("❌ %s: %s",
				markdown.EscapeV2(url), markdown.EscapeV2(userError(err))))
		}
	}

	if err := b.sendMessage(ctx, chatID, strings.Join(lines, "\n"), returnKeyboard()); err != nil {
		errs = append(errs, fmt.Errorf("send message: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleRemoveCommand(ctx context.Context, args string, chatID int64) error {
	f, ok := b.resolveFeedArg(strings.TrimSpace(args))
	if !ok {
		return b.sendMessage(ctx, chatID, "✖️ Feed is not found\\. See /feeds for numbers and ids\\.", returnKeyboard())
	}

	if err := b.manager.RemoveFeed(ctx, f.ID); err != nil {
		errs := []error{fmt.Errorf("remove feed: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, failedText, returnKeyboard()); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessage(ctx, chatID,
		fmt.Sprintf("✅ Feed %s is removed\\.", markdown.Link(f.Title, f.URL)),
		returnKeyboard())
}

// resolveFeedArg accepts a 1-based position in the /feeds list or a feed id.
func (b *Bot) resolveFeedArg(arg string) (domain.Feed, bool) {
	if arg == "" {
		return domain.Feed{}, false
	}

	feeds := b.manager.Feeds()

	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(feeds) {
			return feeds[n-1], true
		}
		return domain.Feed{}, false
	}

	for _, f := range feeds {
		if f.ID == arg {
			return f, true
		}
	}

	return domain.Feed{}, false
}

func (b *Bot) handleFeedsCommand(ctx context.Context, chatID int64) error {
	feeds := b.manager.Feeds()
	if len(feeds) == 0 {
		return b.sendMessage(ctx, chatID, "✖️ Feed list is empty\\. Add one with /add \\<url\\>\\.", returnKeyboard())
	}

	categories := make(map[string]string)
	for _, c := range b.manager.Categories() {
		categories[c.ID] = c.Name
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🔍 *Found %d feeds:*\n\n", len(feeds)))

	for i, f := range feeds {
		message.WriteString(fmt.Sprintf("%d\\. %s %s\n", i+1, statusIcon(f.Status), markdown.Link(f.Title, f.URL)))

		details := []string{
			fmt.Sprintf("%d articles, %d unread", f.ArticleCount, f.UnreadCount),
		}
		if f.CategoryID != nil {
			if name, ok := categories[*f.CategoryID]; ok {
				details = append(details, "category "+name)
			}
		}
		if f.ErrorMessage != nil {
			details = append(details, "error: "+*f.ErrorMessage)
		}

		message.WriteString(fmt.Sprintf("    %s %s\n",
			markdown.Code(f.ID), markdown.EscapeV2(strings.Join(details, ", "))))
	}

	return b.sendMessage(ctx, chatID, message.String(), returnKeyboard())
}

func (b *Bot) handleRefreshCommand(ctx context.Context, chatID int64) error {
	results := b.manager.RefreshAllFeeds(ctx)
	if len(results) == 0 {
		return b.sendMessage(ctx, chatID, "✖️ Nothing to refresh\\.", returnKeyboard())
	}

	titles := make(map[string]string)
	for _, f := range b.manager.Feeds() {
		titles[f.ID] = f.Title
	}

	newArticles := 0
	var failed []string
	for id, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("– %s: %s",
				markdown.EscapeV2(titleOr(titles, id)), markdown.EscapeV2(userError(r.Err))))
			continue
		}
		newArticles += r.NewArticles
	}
	sort.Strings(failed)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🔄 Refreshed %d feeds, %d new articles\\.",
		len(results)-len(failed), newArticles))
	if len(failed) > 0 {
		message.WriteString(fmt.Sprintf("\n\n⚠️ %d failed:\n", len(failed)))
		message.WriteString(strings.Join(failed, "\n"))
	}

	return b.sendMessage(ctx, chatID, message.String(), returnKeyboard())
}

func (b *Bot) handleCategoriesCommand(ctx context.Context, chatID int64) error {
	categories := b.manager.Categories()
	if len(categories) == 0 {
		return b.sendMessage(ctx, chatID, "✖️ No categories yet\\. Create one with /category \\<name\\>\\.", returnKeyboard())
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🗂 *Found %d categories:*\n\n", len(categories)))
	for i, c := range categories {
		message.WriteString(fmt.Sprintf("%d\\. %s \\(%d feeds\\)\n", i+1, markdown.Bold(c.Name), c.FeedCount))
	}

	return b.sendMessage(ctx, chatID, message.String(), returnKeyboard())
}

func (b *Bot) handleCategoryCommand(ctx context.Context, args string, chatID int64) error {
	name := strings.TrimSpace(args)
	if name == "" {
		return b.sendMessage(ctx, chatID, "✖️ Send /category followed by a name\\.", returnKeyboard())
	}

	c, err := b.manager.CreateCategory(ctx, name, "")
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return b.sendMessage(ctx, chatID, "☑️ Category already exists\\.", returnKeyboard())
		}

		errs := []error{fmt.Errorf("create category: %w", err)}
		if sendErr := b.sendMessage(ctx, chatID, failedText, returnKeyboard()); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessage(ctx, chatID,
		fmt.Sprintf("✅ Category %s is created\\.", markdown.Bold(c.Name)),
		returnKeyboard())
}

func (b *Bot) handleSuggestCommand(ctx context.Context, chatID int64) error {
	var message strings.Builder
	message.WriteString("💡 *Mentions you can use:*\n\n")

	for _, s := range b.mentions.Suggestions() {
		message.WriteString(fmt.Sprintf("%s – %s\n", markdown.Code(s.Trigger), markdown.EscapeV2(s.Description)))
	}

	return b.sendMessage(ctx, chatID, message.String(), returnKeyboard())
}

func statusIcon(status domain.FeedStatus) string {
	switch status {
	case domain.FeedStatusError:
		return "⚠️"
	case domain.FeedStatusPaused:
		return "⏸"
	case domain.FeedStatusActive:
		return "🟢"
	default:
		return "❔"
	}
}

func titleOr(titles map[string]string, id string) string {
	if t, ok := titles[id]; ok && t != "" {
		return t
	}
	return id
}

// userError names the failure class without leaking internals.
func userError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid URL"
	case errors.Is(err, domain.ErrDuplicate):
		return "already exists"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrTransport):
		return "could not download the feed"
	case errors.Is(err, domain.ErrParse):
		return "not a valid feed"
	case errors.Is(err, domain.ErrStore):
		return "storage error"
	default:
		return "unexpected error"
	}
}
