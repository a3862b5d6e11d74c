package manager

import (
	"context"
	"fmt"
	"strings"

	"feedctx/internal/domain"
	"feedctx/internal/feed"

	"github.com/samber/lo"
)

type AddFeedOptions struct {
	// Title overrides the title declared by the feed.
	Title      string
	CategoryID string
	Tags       []string
}

// FeedUpdate holds the user-editable fields; nil fields are left alone. An
// empty CategoryID clears the category.
type FeedUpdate struct {
	Title      *string
	CategoryID *string
	Tags       *[]string
	Paused     *bool
}

// prefetched carries the document AddFeed already downloaded so the initial
// refresh does not fetch it twice.
type prefetched struct {
	result *feed.FetchResult
	parsed *feed.ParsedFeed
}

// AddFeed subscribes to feedURL. Duplicates are detected by exact string
// comparison of the URL. When the initial refresh fails, the feed is kept
// and returned together with the error.
func (m *Manager) AddFeed(ctx context.Context, feedURL string, opts AddFeedOptions) (domain.Feed, error) {
	feedURL = strings.TrimSpace(feedURL)
	if _, err := feed.ValidateURL(feedURL); err != nil {
		return domain.Feed{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	categoryID := optionalString(opts.CategoryID)

	m.mu.Lock()
	dupErr := m.checkNewFeedLocked(feedURL, categoryID)
	m.mu.Unlock()
	if dupErr != nil {
		return domain.Feed{}, dupErr
	}

	res, err := m.fetcher.Fetch(ctx, feedURL, "", "")
	if err != nil {
		return domain.Feed{}, fmt.Errorf("fetch feed: %w", classify(err, domain.ErrTransport))
	}
	if res.NotModified() {
		return domain.Feed{}, fmt.Errorf("%w: fetch feed: unexpected not modified response", domain.ErrTransport)
	}

	parsed, err := m.parser.Parse(res.Content)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("parse feed: %w", classify(err, domain.ErrParse))
	}

	now := m.now().UTC()
	f := domain.Feed{
		ID:          m.newID(),
		URL:         feedURL,
		Title:       lo.CoalesceOrEmpty(strings.TrimSpace(opts.Title), parsed.Title, feedURL),
		Description: parsed.Description,
		SiteURL:     parsed.Link,
		IconURL:     m.resolveIcon(ctx, feedURL, parsed),
		CategoryID:  categoryID,
		Tags:        normalizeTags(opts.Tags),
		Status:      domain.FeedStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	if err = m.checkNewFeedLocked(feedURL, categoryID); err != nil {
		m.mu.Unlock()
		return domain.Feed{}, err
	}

	if err = m.store.InsertFeed(ctx, &f); err != nil {
		m.mu.Unlock()
		return domain.Feed{}, fmt.Errorf("insert feed: %w", classify(err, domain.ErrStore))
	}

	cached := f.Clone()
	m.feeds[f.ID] = &cached
	m.adjustCategoryLocked(ctx, f.CategoryID, 1)
	m.mu.Unlock()

	m.log.InfoContext(ctx, "Feed is added",
		"feedID", f.ID,
		"feedURL", f.URL,
		"feedTitle", f.Title)

	_, refreshErr := m.refresh(ctx, f.ID, &prefetched{result: res, parsed: parsed})

	added, _ := m.Feed(f.ID)
	if refreshErr != nil {
		return added, fmt.Errorf("initial refresh: %w", refreshErr)
	}

	return added, nil
}

func (m *Manager) checkNewFeedLocked(feedURL string, categoryID *string) error {
	for _, f := range m.feeds {
		if f.URL == feedURL {
			return fmt.Errorf("%w: feed with URL %s already exists (id = %s)", domain.ErrDuplicate, feedURL, f.ID)
		}
	}

	if categoryID != nil {
		if _, ok := m.categories[*categoryID]; !ok {
			return fmt.Errorf("%w: category %s", domain.ErrNotFound, *categoryID)
		}
	}

	return nil
}

func (m *Manager) resolveIcon(ctx context.Context, feedURL string, parsed *feed.ParsedFeed) string {
	if parsed.Icon != "" || m.icons == nil || parsed.Link == "" {
		return parsed.Icon
	}

	icon, err := m.icons.Find(ctx, parsed.Link)
	if err != nil {
		m.log.WarnContext(ctx, "Failed to discover feed icon",
			"error", err,
			"feedURL", feedURL,
			"siteURL", parsed.Link)

		return ""
	}

	return icon
}

// RemoveFeed deletes a feed; removing an unknown feed is not an error.
func (m *Manager) RemoveFeed(ctx context.Context, feedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteFeed(ctx, feedID); err != nil {
		return fmt.Errorf("delete feed: %w", classify(err, domain.ErrStore))
	}

	if f, ok := m.feeds[feedID]; ok {
		m.adjustCategoryLocked(ctx, f.CategoryID, -1)
		delete(m.feeds, feedID)

		m.log.InfoContext(ctx, "Feed is removed",
			"feedID", feedID,
			"feedURL", f.URL)
	}

	return nil
}

func (m *Manager) UpdateFeed(ctx context.Context, feedID string, upd FeedUpdate) (domain.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.feeds[feedID]
	if !ok {
		return domain.Feed{}, fmt.Errorf("%w: feed %s", domain.ErrNotFound, feedID)
	}

	updated := cur.Clone()

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return domain.Feed{}, fmt.Errorf("%w: feed title is empty", domain.ErrInvalidInput)
		}
		updated.Title = title
	}

	if upd.CategoryID != nil {
		updated.CategoryID = optionalString(*upd.CategoryID)
		if updated.CategoryID != nil {
			if _, exists := m.categories[*updated.CategoryID]; !exists {
				return domain.Feed{}, fmt.Errorf("%w: category %s", domain.ErrNotFound, *updated.CategoryID)
			}
		}
	}

	if upd.Tags != nil {
		updated.Tags = normalizeTags(*upd.Tags)
	}

	if upd.Paused != nil {
		switch {
		case *upd.Paused:
			updated.Status = domain.FeedStatusPaused
		case updated.Status == domain.FeedStatusPaused:
			updated.Status = domain.FeedStatusActive
		}
	}

	updated.UpdatedAt = m.now().UTC()

	if err := m.store.UpdateFeed(ctx, &updated); err != nil {
		return domain.Feed{}, fmt.Errorf("update feed: %w", classify(err, domain.ErrStore))
	}

	if deref(cur.CategoryID) != deref(updated.CategoryID) {
		m.adjustCategoryLocked(ctx, cur.CategoryID, -1)
		m.adjustCategoryLocked(ctx, updated.CategoryID, 1)
	}

	m.feeds[feedID] = &updated

	return updated.Clone(), nil
}

// Feeds returns copies of all feeds ordered by creation time.
func (m *Manager) Feeds() []domain.Feed {
	m.mu.Lock()
	feeds := make([]domain.Feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		feeds = append(feeds, f.Clone())
	}
	m.mu.Unlock()

	sortFeeds(feeds)

	return feeds
}

func (m *Manager) Feed(feedID string) (domain.Feed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.feeds[feedID]
	if !ok {
		return domain.Feed{}, false
	}

	return f.Clone(), true
}

func normalizeTags(tags []string) []string {
	cleaned := lo.Uniq(lo.FilterMap(tags, func(tag string, _ int) (string, bool) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		return tag, tag != ""
	}))

	if len(cleaned) == 0 {
		return nil
	}

	return cleaned
}
