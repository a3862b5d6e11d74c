package manager

import (
	"context"
	"fmt"
	"time"

	"feedctx/internal/domain"
)

// GetRecentArticles returns articles published within the last hours,
// newest first. A nil feedIDs means every feed; a non-nil empty one matches
// nothing.
func (m *Manager) GetRecentArticles(ctx context.Context, hours, limit int, feedIDs []string) ([]domain.Article, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", domain.ErrInvalidInput, hours)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidInput, limit)
	}
	if feedIDs != nil && len(feedIDs) == 0 {
		return []domain.Article{}, nil
	}

	since := m.now().Add(-time.Duration(hours) * time.Hour)

	articles, err := m.store.RecentArticles(ctx, since, limit, feedIDs)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", classify(err, domain.ErrStore))
	}

	return articles, nil
}

func (m *Manager) SearchArticles(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidInput, limit)
	}

	articles, err := m.store.SearchArticles(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", classify(err, domain.ErrStore))
	}

	return articles, nil
}

func (m *Manager) StarredArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidInput, limit)
	}

	articles, err := m.store.StarredArticles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query starred articles: %w", classify(err, domain.ErrStore))
	}

	return articles, nil
}

// MarkArticleRead toggles the read flag and keeps the feed's unread count
// in step. The count never drops below zero.
func (m *Manager) MarkArticleRead(ctx context.Context, feedID, articleID string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed, err := m.store.SetArticleRead(ctx, feedID, articleID, read)
	if err != nil {
		return fmt.Errorf("set article read: %w", classify(err, domain.ErrStore))
	}
	if !changed {
		return nil
	}

	cached, ok := m.feeds[feedID]
	if !ok {
		return nil
	}

	updated := cached.Clone()
	if read {
		updated.UnreadCount = max(updated.UnreadCount-1, 0)
	} else {
		updated.UnreadCount++
	}
	updated.UpdatedAt = m.now().UTC()

	if err = m.store.UpdateFeed(ctx, &updated); err != nil {
		return fmt.Errorf("update feed: %w", classify(err, domain.ErrStore))
	}

	m.feeds[feedID] = &updated

	return nil
}

func (m *Manager) SetArticleStarred(ctx context.Context, feedID, articleID string, starred bool) error {
	if _, err := m.store.SetArticleStarred(ctx, feedID, articleID, starred); err != nil {
		return fmt.Errorf("set article starred: %w", classify(err, domain.ErrStore))
	}

	return nil
}
