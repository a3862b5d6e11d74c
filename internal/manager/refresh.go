package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/feed"
	"feedctx/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// RefreshResult is the outcome of one feed refresh. Err is nil on success.
type RefreshResult struct {
	NewArticles int
	Err         error
}

// RefreshFeed fetches the feed conditionally and stores items not seen
// before. It returns the number of new articles; a not modified response
// returns 0 and leaves the feed untouched. Any failure after the feed is
// resolved is recorded on the feed before it is returned.
func (m *Manager) RefreshFeed(ctx context.Context, feedID string) (int, error) {
	return m.refresh(ctx, feedID, nil)
}

func (m *Manager) refresh(ctx context.Context, feedID string, pre *prefetched) (int, error) {
	started := m.now()

	m.mu.Lock()
	cached, ok := m.feeds[feedID]
	var f domain.Feed
	if ok {
		f = cached.Clone()
	}
	m.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("%w: feed %s", domain.ErrNotFound, feedID)
	}

	res, parsed, err := m.fetchAndParse(ctx, f, pre)
	if err != nil {
		m.markFailed(ctx, feedID, err)
		m.metrics.ObserveRefresh(metrics.RefreshError, 0, m.now().Sub(started))
		return 0, err
	}

	if res.NotModified() {
		m.log.DebugContext(ctx, "Feed is not modified",
			"feedID", feedID,
			"feedURL", f.URL)
		m.metrics.ObserveRefresh(metrics.RefreshNotModified, 0, m.now().Sub(started))
		return 0, nil
	}

	fetched := m.now().UTC()
	articles := m.buildArticles(feedID, parsed.Items, fetched)

	inserted, err := m.store.UpsertArticles(ctx, articles)
	if err != nil {
		err = fmt.Errorf("store articles: %w", classify(err, domain.ErrStore))
		m.markFailed(ctx, feedID, err)
		m.metrics.ObserveRefresh(metrics.RefreshError, 0, m.now().Sub(started))
		return 0, err
	}

	if err = m.markRefreshed(ctx, feedID, res, inserted, fetched); err != nil {
		m.markFailed(ctx, feedID, err)
		m.metrics.ObserveRefresh(metrics.RefreshError, 0, m.now().Sub(started))
		return 0, err
	}

	m.metrics.ObserveRefresh(metrics.RefreshSuccess, inserted, m.now().Sub(started))
	m.log.InfoContext(ctx, "Feed is refreshed",
		"feedID", feedID,
		"feedURL", f.URL,
		"items", len(parsed.Items),
		"newArticles", inserted)

	return inserted, nil
}

func (m *Manager) fetchAndParse(
	ctx context.Context,
	f domain.Feed,
	pre *prefetched,
) (*feed.FetchResult, *feed.ParsedFeed, error) {
	if pre != nil {
		return pre.result, pre.parsed, nil
	}

	res, err := m.fetcher.Fetch(ctx, f.URL, deref(f.ETag), deref(f.LastModified))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch feed: %w", classify(err, domain.ErrTransport))
	}

	if res.NotModified() {
		return res, nil, nil
	}

	parsed, err := m.parser.Parse(res.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed: %w", classify(err, domain.ErrParse))
	}

	return res, parsed, nil
}

// buildArticles maps at most maxArticlesPerFeed items to articles. Items
// past the cap are dropped for this cycle. Items published before the
// retention cutoff are never stored.
func (m *Manager) buildArticles(feedID string, items []feed.ParsedItem, fetched time.Time) []domain.Article {
	if len(items) > m.maxArticlesPerFeed {
		items = items[:m.maxArticlesPerFeed]
	}

	cutoff := m.retentionCutoff(fetched)

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		a := m.itemToArticle(feedID, item, fetched)
		if a.Published.Before(cutoff) {
			continue
		}
		articles = append(articles, a)
	}

	return articles
}

func (m *Manager) itemToArticle(feedID string, item feed.ParsedItem, fetched time.Time) domain.Article {
	a := domain.Article{
		ID:         m.articleID(item),
		FeedID:     feedID,
		Title:      strings.TrimSpace(item.Title),
		Link:       strings.TrimSpace(item.Link),
		Author:     item.Author,
		ImageURL:   item.Image,
		Enclosures: item.Enclosures,
		Topics:     normalizeTags(item.Categories),
		Published:  fetched,
		Fetched:    fetched,
	}

	if item.PublishedParsed != nil {
		a.Published = item.PublishedParsed.UTC()
	}

	content := strings.TrimSpace(item.Content)
	description := strings.TrimSpace(item.Description)
	if content == "" {
		a.Content = description
	} else {
		a.Content = content
		if description != content {
			a.Summary = description
		}
	}

	if a.Title == "" {
		a.Title = a.Link
	}

	return a
}

// articleID is the dedup key: guid, else link, else a fresh id. Items with
// neither guid nor link are stored again on every refresh.
func (m *Manager) articleID(item feed.ParsedItem) string {
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	return m.newID()
}

func (m *Manager) markRefreshed(
	ctx context.Context,
	feedID string,
	res *feed.FetchResult,
	inserted int,
	fetched time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.feeds[feedID]
	if !ok {
		// Removed while the refresh was running.
		return nil
	}

	updated := cached.Clone()
	if updated.Status != domain.FeedStatusPaused {
		updated.Status = domain.FeedStatusActive
	}
	updated.ErrorMessage = nil
	updated.ETag = optionalString(res.ETag)
	updated.LastModified = optionalString(res.LastModified)
	updated.LastFetched = &fetched
	updated.ArticleCount += int64(inserted)
	updated.UnreadCount += int64(inserted)
	updated.UpdatedAt = fetched

	if err := m.store.UpdateFeed(ctx, &updated); err != nil {
		return fmt.Errorf("update feed: %w", classify(err, domain.ErrStore))
	}

	m.feeds[feedID] = &updated

	return nil
}

// markFailed records refreshErr on the feed. Only the status and the error
// message change; a paused feed stays paused. The write is not tied to ctx
// so that a cancelled or timed out refresh is still recorded.
func (m *Manager) markFailed(ctx context.Context, feedID string, refreshErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.feeds[feedID]
	if !ok {
		return
	}

	updated := cached.Clone()
	if updated.Status != domain.FeedStatusPaused {
		updated.Status = domain.FeedStatusError
	}
	msg := errorMessage(refreshErr)
	updated.ErrorMessage = &msg

	if err := m.store.UpdateFeed(context.WithoutCancel(ctx), &updated); err != nil {
		m.log.ErrorContext(ctx, "Failed to record feed error",
			"error", err,
			"feedID", feedID,
			"refreshError", refreshErr)
		return
	}

	m.feeds[feedID] = &updated

	m.log.WarnContext(ctx, "Failed to refresh feed",
		"error", refreshErr,
		"feedID", feedID,
		"feedURL", updated.URL)
}

// RefreshAllFeeds refreshes every feed that is not paused, at most
// refreshConcurrency at a time, each bounded by feedTimeout. Every feed gets
// an entry in the result; one failure never affects the others.
func (m *Manager) RefreshAllFeeds(ctx context.Context) map[string]RefreshResult {
	m.mu.Lock()
	ids := make([]string, 0, len(m.feeds))
	for id, f := range m.feeds {
		if f.Status != domain.FeedStatusPaused {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	var (
		resultsMu sync.Mutex
		results   = make(map[string]RefreshResult, len(ids))
	)

	var g errgroup.Group
	g.SetLimit(m.refreshConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			n, err := m.refreshWithTimeout(ctx, id)

			resultsMu.Lock()
			results[id] = RefreshResult{NewArticles: n, Err: err}
			resultsMu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	m.log.InfoContext(ctx, "Feeds are refreshed",
		"feedCount", len(ids),
		"failed", failed)

	return results
}

func (m *Manager) refreshWithTimeout(ctx context.Context, feedID string) (n int, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.feedTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = fmt.Errorf("refresh feed %s panicked: %v", feedID, r)
			m.markFailed(ctx, feedID, err)
		}
	}()

	return m.RefreshFeed(ctx, feedID)
}

// classify keeps err as is when it already carries a domain error and wraps
// it with fallback otherwise.
func classify(err error, fallback error) error {
	for _, known := range []error{
		domain.ErrInvalidInput,
		domain.ErrDuplicate,
		domain.ErrNotFound,
		domain.ErrTransport,
		domain.ErrParse,
		domain.ErrStore,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	return fmt.Errorf("%w: %w", fallback, err)
}
