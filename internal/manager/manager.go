package manager

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/feed"
	"feedctx/internal/metrics"
	"feedctx/internal/scheduler"

	"github.com/google/uuid"
)

const (
	DefaultMaxArticlesPerFeed = 100
	DefaultRetentionDays      = 30
	DefaultRefreshInterval    = 30 * time.Minute
	DefaultCleanupSpec        = "@daily"
	DefaultFeedTimeout        = 15 * time.Second
	DefaultRefreshConcurrency = 8

	maxErrorMessageRunes = 500
	cleanupTimeout       = 5 * time.Minute
)

// Store is the durable source of truth behind the manager's cache.
type Store interface {
	ListFeeds(ctx context.Context) ([]domain.Feed, error)
	InsertFeed(ctx context.Context, feed *domain.Feed) error
	UpdateFeed(ctx context.Context, feed *domain.Feed) error
	DeleteFeed(ctx context.Context, feedID string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	InsertCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, categoryID string) error

	UpsertArticles(ctx context.Context, articles []domain.Article) (int, error)
	RecentArticles(ctx context.Context, since time.Time, limit int, feedIDs []string) ([]domain.Article, error)
	SearchArticles(ctx context.Context, query string, limit int) ([]domain.Article, error)
	StarredArticles(ctx context.Context, limit int) ([]domain.Article, error)
	SetArticleRead(ctx context.Context, feedID, articleID string, read bool) (bool, error)
	SetArticleStarred(ctx context.Context, feedID, articleID string, starred bool) (bool, error)
	DeleteArticlesBefore(ctx context.Context, cutoff time.Time, keepStarred bool) (int64, error)
}

type Parser interface {
	Parse(raw []byte) (*feed.ParsedFeed, error)
}

type IconFinder interface {
	Find(ctx context.Context, siteURL string) (string, error)
}

// Manager owns the in-memory mirror of feeds and categories. Every mutation
// writes the store first and the cache second; writes that bypass the
// manager leave the cache stale until the next Init.
type Manager struct {
	mu         sync.Mutex
	feeds      map[string]*domain.Feed
	categories map[string]*domain.Category

	store   Store
	fetcher feed.Fetcher
	parser  Parser
	icons   IconFinder
	sched   *scheduler.Scheduler
	metrics *metrics.Metrics

	maxArticlesPerFeed   int
	retentionDays        int
	retentionKeepStarred bool
	refreshInterval      time.Duration
	cleanupSpec          string
	feedTimeout          time.Duration
	refreshConcurrency   int

	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

type Option func(*Manager)

func WithMaxArticlesPerFeed(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxArticlesPerFeed = n
		}
	}
}

// WithRetention sets the purge age and whether starred articles are exempt.
func WithRetention(days int, keepStarred bool) Option {
	return func(m *Manager) {
		if days > 0 {
			m.retentionDays = days
		}
		m.retentionKeepStarred = keepStarred
	}
}

func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshInterval = d
		}
	}
}

func WithCleanupSpec(spec string) Option {
	return func(m *Manager) {
		if spec = strings.TrimSpace(spec); spec != "" {
			m.cleanupSpec = spec
		}
	}
}

func WithFeedTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.feedTimeout = d
		}
	}
}

func WithRefreshConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.refreshConcurrency = n
		}
	}
}

func WithIconFinder(icons IconFinder) Option {
	return func(m *Manager) { m.icons = icons }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func New(store Store, fetcher feed.Fetcher, parser Parser, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		feeds:                make(map[string]*domain.Feed),
		categories:           make(map[string]*domain.Category),
		store:                store,
		fetcher:              fetcher,
		parser:               parser,
		maxArticlesPerFeed:   DefaultMaxArticlesPerFeed,
		retentionDays:        DefaultRetentionDays,
		retentionKeepStarred: true,
		refreshInterval:      DefaultRefreshInterval,
		cleanupSpec:          DefaultCleanupSpec,
		feedTimeout:          DefaultFeedTimeout,
		refreshConcurrency:   DefaultRefreshConcurrency,
		now:                  time.Now,
		newID:                uuid.NewString,
		log:                  log,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.sched = scheduler.New(log,
		scheduler.Job{
			Name: "refresh",
			Spec: scheduler.EverySpec(m.refreshInterval),
			Run:  func(ctx context.Context) { m.RefreshAllFeeds(ctx) },
		},
		scheduler.Job{
			Name:    "cleanup",
			Spec:    m.cleanupSpec,
			Timeout: cleanupTimeout,
			Run:     m.runCleanup,
		},
	)

	return m
}

// Init replaces the cache with the store's current feeds and categories.
func (m *Manager) Init(ctx context.Context) error {
	feeds, err := m.store.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("load feeds: %w", err)
	}

	categories, err := m.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	feedMap := make(map[string]*domain.Feed, len(feeds))
	for i := range feeds {
		f := feeds[i].Clone()
		feedMap[f.ID] = &f
	}

	categoryMap := make(map[string]*domain.Category, len(categories))
	for i := range categories {
		c := categories[i]
		categoryMap[c.ID] = &c
	}

	m.mu.Lock()
	m.feeds = feedMap
	m.categories = categoryMap
	m.mu.Unlock()

	m.log.InfoContext(ctx, "Feed manager is initialized",
		"feedCount", len(feedMap),
		"categoryCount", len(categoryMap))

	return nil
}

// Reset stops scheduled work and drops the cache.
func (m *Manager) Reset() {
	m.StopAutoRefresh()

	m.mu.Lock()
	m.feeds = make(map[string]*domain.Feed)
	m.categories = make(map[string]*domain.Category)
	m.mu.Unlock()
}

func (m *Manager) StartAutoRefresh(ctx context.Context) error {
	if err := m.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	m.log.InfoContext(ctx, "Auto refresh is started",
		"refreshInterval", m.refreshInterval.String(),
		"cleanupSpec", m.cleanupSpec)

	return nil
}

// StopAutoRefresh cancels future scheduled runs; a refresh already in
// flight is not interrupted.
func (m *Manager) StopAutoRefresh() {
	m.sched.Stop()
}

func (m *Manager) AutoRefreshRunning() bool {
	return m.sched.Running()
}

func (m *Manager) runCleanup(ctx context.Context) {
	if _, err := m.CleanupOldArticles(ctx); err != nil {
		m.log.ErrorContext(ctx, "Failed to clean up old articles",
			"error", err,
			"retentionDays", m.retentionDays)
	}
}

// CleanupOldArticles purges articles older than the retention window.
// Feed article counters are not decreased.
func (m *Manager) CleanupOldArticles(ctx context.Context) (int64, error) {
	cutoff := m.retentionCutoff(m.now())

	purged, err := m.store.DeleteArticlesBefore(ctx, cutoff, m.retentionKeepStarred)
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}

	m.metrics.ObservePurge(purged)
	m.log.InfoContext(ctx, "Old articles are cleaned up",
		"purged", purged,
		"cutoff", cutoff,
		"keepStarred", m.retentionKeepStarred)

	return purged, nil
}

func (m *Manager) retentionCutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(m.retentionDays) * 24 * time.Hour)
}

func sortFeeds(feeds []domain.Feed) {
	slices.SortFunc(feeds, func(a, b domain.Feed) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func errorMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	runes := []rune(msg)
	if len(runes) > maxErrorMessageRunes {
		return string(runes[:maxErrorMessageRunes])
	}
	return msg
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
