package mention

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/metrics"
)

const (
	WindowHours = 24
	MaxArticles = 30
)

// Outcomes reported to metrics.
const (
	OutcomeContext       = "context"
	OutcomeNotConfigured = "not_configured"
	OutcomeNotFound      = "not_found"
	OutcomeEmpty         = "empty"
	OutcomeError         = "error"
)

// Source is the read side of the feed manager.
type Source interface {
	Feeds() []domain.Feed
	Categories() []domain.Category
	GetRecentArticles(ctx context.Context, hours, limit int, feedIDs []string) ([]domain.Article, error)
}

type Filters struct {
	Category *domain.Category
	Feed     *domain.Feed
}

func (f Filters) labels() []string {
	var labels []string
	if f.Category != nil {
		labels = append(labels, "category: "+f.Category.Name)
	}
	if f.Feed != nil {
		labels = append(labels, "feed: "+f.Feed.Title)
	}
	return labels
}

type TimeRange struct {
	From time.Time
	To   time.Time
}

// Context is the structured counterpart of the block appended to the
// message.
type Context struct {
	Articles    []domain.Article
	FeedCount   int
	UnreadCount int
	TimeRange   TimeRange
	Filters     Filters
}

// Result replaces the outgoing message. Context is nil unless articles
// were attached.
type Result struct {
	Text      string
	Context   *Context
	Mentioned bool
}

type Processor struct {
	source  Source
	metrics *metrics.Metrics
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Processor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(source Source, log *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		source: source,
		now:    time.Now,
		log:    log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process enriches text with recent articles when it mentions feeds. It
// never fails; problems become a notice appended to the message.
func (p *Processor) Process(ctx context.Context, text string) Result {
	triggers := scanTriggers(text)
	if len(triggers) == 0 {
		return Result{Text: text}
	}

	feeds := p.source.Feeds()
	if len(feeds) == 0 {
		p.metrics.ObserveMention(OutcomeNotConfigured)
		return p.notice(text, noticeNotConfigured)
	}

	categoryQuery, feedQuery := filters(triggers)

	var f Filters
	if categoryQuery != "" {
		f.Category = resolveCategory(p.source.Categories(), categoryQuery)
		if f.Category == nil {
			p.metrics.ObserveMention(OutcomeNotFound)
			return p.notice(text, categoryNotFound(categoryQuery))
		}
	}
	if feedQuery != "" {
		f.Feed = resolveFeed(feeds, feedQuery)
		if f.Feed == nil {
			p.metrics.ObserveMention(OutcomeNotFound)
			return p.notice(text, feedNotFound(feedQuery))
		}
	}

	now := p.now()

	articles, err := p.source.GetRecentArticles(ctx, WindowHours, MaxArticles, feedIDs(feeds, f))
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to get recent articles",
			"error", err,
			"categoryFilter", categoryQuery,
			"feedFilter", feedQuery)
		p.metrics.ObserveMention(OutcomeError)
		return p.notice(text, noticeUnavailable)
	}

	if len(articles) == 0 {
		p.metrics.ObserveMention(OutcomeEmpty)
		return p.notice(text, noArticles(f))
	}

	mc := &Context{
		Articles:  articles,
		FeedCount: len(feeds),
		TimeRange: TimeRange{
			From: now.Add(-WindowHours * time.Hour),
			To:   now,
		},
		Filters: f,
	}
	for _, a := range articles {
		if !a.IsRead {
			mc.UnreadCount++
		}
	}

	p.metrics.ObserveMention(OutcomeContext)

	return Result{
		Text:      text + "\n\n" + formatBlock(mc, feeds, now),
		Context:   mc,
		Mentioned: true,
	}
}

func (p *Processor) notice(text, notice string) Result {
	return Result{
		Text:      text + "\n\n" + notice,
		Mentioned: true,
	}
}

// resolveFeed returns the first feed whose id equals query or whose title
// contains it, ignoring case.
func resolveFeed(feeds []domain.Feed, query string) *domain.Feed {
	q := strings.ToLower(query)
	for i := range feeds {
		f := feeds[i]
		if strings.EqualFold(f.ID, query) || strings.Contains(strings.ToLower(f.Title), q) {
			return &f
		}
	}
	return nil
}

func resolveCategory(categories []domain.Category, query string) *domain.Category {
	q := strings.ToLower(query)
	for i := range categories {
		c := categories[i]
		if strings.EqualFold(c.ID, query) || strings.Contains(strings.ToLower(c.Name), q) {
			return &c
		}
	}
	return nil
}

// feedIDs is nil when no filter is active. A category with no feeds, or a
// feed outside the requested category, yields an empty set.
func feedIDs(feeds []domain.Feed, f Filters) []string {
	if f.Category == nil && f.Feed == nil {
		return nil
	}

	ids := []string{}
	for _, feed := range feeds {
		if f.Category != nil && (feed.CategoryID == nil || *feed.CategoryID != f.Category.ID) {
			continue
		}
		if f.Feed != nil && feed.ID != f.Feed.ID {
			continue
		}
		ids = append(ids, feed.ID)
	}

	return ids
}
