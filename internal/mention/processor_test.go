package mention_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/mention"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu         sync.Mutex
	feeds      []domain.Feed
	categories []domain.Category
	articles   []domain.Article
	err        error

	gotHours   int
	gotLimit   int
	gotFeedIDs []string
	queried    bool
}

func (s *fakeSource) Feeds() []domain.Feed { return s.feeds }

func (s *fakeSource) Categories() []domain.Category { return s.categories }

func (s *fakeSource) GetRecentArticles(_ context.Context, hours, limit int, feedIDs []string) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queried = true
	s.gotHours, s.gotLimit, s.gotFeedIDs = hours, limit, feedIDs
	if s.err != nil {
		return nil, s.err
	}

	if feedIDs == nil {
		return s.articles, nil
	}

	return lo.Filter(s.articles, func(a domain.Article, _ int) bool {
		return lo.Contains(feedIDs, a.FeedID)
	}), nil
}

func newProcessor(src *fakeSource) *mention.Processor {
	return mention.NewProcessor(src, slog.Default(), mention.WithClock(func() time.Time { return now }))
}

func techSource() *fakeSource {
	tech := "c-tech"
	return &fakeSource{
		feeds: []domain.Feed{
			{ID: "f1", Title: "Tech Daily", CategoryID: &tech},
			{ID: "f2", Title: "Hacker News"},
		},
		categories: []domain.Category{{ID: tech, Name: "Technology", FeedCount: 1}},
		articles: []domain.Article{
			{
				ID: "a1", FeedID: "f1", Title: "Go 2 released",
				Link: "https://tech.example.com/go2", Content: "<p>Big <b>news</b></p>",
				Published: now.Add(-2 * time.Hour),
			},
			{
				ID: "a2", FeedID: "f1", Title: "Rust 2 released",
				Link: "https://tech.example.com/rust2", Content: strings.Repeat("x", 600),
				Published: now.Add(-30 * time.Minute), IsRead: true,
			},
		},
	}
}

func TestHasMention(t *testing.T) {
	for _, text := range []string{"check @rss today", "@news", "@rss:tech", "@feed:hn", "@RSS"} {
		assert.True(t, mention.HasMention(text), text)
	}
	for _, text := range []string{"rss", "", "user@rss.example", "@feed"} {
		assert.False(t, mention.HasMention(text), text)
	}
}

func TestProcessWithoutMention(t *testing.T) {
	src := techSource()

	res := newProcessor(src).Process(context.Background(), "hello there")
	assert.Equal(t, "hello there", res.Text)
	assert.Nil(t, res.Context)
	assert.False(t, res.Mentioned)
	assert.False(t, src.queried)
}

func TestProcessNoFeedsConfigured(t *testing.T) {
	res := newProcessor(&fakeSource{}).Process(context.Background(), "Summarize @rss")

	assert.True(t, res.Mentioned)
	assert.Nil(t, res.Context)
	assert.True(t, strings.HasPrefix(res.Text, "Summarize @rss\n\n"))
	assert.Contains(t, res.Text, "no feeds are configured")
}

func TestProcessSingleFeed(t *testing.T) {
	src := &fakeSource{
		feeds: []domain.Feed{{ID: "f1", Title: "Tech Daily"}},
		articles: []domain.Article{
			{ID: "a1", FeedID: "f1", Title: "First", Link: "https://example.com/1",
				Content: "<p>first body</p>", Published: now.Add(-time.Hour)},
			{ID: "a2", FeedID: "f1", Title: "Second", Link: "https://example.com/2",
				Content: "<div>" + strings.Repeat("long ", 200) + "</div>", Published: now.Add(-3 * time.Hour)},
		},
	}

	res := newProcessor(src).Process(context.Background(), "Summarize @rss")

	require.True(t, res.Mentioned)
	require.NotNil(t, res.Context)
	assert.True(t, strings.HasPrefix(res.Text, "Summarize @rss\n\n=== Feed context: 1 feeds, 2 recent articles ==="))

	for _, want := range []string{
		"1. First", "Link: https://example.com/1", "first body", "Feed: Tech Daily | 1 hour ago",
		"2. Second", "Link: https://example.com/2", "3 hours ago",
	} {
		assert.Contains(t, res.Text, want)
	}
	assert.Contains(t, res.Text, "long long...")

	assert.Equal(t, mention.WindowHours, src.gotHours)
	assert.Equal(t, mention.MaxArticles, src.gotLimit)
	assert.Nil(t, src.gotFeedIDs)

	assert.Equal(t, 1, res.Context.FeedCount)
	assert.Equal(t, 2, res.Context.UnreadCount)
	assert.Len(t, res.Context.Articles, 2)
	assert.Equal(t, now.Add(-24*time.Hour), res.Context.TimeRange.From)
	assert.Equal(t, now, res.Context.TimeRange.To)
	assert.Nil(t, res.Context.Filters.Category)
	assert.Nil(t, res.Context.Filters.Feed)
}

func TestProcessCategoryFilter(t *testing.T) {
	src := techSource()

	res := newProcessor(src).Process(context.Background(), "news from @rss:tech")

	require.NotNil(t, res.Context)
	assert.Equal(t, []string{"f1"}, src.gotFeedIDs)
	require.NotNil(t, res.Context.Filters.Category)
	assert.Equal(t, "Technology", res.Context.Filters.Category.Name)
	assert.Equal(t, 2, res.Context.FeedCount)
	assert.Equal(t, 1, res.Context.UnreadCount)
	assert.Contains(t, res.Text, "(category: Technology)")
}

func TestProcessFeedFilterByIDAndTitle(t *testing.T) {
	src := techSource()
	p := newProcessor(src)

	res := p.Process(context.Background(), "@feed:hacker")
	assert.Equal(t, []string{"f2"}, src.gotFeedIDs)
	assert.Nil(t, res.Context, "feed has no articles")
	assert.Contains(t, res.Text, "no articles in the last 24 hours (feed: Hacker News)")

	res = p.Process(context.Background(), "@feed:F1")
	assert.Equal(t, []string{"f1"}, src.gotFeedIDs)
	require.NotNil(t, res.Context)
	assert.Equal(t, "Tech Daily", res.Context.Filters.Feed.Title)
}

func TestProcessConflictingFilters(t *testing.T) {
	src := techSource()

	res := newProcessor(src).Process(context.Background(), "@rss:tech @feed:hacker")

	assert.Equal(t, []string{}, src.gotFeedIDs)
	assert.True(t, res.Mentioned)
	assert.Nil(t, res.Context)
}

func TestProcessUnresolvedFilter(t *testing.T) {
	src := techSource()
	p := newProcessor(src)

	res := p.Process(context.Background(), "@rss:sports")
	assert.True(t, res.Mentioned)
	assert.Nil(t, res.Context)
	assert.Contains(t, res.Text, `no category matching "sports"`)
	assert.False(t, src.queried)

	res = p.Process(context.Background(), "@feed:lobsters")
	assert.Contains(t, res.Text, `no feed matching "lobsters"`)
	assert.NotContains(t, res.Text, "Go 2 released")
	assert.False(t, src.queried)
}

func TestProcessNoRecentArticles(t *testing.T) {
	src := &fakeSource{feeds: []domain.Feed{{ID: "f1", Title: "Quiet"}}}

	res := newProcessor(src).Process(context.Background(), "@news anything?")
	assert.True(t, res.Mentioned)
	assert.Nil(t, res.Context)
	assert.Equal(t, "@news anything?\n\n[Feed context: no articles in the last 24 hours.]", res.Text)
}

func TestProcessSourceError(t *testing.T) {
	src := techSource()
	src.err = errors.New("database is locked")

	res := newProcessor(src).Process(context.Background(), "@rss")
	assert.True(t, res.Mentioned)
	assert.Nil(t, res.Context)
	assert.Contains(t, res.Text, "unavailable")
}

func TestProcessDanglingFeedReference(t *testing.T) {
	src := &fakeSource{
		feeds: []domain.Feed{{ID: "f1", Title: "Still here"}},
		articles: []domain.Article{
			{ID: "a1", FeedID: "gone", Title: "Orphan", Published: now.Add(-10 * 24 * time.Hour)},
		},
	}

	res := newProcessor(src).Process(context.Background(), "@rss")
	require.NotNil(t, res.Context)
	assert.Contains(t, res.Text, "Feed: unknown | Oct 07, 2026")
}

func TestSuggestions(t *testing.T) {
	src := techSource()
	for i := range 6 {
		src.feeds = append(src.feeds, domain.Feed{ID: "extra" + string(rune('a'+i)), Title: "extra" + string(rune('a'+i))})
	}

	got := newProcessor(src).Suggestions()
	triggers := lo.Map(got, func(s mention.Suggestion, _ int) string { return s.Trigger })

	assert.Equal(t, []string{
		"@rss",
		"@news",
		"@rss:Technology",
		`@feed:"Tech Daily"`,
		`@feed:"Hacker News"`,
		"@feed:extraa",
		"@feed:extrab",
		"@feed:extrac",
	}, triggers)
	assert.Equal(t, "Technology (1 feeds)", got[2].Description)
}
