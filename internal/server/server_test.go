package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/manager"
	"feedctx/internal/mention"
	"feedctx/internal/metrics"
	"feedctx/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fakeManager struct {
	feeds      []domain.Feed
	categories []domain.Category
	articles   []domain.Article
	refreshed  map[string]manager.RefreshResult

	gotHours   int
	gotLimit   int
	gotFeedIDs []string
}

func (m *fakeManager) AddFeed(_ context.Context, url string, opts manager.AddFeedOptions) (domain.Feed, error) {
	if !strings.HasPrefix(url, "https://") {
		return domain.Feed{}, fmt.Errorf("%w: bad url", domain.ErrInvalidInput)
	}
	for _, f := range m.feeds {
		if f.URL == url {
			return domain.Feed{}, fmt.Errorf("%w: feed exists", domain.ErrDuplicate)
		}
	}
	f := domain.Feed{ID: "new", URL: url, Title: opts.Title, Status: domain.FeedStatusActive}
	m.feeds = append(m.feeds, f)
	return f, nil
}

func (m *fakeManager) RemoveFeed(context.Context, string) error { return nil }

func (m *fakeManager) Feeds() []domain.Feed { return m.feeds }

func (m *fakeManager) Categories() []domain.Category { return m.categories }

func (m *fakeManager) RefreshFeed(_ context.Context, feedID string) (int, error) {
	if feedID != "f1" {
		return 0, fmt.Errorf("%w: feed %s", domain.ErrNotFound, feedID)
	}
	return 2, nil
}

func (m *fakeManager) RefreshAllFeeds(context.Context) map[string]manager.RefreshResult {
	return m.refreshed
}

func (m *fakeManager) GetRecentArticles(_ context.Context, hours, limit int, feedIDs []string) ([]domain.Article, error) {
	m.gotHours, m.gotLimit, m.gotFeedIDs = hours, limit, feedIDs
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours", domain.ErrInvalidInput)
	}
	return m.articles, nil
}

func (m *fakeManager) CleanupOldArticles(context.Context) (int64, error) { return 3, nil }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, mgr *fakeManager, db server.Pinger) (*httptest.Server, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)

	processor := mention.NewProcessor(mgr, slog.Default(),
		mention.WithClock(func() time.Time { return now }),
		mention.WithMetrics(mt))

	srv := httptest.NewServer(server.New(mgr, processor, db, reg, slog.Default()).Handler())
	t.Cleanup(srv.Close)

	return srv, reg
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func sampleManager() *fakeManager {
	return &fakeManager{
		feeds: []domain.Feed{{
			ID: "f1", URL: "https://tech.example.com/rss", Title: "Tech Daily",
			Status: domain.FeedStatusActive, ArticleCount: 2, UnreadCount: 2, CreatedAt: now,
		}},
		categories: []domain.Category{{ID: "c1", Name: "Tech", FeedCount: 1}},
		articles: []domain.Article{
			{ID: "a1", FeedID: "f1", Title: "First", Link: "https://tech.example.com/1", Published: now.Add(-time.Hour)},
			{ID: "a2", FeedID: "f1", Title: "Second", Link: "https://tech.example.com/2", Published: now.Add(-2 * time.Hour)},
		},
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, sampleManager(), pinger{})

	var body map[string]string
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/healthz", "", &body))
	assert.Equal(t, "ok", body["status"])

	down, _ := newTestServer(t, sampleManager(), pinger{err: errors.New("closed")})
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, http.MethodGet, down.URL+"/healthz", "", nil))
}

func TestListFeeds(t *testing.T) {
	srv, _ := newTestServer(t, sampleManager(), pinger{})

	var feeds []map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/feeds", "", &feeds))
	require.Len(t, feeds, 1)
	assert.Equal(t, "f1", feeds[0]["id"])
	assert.Equal(t, "active", feeds[0]["status"])
	assert.Equal(t, []any{}, feeds[0]["tags"])
	assert.EqualValues(t, 2, feeds[0]["articleCount"])
}

func TestAddFeed(t *testing.T) {
	mgr := sampleManager()
	srv, _ := newTestServer(t, mgr, pinger{})

	var created map[string]any
	status := doJSON(t, http.MethodPost, srv.URL+"/api/feeds", `{"url":"https://new.example.com/rss","title":"New"}`, &created)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "New", created["title"])

	var errBody map[string]string
	status = doJSON(t, http.MethodPost, srv.URL+"/api/feeds", `{"url":"https://new.example.com/rss"}`, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, errBody["error"], "duplicate")

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/feeds", `{"url":"ftp://x"}`, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/feeds", `{`, nil))
}

func TestRefresh(t *testing.T) {
	mgr := sampleManager()
	mgr.refreshed = map[string]manager.RefreshResult{
		"f1": {NewArticles: 4},
		"f2": {Err: fmt.Errorf("%w: timeout", domain.ErrTransport)},
	}
	srv, _ := newTestServer(t, mgr, pinger{})

	var all map[string]map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/feeds/refresh", "", &all))
	require.Len(t, all, 2)
	assert.EqualValues(t, 4, all["f1"]["newArticles"])
	assert.Nil(t, all["f1"]["error"])
	assert.Contains(t, all["f2"]["error"], "timeout")

	var one map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/feeds/f1/refresh", "", &one))
	assert.EqualValues(t, 2, one["newArticles"])

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, srv.URL+"/api/feeds/missing/refresh", "", nil))
}

func TestRecentArticles(t *testing.T) {
	mgr := sampleManager()
	srv, _ := newTestServer(t, mgr, pinger{})

	var articles []map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/articles/recent", "", &articles))
	assert.Len(t, articles, 2)
	assert.Equal(t, 24, mgr.gotHours)
	assert.Equal(t, 50, mgr.gotLimit)
	assert.Nil(t, mgr.gotFeedIDs)

	require.Equal(t, http.StatusOK,
		doJSON(t, http.MethodGet, srv.URL+"/api/articles/recent?hours=48&limit=9999&feeds=f1,,f2", "", nil))
	assert.Equal(t, 48, mgr.gotHours)
	assert.Equal(t, 500, mgr.gotLimit)
	assert.Equal(t, []string{"f1", "f2"}, mgr.gotFeedIDs)

	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, http.MethodGet, srv.URL+"/api/articles/recent?hours=abc", "", nil))
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, http.MethodGet, srv.URL+"/api/articles/recent?hours=0", "", nil))
}

func TestMention(t *testing.T) {
	srv, reg := newTestServer(t, sampleManager(), pinger{})

	var res struct {
		Text      string `json:"text"`
		Mentioned bool   `json:"mentioned"`
		Context   *struct {
			Articles  []map[string]any `json:"articles"`
			FeedCount int              `json:"feedCount"`
		} `json:"context"`
	}

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/mention", `{"text":"Summarize @rss"}`, &res))
	assert.True(t, res.Mentioned)
	assert.True(t, strings.HasPrefix(res.Text, "Summarize @rss\n\n=== Feed context: 1 feeds, 2 recent articles ==="))
	require.NotNil(t, res.Context)
	assert.Len(t, res.Context.Articles, 2)
	assert.Equal(t, 1, res.Context.FeedCount)

	res.Context = nil
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/mention", `{"text":"no trigger"}`, &res))
	assert.False(t, res.Mentioned)
	assert.Nil(t, res.Context)
	assert.Equal(t, "no trigger", res.Text)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "feedctx_mentions_total" {
			found = true
			assert.InDelta(t, 1, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	assert.True(t, found)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, reg := newTestServer(t, sampleManager(), pinger{})
	metrics.New(prometheus.WrapRegistererWithPrefix("other_", reg)).ObservePurge(5)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "other_feedctx_articles_purged_total 5")
}

func TestSuggestionsAndCategories(t *testing.T) {
	srv, _ := newTestServer(t, sampleManager(), pinger{})

	var suggestions []map[string]string
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/mention/suggestions", "", &suggestions))
	require.Len(t, suggestions, 4)
	assert.Equal(t, "@rss", suggestions[0]["trigger"])
	assert.Equal(t, "@rss:Tech", suggestions[2]["trigger"])

	var categories []map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/categories", "", &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "Tech", categories[0]["name"])
}

func TestCleanupAndRemove(t *testing.T) {
	srv, _ := newTestServer(t, sampleManager(), pinger{})

	var body map[string]int64
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/cleanup", "", &body))
	assert.EqualValues(t, 3, body["purged"])

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/feeds/f1", "", nil))
}
