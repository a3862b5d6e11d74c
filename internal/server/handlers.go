package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/manager"
	"feedctx/internal/mention"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const (
	defaultRecentHours = 24
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	maxRequestBytes    = 1 << 20
)

type feedResponse struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	SiteURL      string     `json:"siteUrl,omitempty"`
	IconURL      string     `json:"iconUrl,omitempty"`
	CategoryID   *string    `json:"categoryId"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"errorMessage"`
	LastFetched  *time.Time `json:"lastFetched"`
	ArticleCount int64      `json:"articleCount"`
	UnreadCount  int64      `json:"unreadCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toFeedResponse(f domain.Feed) feedResponse {
	return feedResponse{
		ID:           f.ID,
		URL:          f.URL,
		Title:        f.Title,
		Description:  f.Description,
		SiteURL:      f.SiteURL,
		IconURL:      f.IconURL,
		CategoryID:   f.CategoryID,
		Tags:         lo.Ternary(f.Tags == nil, []string{}, f.Tags),
		Status:       string(f.Status),
		ErrorMessage: f.ErrorMessage,
		LastFetched:  f.LastFetched,
		ArticleCount: f.ArticleCount,
		UnreadCount:  f.UnreadCount,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

type categoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	FeedCount int64     `json:"feedCount"`
	CreatedAt time.Time `json:"createdAt"`
}

type articleResponse struct {
	ID        string    `json:"id"`
	FeedID    string    `json:"feedId"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary,omitempty"`
	Author    string    `json:"author,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Published time.Time `json:"published"`
	IsRead    bool      `json:"isRead"`
	IsStarred bool      `json:"isStarred"`
}

func toArticleResponse(a domain.Article) articleResponse {
	return articleResponse{
		ID:        a.ID,
		FeedID:    a.FeedID,
		Title:     a.Title,
		Link:      a.Link,
		Summary:   a.Summary,
		Author:    a.Author,
		ImageURL:  a.ImageURL,
		Published: a.Published,
		IsRead:    a.IsRead,
		IsStarred: a.IsStarred,
	}
}

type refreshResponse struct {
	NewArticles int    `json:"newArticles"`
	Error       string `json:"error,omitempty"`
}

type mentionContextResponse struct {
	Articles    []articleResponse `json:"articles"`
	FeedCount   int               `json:"feedCount"`
	UnreadCount int               `json:"unreadCount"`
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Category    string            `json:"category,omitempty"`
	Feed        string            `json:"feed,omitempty"`
}

type mentionResponse struct {
	Text      string                  `json:"text"`
	Mentioned bool                    `json:"mentioned"`
	Context   *mentionContextResponse `json:"context"`
}

func toMentionResponse(res mention.Result) mentionResponse {
	out := mentionResponse{Text: res.Text, Mentioned: res.Mentioned}
	if res.Context == nil {
		return out
	}

	mc := res.Context
	out.Context = &mentionContextResponse{
		Articles:    lo.Map(mc.Articles, func(a domain.Article, _ int) articleResponse { return toArticleResponse(a) }),
		FeedCount:   mc.FeedCount,
		UnreadCount: mc.UnreadCount,
		From:        mc.TimeRange.From,
		To:          mc.TimeRange.To,
	}
	if mc.Filters.Category != nil {
		out.Context.Category = mc.Filters.Category.Name
	}
	if mc.Filters.Feed != nil {
		out.Context.Feed = mc.Filters.Feed.Title
	}

	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.ErrorContext(r.Context(), "Failed to ping database",
				"error", err)
			s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds := lo.Map(s.manager.Feeds(), func(f domain.Feed, _ int) feedResponse { return toFeedResponse(f) })
	s.writeJSON(w, r, http.StatusOK, feeds)
}

func (s *Server) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL        string   `json:"url"`
		Title      string   `json:"title"`
		CategoryID string   `json:"categoryId"`
		Tags       []string `json:"tags"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	f, err := s.manager.AddFeed(r.Context(), req.URL, manager.AddFeedOptions{
		Title:      req.Title,
		CategoryID: req.CategoryID,
		Tags:       req.Tags,
	})
	if err != nil && f.ID == "" {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		s.log.WarnContext(r.Context(), "Feed is added but initial refresh failed",
			"error", err,
			"feedID", f.ID)
	}

	s.writeJSON(w, r, http.StatusCreated, toFeedResponse(f))
}

func (s *Server) handleRemoveFeed(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.RemoveFeed(r.Context(), chi.URLParam(r, "feedID")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshFeed(w http.ResponseWriter, r *http.Request) {
	n, err := s.manager.RefreshFeed(r.Context(), chi.URLParam(r, "feedID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, refreshResponse{NewArticles: n})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	results := s.manager.RefreshAllFeeds(r.Context())

	out := make(map[string]refreshResponse, len(results))
	for id, res := range results {
		rr := refreshResponse{NewArticles: res.NewArticles}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		out[id] = rr
	}

	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := lo.Map(s.manager.Categories(), func(c domain.Category, _ int) categoryResponse {
		return categoryResponse{
			ID:        c.ID,
			Name:      c.Name,
			Color:     c.Color,
			FeedCount: c.FeedCount,
			CreatedAt: c.CreatedAt,
		}
	})

	s.writeJSON(w, r, http.StatusOK, categories)
}

// handleRecentArticles accepts hours, limit and a comma separated feeds
// parameter.
func (s *Server) handleRecentArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	hours, err := intParam(q.Get("hours"), defaultRecentHours)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q.Get("limit"), defaultRecentLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var feedIDs []string
	if q.Has("feeds") {
		feedIDs = lo.Compact(lo.Map(strings.Split(q.Get("feeds"), ","), func(id string, _ int) string {
			return strings.TrimSpace(id)
		}))
	}

	articles, err := s.manager.GetRecentArticles(r.Context(), hours, min(limit, maxRecentLimit), feedIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK,
		lo.Map(articles, func(a domain.Article, _ int) articleResponse { return toArticleResponse(a) }))
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	purged, err := s.manager.CleanupOldArticles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]int64{"purged": purged})
}

func (s *Server) handleMention(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	s.writeJSON(w, r, http.StatusOK, toMentionResponse(s.mentions.Process(r.Context(), req.Text)))
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	type suggestion struct {
		Trigger     string `json:"trigger"`
		Description string `json:"description"`
	}

	s.writeJSON(w, r, http.StatusOK, lo.Map(s.mentions.Suggestions(), func(sg mention.Suggestion, _ int) suggestion {
		return suggestion{Trigger: sg.Trigger, Description: sg.Description}
	}))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to encode response",
			"error", err,
			"path", r.URL.Path)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "Failed to handle request",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
	}

	s.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrParse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(domain.ErrInvalidInput, err)
	}

	return n, nil
}
