package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/manager"
	"feedctx/internal/mention"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	requestTimeout    = 2 * time.Minute
)

type FeedManager interface {
	AddFeed(ctx context.Context, url string, opts manager.AddFeedOptions) (domain.Feed, error)
	RemoveFeed(ctx context.Context, feedID string) error
	Feeds() []domain.Feed
	Categories() []domain.Category
	RefreshFeed(ctx context.Context, feedID string) (int, error)
	RefreshAllFeeds(ctx context.Context) map[string]manager.RefreshResult
	GetRecentArticles(ctx context.Context, hours, limit int, feedIDs []string) ([]domain.Article, error)
	CleanupOldArticles(ctx context.Context) (int64, error)
}

type MentionProcessor interface {
	Process(ctx context.Context, text string) mention.Result
	Suggestions() []mention.Suggestion
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	manager  FeedManager
	mentions MentionProcessor
	db       Pinger
	gatherer prometheus.Gatherer
	router   chi.Router
	log      *slog.Logger
}

func New(
	feeds FeedManager,
	mentions MentionProcessor,
	db Pinger,
	gatherer prometheus.Gatherer,
	log *slog.Logger,
) *Server {
	s := &Server{
		manager:  feeds,
		mentions: mentions,
		db:       db,
		gatherer: gatherer,
		log:      log,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/feeds", s.handleListFeeds)
		r.Post("/feeds", s.handleAddFeed)
		r.Post("/feeds/refresh", s.handleRefreshAll)
		r.Post("/feeds/{feedID}/refresh", s.handleRefreshFeed)
		r.Delete("/feeds/{feedID}", s.handleRemoveFeed)
		r.Get("/categories", s.handleListCategories)
		r.Get("/articles/recent", s.handleRecentArticles)
		r.Post("/cleanup", s.handleCleanup)
		r.Post("/mention", s.handleMention)
		r.Get("/mention/suggestions", s.handleSuggestions)
	})

	s.router = r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "HTTP server is started",
			"addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.log.InfoContext(ctx, "HTTP server is stopped")

	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		s.log.DebugContext(r.Context(), "HTTP request is handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"requestID", middleware.GetReqID(r.Context()))
	})
}
