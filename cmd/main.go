package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"feedctx/internal/assistant"
	"feedctx/internal/bot"
	"feedctx/internal/config"
	"feedctx/internal/database"
	"feedctx/internal/feed"
	"feedctx/internal/manager"
	"feedctx/internal/mention"
	"feedctx/internal/metrics"
	"feedctx/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mt := metrics.New(registry)

	fetcher := feed.NewHTTPFetcher(log)

	mgr := manager.New(db, fetcher, feed.NewParser(log), log,
		manager.WithMaxArticlesPerFeed(cfg.MaxArticlesPerFeed),
		manager.WithRetention(cfg.RetentionDays, cfg.RetentionKeepStarred),
		manager.WithRefreshInterval(cfg.RefreshInterval),
		manager.WithCleanupSpec(cfg.CleanupSpec),
		manager.WithFeedTimeout(cfg.FeedTimeout),
		manager.WithRefreshConcurrency(cfg.RefreshConcurrency),
		manager.WithIconFinder(feed.NewIconFinder(fetcher)),
		manager.WithMetrics(mt),
	)

	if err = mgr.Init(ctx); err != nil {
		log.ErrorContext(ctx, "Failed to initialize feed manager",
			"error", err)

		return
	}

	applySubscriptions(ctx, mgr, cfg.FeedsFile, log)

	// Scheduled runs outlive the signal; StopAutoRefresh only prevents new ones.
	if err = mgr.StartAutoRefresh(context.WithoutCancel(ctx)); err != nil {
		log.ErrorContext(ctx, "Failed to start auto refresh",
			"error", err,
			"refreshInterval", cfg.RefreshInterval.String(),
			"cleanupSpec", cfg.CleanupSpec)

		return
	}
	defer mgr.StopAutoRefresh()

	mentions := mention.NewProcessor(mgr, log, mention.WithMetrics(mt))

	var wg sync.WaitGroup

	if addr := strings.TrimSpace(cfg.HTTPAddr); addr != "" {
		srv := server.New(mgr, mentions, db, registry, log)

		wg.Add(1)
		go func() {
			defer wg.Done()

			if serveErr := srv.Start(ctx, addr); serveErr != nil {
				log.ErrorContext(ctx, "Failed to serve HTTP",
					"error", serveErr,
					"addr", addr)
				stop()
			}
		}()
	}

	if token := strings.TrimSpace(cfg.Token); token != "" {
		botInst, botErr := bot.New(token, mgr, mentions, initResponder(ctx, cfg, log), cfg.AllowedUsers, log)
		if botErr != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", botErr,
				"allowedUsersCount", len(cfg.AllowedUsers))
			stop()
		} else {
			log.InfoContext(ctx, "Bot is initialized",
				"allowedUsersCount", len(cfg.AllowedUsers))

			wg.Add(1)
			go func() {
				defer wg.Done()
				botInst.Start(ctx)
			}()
		}
	} else {
		log.WarnContext(ctx, "TOKEN is missing so the bot is disabled",
			"envVar", "TOKEN")
	}

	<-ctx.Done()
	log.InfoContext(ctx, "Shutdown signal is received")

	mgr.StopAutoRefresh()
	wg.Wait()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func applySubscriptions(ctx context.Context, mgr *manager.Manager, path string, log *slog.Logger) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}

	subs, err := config.LoadSubscriptions(path)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load subscriptions",
			"error", err,
			"feedsFile", path)

		return
	}

	if err = mgr.ApplySubscriptions(ctx, subs); err != nil {
		log.WarnContext(ctx, "Subscriptions are applied partially",
			"error", err,
			"feedsFile", path)
	}
}

func initResponder(ctx context.Context, cfg config.Config, log *slog.Logger) assistant.Responder {
	apiKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if apiKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so replies carry the feed context only",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI responder is initialized",
		"provider", "openai",
		"model", cfg.OpenAIModel)

	return assistant.NewOpenAIResponder(apiKey, cfg.OpenAIModel)
}
