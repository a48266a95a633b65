package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/skillhive-app/skillhive-backend/config"
	"github.com/skillhive-app/skillhive-backend/internal/bootstrap"
	"github.com/skillhive-app/skillhive-backend/internal/fetchcache"
	"github.com/skillhive-app/skillhive-backend/internal/listings"
	"github.com/skillhive-app/skillhive-backend/internal/notify"
	"github.com/skillhive-app/skillhive-backend/internal/projects"
	"github.com/skillhive-app/skillhive-backend/internal/storage/postgres"
	"github.com/skillhive-app/skillhive-backend/internal/wizard"
)

const drainBatch = 100

// The worker owns everything that must not run on the request path:
// draining the notification outbox, warming the browse caches and
// re-arming wizard sessions that lost their TTL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN(), MaxConns: 4})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	sqlDB, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("database (sql)", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	notifier := notify.NewNotifier(notify.NewOutbox(sqlDB), notify.NewInvoker(cfg.Funcs), logger)
	cache := fetchcache.New(rdb, logger)
	projectsRepo := projects.NewRepo(pool)
	listingsRepo := listings.NewRepo(pool)

	c := cron.New(cron.WithSeconds())

	_, err = c.AddFunc("0 */10 * * * *", func() {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		sent, err := notifier.Drain(jobCtx, drainBatch)
		if err != nil {
			logger.Error("outbox drain failed", zap.Error(err))
			return
		}
		if sent > 0 {
			logger.Info("outbox drained", zap.Int("sent", sent))
		}
	})
	if err != nil {
		logger.Fatal("cron: outbox drain", zap.Error(err))
	}

	_, err = c.AddFunc("0 0 * * * *", func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		fixed, err := wizard.PurgeOrphans(jobCtx, rdb, projects.SubmissionFlow(), listings.CreationFlow())
		if err != nil {
			logger.Error("wizard purge failed", zap.Error(err))
			return
		}
		if fixed > 0 {
			logger.Info("wizard sessions re-armed", zap.Int("fixed", fixed))
		}
	})
	if err != nil {
		logger.Fatal("cron: wizard purge", zap.Error(err))
	}

	_, err = c.AddFunc("0 0 0 * * *", func() {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		if err := projects.RefreshBrowseCache(jobCtx, cache, projectsRepo); err != nil {
			logger.Error("project cache refresh failed", zap.Error(err))
		}
		if err := listings.RefreshBrowseCache(jobCtx, cache, listingsRepo); err != nil {
			logger.Error("listing cache refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("cron: cache warm", zap.Error(err))
	}

	c.Start()
	logger.Info("worker started")

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("jobs still running at shutdown deadline")
	}
}
