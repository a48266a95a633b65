package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/skillhive-app/skillhive-backend/config"
	"github.com/skillhive-app/skillhive-backend/internal/auth"
	"github.com/skillhive-app/skillhive-backend/internal/bootstrap"
	"github.com/skillhive-app/skillhive-backend/internal/notify"
	"github.com/skillhive-app/skillhive-backend/internal/storage/postgres"
	s3store "github.com/skillhive-app/skillhive-backend/internal/storage/s3"
	"github.com/skillhive-app/skillhive-backend/internal/tutor"
)

const serviceName = "skillhive-api"

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

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{
		DSN:      cfg.Database.DSN(),
		MaxConns: 10,
	})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	sqlDB, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("database (sql)", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := bootstrap.RunMigrations(ctx, sqlDB); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var authClient *fbauth.Client
	if cfg.Firebase.Disabled {
		logger.Warn("auth disabled, trusting X-User-Id headers")
	} else {
		authClient, err = auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			logger.Fatal("firebase", zap.Error(err))
		}
	}

	var uploader *s3store.Uploader
	if cfg.Storage.Bucket != "" {
		uploader, err = s3store.NewUploader(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
	} else {
		logger.Warn("S3_BUCKET not set, image uploads disabled")
	}

	notifier := notify.NewNotifier(notify.NewOutbox(sqlDB), notify.NewInvoker(cfg.Funcs), logger)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		CORSOrigin:  cfg.Server.CORSOrigin,
		DB:          pool,
		Redis:       rdb,
		AuthClient:  authClient,
		Uploader:    uploader,
		Notifier:    notifier,
		TutorClient: tutor.NewClient(cfg.Upstream),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
		// No WriteTimeout: tutor chat streams stay open far longer than
		// any sane request deadline.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		os.Exit(1)
	}
}
