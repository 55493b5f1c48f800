package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"task-service/internal/archive"
	"task-service/internal/auth"
	"task-service/internal/config"
	apphttp "task-service/internal/http"
	"task-service/internal/repository/sqlite"
	"task-service/internal/service"
	"task-service/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := taskRepo.Init(ctx); err != nil {
		logger.Fatalf("init task repository: %v", err)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		SecretKey: cfg.Auth.SecretKey,
		Algorithm: cfg.Auth.Algorithm,
		TTL:       cfg.TokenTTL(),
	})
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}

	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup archive: %v", err)
	}

	tx := sqlite.NewTxManager(db)
	var hook service.CompletionHook
	if archiver != nil {
		hook = archiver
	}
	userService := service.NewUserService(userRepo, tx, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens)
	taskService := service.NewTaskService(taskRepo, tx, hook)

	authLimiter, closeLimiter := buildAuthLimiter(cfg, logger)
	defer closeLimiter()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		taskService,
		auth.NewSessionResolver(tokens, userRepo),
		db,
		apphttp.Options{
			CookieSecure:   cfg.Auth.CookieSecure,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AuthLimiter:    authLimiter,
			Logger:         logger,
		},
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if archiver != nil {
		archiver.Shutdown()
	}

	logger.Info("bye")
}

// buildArchiver returns nil when no bucket is configured.
func buildArchiver(ctx context.Context, cfg config.Config, logger *logrus.Logger) (archive.Manager, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage bucket not set, completed tasks will not be archived")
		return nil, nil
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	archiver := archive.NewManager(archive.Config{
		Bucket:        cfg.Storage.Bucket,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		MaxConcurrent: cfg.Archive.Workers,
		Logger:        logger,
	}, storageSvc)

	// the archiver outlives the signal context so Shutdown can drain it
	if err := archiver.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("start archiver: %w", err)
	}
	return archiver, nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}

// buildAuthLimiter shares limits through redis when an address is configured
// and falls back to per-process buckets otherwise.
func buildAuthLimiter(cfg config.Config, logger *logrus.Logger) (gin.HandlerFunc, func()) {
	if cfg.Redis.Addr == "" {
		logger.Infof("rate limiting auth endpoints in memory (%.1f rps, burst %d)", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		return apphttp.RateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Infof("rate limiting auth endpoints through redis %s (%d per %s)", cfg.Redis.Addr, cfg.RateLimit.Burst, cfg.RateLimit.Window)

	limiter := apphttp.NewDistributedRateLimiter(client, logger)
	middleware := limiter.Middleware("auth", apphttp.RateLimit{
		Rate:   cfg.RateLimit.Burst,
		Window: cfg.RateLimit.Window,
	})
	return middleware, func() {
		if err := client.Close(); err != nil {
			logger.Warnf("close redis: %v", err)
		}
	}
}
