package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chirp/internal/config"
	"chirp/internal/db"
	"chirp/internal/email"
	apihttp "chirp/internal/http"
	"chirp/internal/notify"
	"chirp/internal/repository"
	"chirp/internal/service"
	"chirp/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	userRepo := repository.NewPgUserRepository(pool)
	sessionRepo := repository.NewPgSessionRepository(pool)
	postRepo := repository.NewPgPostRepository(pool)

	sink, err := storage.NewLocalSink(cfg.AttachmentDir, cfg.AttachmentBaseURL)
	if err != nil {
		logger.Fatal("attachment sink", zap.Error(err))
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	notifiers := notify.Multi{notify.NewEmailNotifier(emailSender)}
	if webhook := notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookToken, nil); webhook != nil {
		notifiers = append(notifiers, webhook)
	}

	var sessionCache service.SessionCache
	if redisClient := connectRedis(ctx, cfg, logger); redisClient != nil {
		defer redisClient.Close()
		sessionCache = service.NewRedisSessionCache(redisClient)
		notifiers = append(notifiers, notify.NewRedisNotifier(redisClient, cfg.NotifyChannel))
	}

	signer := service.NewTokenSigner(cfg.SessionSecret)
	userSvc := service.NewUserService(logger, userRepo)
	sessionSvc := service.NewSessionService(logger, userSvc, sessionRepo, sessionCache, signer, cfg.SessionTTL)
	resolver := service.NewSessionResolver(logger, signer, sessionRepo, userRepo, sessionCache)
	limiter := service.NewPostRateLimiter(cfg.PostRateLimit, cfg.PostRateWindow)
	postSvc := service.NewPostService(logger, postRepo, userRepo, limiter, sink, notifiers)

	authHandler := apihttp.NewAuthHandler(logger, userSvc, sessionSvc, apihttp.CookieConfig{
		Name:   cfg.SessionCookie,
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
	})
	postHandler := apihttp.NewPostHandler(logger, postSvc)
	router := apihttp.NewRouter(ctx, logger, apihttp.RouterOptions{
		CookieName:    cfg.SessionCookie,
		AttachmentURL: cfg.AttachmentBaseURL,
		AttachmentDir: sink.Dir(),
		RPS:           cfg.HTTPRPS,
		Burst:         cfg.HTTPBurst,
		Ping: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
	}, resolver, authHandler, postHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.Int("post_rate_limit", limiter.Limit()),
		zap.Duration("post_rate_window", limiter.Window()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// connectRedis devuelve nil si Redis no está configurado o no responde.
func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
