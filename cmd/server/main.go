package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"learninghelper/internal/app"
	"learninghelper/internal/config"
	"learninghelper/internal/inference"
	"learninghelper/internal/mailer"
	"learninghelper/internal/ratelimit"
	"learninghelper/internal/server"
	"learninghelper/internal/util"
	"learninghelper/pkg/storage"
)

const (
	defaultAnalyzeTimeout    = 30 * time.Second
	defaultTranscribeTimeout = 300 * time.Second
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseTTL(cfg.SessionTTL, time.Hour)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	rememberTTL, err := config.ParseTTL(cfg.RememberTTL, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse remember TTL: %v", err)
	}
	resetTTL, err := config.ParseTTL(cfg.ResetTokenTTL, 15*time.Minute)
	if err != nil {
		log.Fatalf("failed to parse reset token TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCfg := app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		JWTSecret:     cfg.JWTSecret,
		SessionTTL:    sessionTTL,
		RememberTTL:   rememberTTL,
		ResetTokenTTL: resetTTL,
		ResetBaseURL:  cfg.ResetBaseURL,
	}
	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		appCfg.Objects = objects
	}
	if cfg.SMTPAddr != "" {
		mail, err := mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		if err != nil {
			log.Fatalf("failed to init mailer: %v", err)
		}
		appCfg.Mail = mail
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	serverCfg := server.Config{
		App:               appCore,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
	}
	if len(cfg.TrustedProxyCIDRs) > 0 {
		trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
		if err != nil {
			log.Fatalf("failed to parse trusted proxies: %v", err)
		}
		serverCfg.TrustedProxies = trusted
	}
	if cfg.InferenceURL != "" {
		analyzeTimeout, err := config.ParseTTL(cfg.InferenceAnalyzeTimeout, defaultAnalyzeTimeout)
		if err != nil {
			log.Fatalf("failed to parse analyze timeout: %v", err)
		}
		transcribeTimeout, err := config.ParseTTL(cfg.TranscribeTimeout, defaultTranscribeTimeout)
		if err != nil {
			log.Fatalf("failed to parse transcribe timeout: %v", err)
		}
		serverCfg.Inference = inference.NewClient(cfg.InferenceURL, transcribeTimeout, analyzeTimeout)
	}
	serverCfg.LoginLimiter = newLimiter(cfg, "learninghelper:ratelimit:login", cfg.LoginRateLimitPerMinute)
	serverCfg.SignupLimiter = newLimiter(cfg, "learninghelper:ratelimit:signup", cfg.SignupRateLimitPerMinute)
	serverCfg.ResetLimiter = newLimiter(cfg, "learninghelper:ratelimit:reset", cfg.ResetRateLimitPerMinute)

	httpServer := server.New(serverCfg)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // transcription proxying holds the response open
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

func newLimiter(cfg config.FileConfig, prefix string, perMinute int) *ratelimit.FixedWindowLimiter {
	if perMinute <= 0 {
		return nil
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, perMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}
	return limiter
}
