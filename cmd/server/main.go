package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/identity"
	"courier/internal/mailbox"
	"courier/internal/metrics"
	"courier/internal/presence"
	"courier/internal/ratelimit"
	redisdb "courier/internal/redis"
	"courier/internal/relay"
	"courier/internal/websocket"
)

func main() {
	configPath := pflag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML configuration file")
	port := pflag.String("port", "", "HTTP listen port (overrides config)")
	pflag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger := newLogger(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	policy, err := relay.ParsePolicy(cfg.UnknownRecipientPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.RateLimitPerMinute)
	var backend api.Pinger
	if cfg.RedisURL != "" {
		redis, err := redisdb.Dial(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redis.Close()
		limiter = redisdb.NewLimiter(redis, cfg.RateLimitPerMinute)
		backend = redis
		logger.Info().Msg("using redis rate limiter")
	}

	registry := identity.NewRegistry()
	tracker := presence.NewTracker(registry)
	store := mailbox.NewStore(cfg.MailboxLimit)
	router := relay.NewRouter(registry, tracker, store, relay.Options{
		Policy:  policy,
		Metrics: m,
		Logger:  logger,
	})
	lifecycle := relay.NewLifecycle(router)

	hub := websocket.NewHub(lifecycle, websocket.Options{
		Limiter:        limiter,
		Metrics:        m,
		Logger:         logger,
		MaxMessageSize: int64(cfg.MessageMaxSize),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	engine := gin.New()
	api.SetupRoutes(engine, api.Deps{
		Registry:    registry,
		Router:      router,
		Hub:         hub,
		Backend:     backend,
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Environment).
			Str("unknown_recipient_policy", string(policy)).
			Int("mailbox_limit", cfg.MailboxLimit).
			Msg("courier listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-hub.Done()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.IsProduction() {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
