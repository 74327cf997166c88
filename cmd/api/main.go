package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carezw/appointment-bot/internal/api/router"
	"github.com/carezw/appointment-bot/internal/appointments"
	appconfig "github.com/carezw/appointment-bot/internal/config"
	"github.com/carezw/appointment-bot/internal/dialog"
	"github.com/carezw/appointment-bot/internal/http/handlers"
	"github.com/carezw/appointment-bot/internal/observability/metrics"
	"github.com/carezw/appointment-bot/internal/staff"
	"github.com/carezw/appointment-bot/internal/webhook"
	"github.com/carezw/appointment-bot/internal/whatsapp"
	"github.com/carezw/appointment-bot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting appointment-bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Postgres. The pgx pool serves the bot's transactional writes, the
	// database/sql handle serves the report queries.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}
	reportDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open report connection", "error", err)
		os.Exit(1)
	}
	defer reportDB.Close()

	// Session store. Redis keeps conversations across restarts; the
	// in-memory store is for single-instance development.
	var sessions dialog.SessionStore
	if cfg.UseRedisSessions {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = dialog.NewRedisSessionStore(rdb)
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	} else {
		sessions = dialog.NewMemorySessionStore()
		logger.Info("using in-memory session store")
	}

	messenger, err := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsAppBaseURL,
		APIVersion:    cfg.WhatsAppAPIVersion,
		AccessToken:   cfg.WhatsAppAccessToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		Logger:        logger.Logger,
	})
	if err != nil {
		logger.Error("failed to create whatsapp client", "error", err)
		os.Exit(1)
	}

	var oracle dialog.Oracle
	if cfg.GeminiAPIKey != "" {
		gemini, err := dialog.NewGeminiOracle(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini oracle", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		oracle = gemini
		logger.Info("intent oracle enabled", "model", cfg.GeminiModelID)
	} else {
		logger.Warn("GEMINI_API_KEY not set, free-text questions get the fallback menu")
	}

	botMetrics := metrics.NewBotMetrics(nil)

	repo := appointments.NewRepository(pool)
	engine := dialog.NewEngine(sessions, repo, messenger, oracle, dialog.Config{
		GreetingPhrases:  cfg.GreetingPhrases,
		GreetingMinScore: cfg.GreetingMinScore,
		MenuImageURL:     cfg.MenuImageURL,
		OracleSentinel:   cfg.OracleSentinel,
		Location:         loc,
	}, botMetrics, logger)

	webhookHandler := webhook.NewHandler(engine, cfg.WhatsAppVerifyToken, botMetrics, logger)
	staffHandler := staff.NewHandler(staff.NewRepository(pool), cfg.StaffJWTSecret, cfg.StaffJWTTTL, logger)
	appointmentsHandler := handlers.NewAppointmentsHandler(
		repo, appointments.NewReports(reportDB), messenger, loc, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		WebhookHandler:      webhookHandler,
		StaffHandler:        staffHandler,
		AppointmentsHandler: appointmentsHandler,
		MetricsHandler:      promhttp.Handler(),
		JWTSecret:           cfg.StaffJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		WebhookRateLimit:    cfg.WebhookRateLimit,
		WebhookBurst:        cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
