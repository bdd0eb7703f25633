package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/camera-relay/internal/batcher"
	"github.com/jwalitptl/camera-relay/internal/config"
	systemHandler "github.com/jwalitptl/camera-relay/internal/handler/system"
	webhookHandler "github.com/jwalitptl/camera-relay/internal/handler/webhook"
	"github.com/jwalitptl/camera-relay/internal/normalizer"
	"github.com/jwalitptl/camera-relay/internal/quiethours"
	"github.com/jwalitptl/camera-relay/internal/ratelimit"
	"github.com/jwalitptl/camera-relay/internal/repository"
	"github.com/jwalitptl/camera-relay/internal/repository/memory"
	"github.com/jwalitptl/camera-relay/internal/repository/postgres"
	"github.com/jwalitptl/camera-relay/internal/router"
	"github.com/jwalitptl/camera-relay/internal/service/processor"
	"github.com/jwalitptl/camera-relay/internal/sms"
	"github.com/jwalitptl/camera-relay/pkg/clock"
	"github.com/jwalitptl/camera-relay/pkg/logger"
	"github.com/jwalitptl/camera-relay/pkg/messaging"
	redisBroker "github.com/jwalitptl/camera-relay/pkg/messaging/redis"
	"github.com/jwalitptl/camera-relay/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("camera_relay")
	clk := clock.New()

	// Delivery chain
	chain := buildChain(cfg, appLogger, appMetrics)

	// Pipeline components
	limiter := ratelimit.New(clk)
	b := batcher.New(
		cfg.Notifications.Batching,
		cfg.Notifications.RateLimiting,
		limiter,
		chain,
		clk,
		cfg.Cameras,
		cfg.Notifications.MessageFormat,
		appLogger,
		appMetrics,
	)
	b.Start()

	// Event history store
	store := buildStore(cfg, appLogger)

	// Optional event publisher
	var broker messaging.Broker
	if cfg.Redis.Enabled {
		zl := log.Logger
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl)
		if err != nil {
			// Event publishing is an extra; a dead broker degrades it,
			// not the relay.
			appLogger.Error(err, "failed to connect to Redis, event publishing disabled")
			broker = nil
		}
	}

	processorSvc := processor.NewService(
		normalizer.New(clk),
		quiethours.New(clk),
		b,
		cfg,
		store,
		broker,
		clk,
		appLogger,
		appMetrics,
	)

	webhookH := webhookHandler.NewHandler(processorSvc, appLogger)
	systemH := systemHandler.NewHandler(cfg, chain, b, limiter, store, clk, appLogger)

	r := router.NewRouter(cfg, webhookH, systemH)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("camera relay listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	b.Stop()
	if broker != nil {
		broker.Close()
	}
	if store != nil {
		store.Close()
	}

	log.Info().Msg("server exited properly")
}

func buildChain(cfg *config.Config, appLogger *logger.Logger, appMetrics *metrics.Metrics) *sms.Chain {
	var direct []sms.Channel
	for _, chCfg := range []config.ChannelConfig{cfg.SMS.Primary, cfg.SMS.Fallback} {
		switch chCfg.Type {
		case "twilio":
			direct = append(direct, sms.NewTwilio(chCfg, appLogger))
		case "gsm_modem":
			direct = append(direct, sms.NewModem(chCfg, sms.OpenSerialPort, appLogger))
		}
	}

	var email sms.EmailSender
	if cfg.SMS.CarrierEmail.Enabled {
		email = sms.NewCarrierEmail(cfg.SMS.CarrierEmail, appLogger)
	}

	return sms.NewChain(direct, email, appLogger, appMetrics)
}

func buildStore(cfg *config.Config, appLogger *logger.Logger) repository.EventStore {
	if cfg.Store.Driver == "postgres" {
		db, err := postgres.NewDB(cfg.Store.Postgres)
		if err != nil {
			appLogger.Error(err, "failed to connect to postgres, falling back to in-memory history")
			return memory.NewEventStore(cfg.Store.Retention)
		}
		return postgres.NewEventStore(db, cfg.Store.Retention)
	}
	return memory.NewEventStore(cfg.Store.Retention)
}
