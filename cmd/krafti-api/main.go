package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"krafti/internal/bus"
	"krafti/internal/config"
	"krafti/internal/credential"
	"krafti/internal/db"
	"krafti/internal/httpapi"
	"krafti/internal/metrics"
	"krafti/internal/pipeline"
	"krafti/internal/processors/admin"
	"krafti/internal/processors/web"
	"krafti/internal/session"
	"krafti/internal/telemetry"
	"krafti/internal/users"
)

const serviceName = "krafti-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	cleanup, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init otel")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	if err := db.Migrate(ctx, cfg.DBDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Seed(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("seed database")
	}

	codec, err := credential.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTAlgorithms)
	if err != nil {
		log.Fatal().Err(err).Msg("init credential codec")
	}

	m := metrics.New()
	sessions := session.NewManager(database, codec, session.Options{
		TTL:       cfg.JWTExpire.Duration(),
		MaxActive: cfg.JWTMax,
		Metrics:   m,
		Logger:    &log.Logger,
	})

	pipelineCfg := pipeline.Config{DefaultLimit: cfg.PageLimit, MaxLimit: cfg.PageLimitMax, Metrics: m}
	adminRegistry := pipeline.NewRegistry(database, pipelineCfg)
	admin.Register(adminRegistry)
	webRegistry := pipeline.NewRegistry(database, pipelineCfg)
	web.Register(webRegistry)

	deps := httpapi.Deps{
		DB:       database,
		Sessions: sessions,
		Users:    users.NewDirectory(database),
		Admin:    adminRegistry,
		Web:      webRegistry,
		Metrics:  m,
		Logger:   &log.Logger,
	}
	if cfg.NATSURL != "" {
		events, err := bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer events.Close()
		deps.Bus = events
	}

	api, err := httpapi.New(deps, httpapi.Config{
		ServiceName:    serviceName,
		AuthCookie:     cfg.AuthCookie,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting " + serviceName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}
