package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumecoach/internal/api"
	"resumecoach/internal/config"
	"resumecoach/internal/logging"
	"resumecoach/internal/redis"
	"resumecoach/internal/service/ai"
	"resumecoach/internal/service/coach"
	"resumecoach/internal/service/history"
	"resumecoach/internal/storage"
	"resumecoach/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfgPath := os.Getenv("RESUMECOACH_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(os.Stderr, cfg.BasicConfig.LogLevel, os.Getenv("RESUMECOACH_LOG_PRETTY") == "1")

	// a missing API key is fatal before anything else starts
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	dbType := os.Getenv("RESUMECOACH_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Info().Str("db_type", dbType).Msg("opening database")
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var (
		cache       ai.Cache
		handlerOpts []api.Option
	)
	if cfg.Redis.Host != "" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create redis client")
		}
		defer rdb.Close()
		cache = ai.NewRedisCache(rdb, time.Duration(cfg.Analysis.CacheTTLMinutes)*time.Minute)
		handlerOpts = append(handlerOpts, api.WithCacheCheck(rdb))
		log.Info().Str("host", cfg.Redis.Host).Msg("analysis cache enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiService, err := ai.NewService(ctx, cfg, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("init analysis service")
	}
	reports := history.NewService(db)
	pipeline := coach.NewPipeline(aiService, coach.WithRecorder(reports))
	dispatcher := worker.NewDispatcher(cfg.BasicConfig.QueueSize, pipeline)
	defer dispatcher.Stop()

	handlers := api.NewHandler(dispatcher, reports, api.Limits{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		MaxFiles:       cfg.BasicConfig.MaxFiles,
	}, handlerOpts...)

	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware())
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.BasicConfig.ServerAddress,
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("provider", cfg.Analysis.Provider).
		Str("model", aiService.Model()).
		Msg("resumecoach listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
