package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"planogram/internal/config"
	cronrunner "planogram/internal/cron"
	"planogram/internal/db"
	"planogram/internal/experiment"
	"planogram/internal/handler"
	"planogram/internal/logger"
	"planogram/internal/perfcache"
	"planogram/internal/predictor"
	gormrepository "planogram/internal/repository/gorm"
	"planogram/internal/risk"

	_ "planogram/docs"
)

func main() {
	cfgPath := os.Getenv("PLG_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PLG_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	var cacheBackend perfcache.Backend
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Kind)) {
	case "redis":
		cacheBackend = perfcache.NewRedis(&redis.Options{
			Addr:         cfg.Cache.Redis.Addr,
			Password:     cfg.Cache.Redis.Password,
			DB:           cfg.Cache.Redis.DB,
			DialTimeout:  cfg.Cache.Redis.DialTimeout,
			ReadTimeout:  cfg.Cache.Redis.ReadTimeout,
			WriteTimeout: cfg.Cache.Redis.WriteTimeout,
		})
		logger.Info("prediction cache: redis", zap.String("addr", cfg.Cache.Redis.Addr))
	default:
		cacheBackend = perfcache.NewMemory()
		logger.Info("prediction cache: memory")
	}
	history := perfcache.NewReadThrough(store, cacheBackend, cfg.Cache.TTL, logger)

	predictorSvc := predictor.New(history, nil, cfg.Predictor, logger)
	riskAnalyzer := risk.New(cfg.Risk, logger)
	registry := experiment.NewRegistry(store, cfg.Experiment, nil, logger)
	collector := experiment.NewCollector(store, logger)
	analyzer := experiment.NewAnalyzer(store, logger)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	predictionHandler := &handler.PredictionHandler{
		Predictor: predictorSvc,
		Risk:      riskAnalyzer,
		History:   history,
		Logger:    logger,
	}
	predictionHandler.Register(engine)
	experimentHandler := &handler.ExperimentHandler{
		Registry:  registry,
		Collector: collector,
		Analyzer:  analyzer,
		Repo:      store,
		Logger:    logger,
	}
	experimentHandler.Register(engine)
	productHandler := &handler.ProductHandler{Repo: store, Cache: history, Logger: logger}
	productHandler.Register(engine)
	deviceHandler := &handler.DeviceHandler{Repo: store, Logger: logger}
	deviceHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.CompletionSweep, "experiment_completion_sweep", func(ctx context.Context) {
			n, err := registry.CompleteDue(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn("completion sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("experiments completed by sweep", zap.Int("count", n))
			}
		})
		if err != nil {
			logger.Warn("cron register completion sweep failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
