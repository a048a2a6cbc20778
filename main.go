package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/edu-admin/internal/auth"
	"github.com/example/edu-admin/internal/config"
	"github.com/example/edu-admin/internal/grpcclient"
	"github.com/example/edu-admin/internal/handlers"
	"github.com/example/edu-admin/internal/jobs"
	"github.com/example/edu-admin/internal/logging"
	"github.com/example/edu-admin/internal/middleware"
	"github.com/example/edu-admin/internal/repository"
	"github.com/example/edu-admin/internal/storage"
	"github.com/example/edu-admin/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.Postgres, cfg.Environment, logger)
	store := repository.NewStore(db, logger)
	if err := store.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	faceRepo := repository.NewFaceRepository(store)
	directoryRepo := repository.NewDirectoryRepository(store)
	accountRepo := repository.NewAccountRepository(store)

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.Redis, logger)
	defer redisClient.Close()

	objects, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to configure object storage", zap.Error(err))
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Fatal("failed to prepare face bucket", zap.Error(err), zap.String("bucket", cfg.Storage.Bucket))
	}

	encoder, conn, err := grpcclient.DialFaceEncoder(ctx, cfg.Face.EncoderAddr, cfg.Face.EncoderTimeout, logger)
	if err != nil {
		logger.Fatal("failed to connect to face encoder", zap.Error(err))
	}
	defer conn.Close()

	cache := usecase.NewRedisCache(redisClient)
	faces := usecase.NewFaceUseCase(faceRepo, cache, encoder, objects, usecase.FaceOptions{
		Tolerance:    cfg.Face.Tolerance,
		CacheTTL:     cfg.Face.CacheTTL,
		PresignTTL:   cfg.Storage.PresignTTL,
		MaxDimension: cfg.Face.MaxDimension,
	}, logger)
	directory := usecase.NewDirectoryUseCase(directoryRepo, cache, logger)
	issuer := auth.NewIssuer(cfg.Security.JWTSecret, cfg.Security.JWTAudience, cfg.Security.TokenTTL)
	accounts := usecase.NewAccountUseCase(accountRepo, issuer, logger)

	scheduler := jobs.NewScheduler(cfg.Jobs.OrphanSweepSpec, cfg.Jobs.OrphanMinAge, faceRepo, directoryRepo, objects, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		scheduler.Stop(stopCtx)
	}()

	r := newRouter(cfg, handlers.Services{
		Faces:          faces,
		Directory:      directory,
		Accounts:       accounts,
		Logger:         logger,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Readiness: map[string]handlers.Pinger{
			"postgres": store,
			"redis":    cache,
			"minio":    objects,
		},
	}, logger)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	logger.Info("edu-admin API listening", zap.String("addr", cfg.HTTP.Addr))
	if err := serveHTTPServer(server, cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(cfg *config.AppConfig, svc handlers.Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = handlers.MaxUploadSize
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	authMiddleware := auth.JWTMiddleware(cfg.Security.JWTSecret, cfg.Security.JWTAudience)
	handlers.RegisterRoutes(r, svc, authMiddleware)
	return r
}

func initDatabase(ctx context.Context, cfg config.PostgresConfig, environment string, zapLogger *zap.Logger) *gorm.DB {
	logLevel := gormlogger.Info
	if environment == "production" {
		logLevel = gormlogger.Warn
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, cfg config.RedisConfig, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if shutdownTimeout <= 0 {
			shutdownTimeout = 15 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
