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
	"google.golang.org/grpc"

	"github.com/example/face-match/internal/config"
	"github.com/example/face-match/internal/grpcclient"
	"github.com/example/face-match/internal/handlers"
	"github.com/example/face-match/internal/logging"
	"github.com/example/face-match/internal/usecase"
	"github.com/example/face-match/internal/verifier"
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

	v, conn := initVerifier(ctx, cfg.Verifier, logger)
	if conn != nil {
		defer conn.Close()
	}

	options := []usecase.Option{usecase.WithMaxImagePixels(cfg.Server.MaxImagePixels)}
	if cfg.Cache.Enabled() {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		redisClient := initRedis(redisCtx, cfg.Cache.RedisAddr, logger)
		defer redisClient.Close()
		options = append(options, usecase.WithCache(usecase.NewRedisCache(redisClient), cfg.Cache.TTL))
	}

	uc := usecase.NewMatchUseCase(v, verifier.Options{
		Model:    cfg.Verifier.Model,
		Detector: cfg.Verifier.Detector,
	}, logger, options...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	handlers.RegisterRoutes(r, handlers.NewHandler(uc, logger, cfg.Server.MaxUploadBytes))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("face match API listening",
		zap.String("addr", server.Addr),
		zap.String("verifier_backend", cfg.Verifier.Backend),
		zap.String("model", cfg.Verifier.Model),
		zap.String("detector", cfg.Verifier.Detector),
		zap.Bool("verdict_cache", cfg.Cache.Enabled()),
	)
	if err := serveHTTPServer(server, cfg.Server.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initVerifier(ctx context.Context, cfg config.VerifierConfig, logger *zap.Logger) (verifier.Verifier, *grpc.ClientConn) {
	switch cfg.Backend {
	case config.BackendGRPC:
		v, conn, err := grpcclient.DialVerifier(ctx, cfg.GRPCAddr, logger)
		if err != nil {
			logger.Fatal("failed to connect to face verifier", zap.Error(err))
		}
		return v, conn
	default:
		return verifier.NewDeepFaceClient(cfg.URL, cfg.Timeout, logger), nil
	}
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
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
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
