package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory-sync/internal/adapter/handler"
	"github.com/rl1809/inventory-sync/internal/adapter/messaging"
	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/platform/logging"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

const serviceName = "inventory-backend"

type closablePublisher interface {
	port.MovementPublisher
	Close() error
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{ServiceName: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		panic(err)
	}
	defer logging.Sync(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.Init(ctx, observability.Config{
		Enabled:       cfg.Tracing.Enabled,
		OTLPEndpoint:  cfg.Tracing.OTLPEndpoint,
		SamplingRatio: cfg.Tracing.SamplingRatio,
		ServiceName:   serviceName,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	store := storage.NewMySQLAdapter(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	var publisher closablePublisher = messaging.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = messaging.NewKafkaMovementPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing movement events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		logger.Info("no kafka brokers configured, movement events disabled")
	}

	// gRPC health server
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	httpHandler := handler.NewHTTPHandler(store, publisher, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if err := publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
	db.Close()
	logger.Info("connections closed")
}
