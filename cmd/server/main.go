package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uncmorfi/reservation-service/config"
	delivery "github.com/uncmorfi/reservation-service/internal/delivery/http"
	"github.com/uncmorfi/reservation-service/internal/gateway"
	infraRedis "github.com/uncmorfi/reservation-service/internal/infra/redis"
	repo "github.com/uncmorfi/reservation-service/internal/repository/redis"
	"github.com/uncmorfi/reservation-service/internal/service"
	"github.com/uncmorfi/reservation-service/internal/status"
	pkgKafka "github.com/uncmorfi/reservation-service/pkg/kafka"
	pkgLog "github.com/uncmorfi/reservation-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := infraRedis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer infraRedis.Disconnect(redisCli)

	sessionRepo := repo.NewRedisSessionRepository(redisCli, cfg.Reservation.SessionTTL, l)

	hub := status.NewHub()
	pubs := status.Fanout{hub}

	if cfg.Kafka.Enabled {
		kafkaProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}

		kafkaPub := status.NewKafkaPublisher(kafkaProd, l)
		defer kafkaPub.Close()

		pubs = append(pubs, kafkaPub)
	}

	gw := gateway.NewHTTPGateway(cfg.Gateway, l)
	svc := service.NewReservationService(sessionRepo, gw, pubs, cfg.Reservation, l)
	handler := delivery.NewHandler(svc, hub, l)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		l.Info(gctx, "Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Fatalf(ctx, "Server error: %v", err)
	}

	l.Info(ctx, "Server exited")
}
