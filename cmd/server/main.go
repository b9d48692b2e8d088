package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"avalia/internal/aggregate"
	"avalia/internal/feedback/handler"
	feedbackmetrics "avalia/internal/feedback/metrics"
	"avalia/internal/feedback/service"
	"avalia/internal/feedback/store"
	"avalia/internal/livefeed"
	"avalia/internal/platform/config"
	"avalia/internal/platform/httpserver"
	"avalia/internal/platform/kafka"
	"avalia/internal/platform/logger"
	"avalia/internal/platform/metrics"
	platformredis "avalia/internal/platform/redis"
	"avalia/internal/storage"
	httptransport "avalia/internal/transport/http"
)

// main wires dependencies and owns process lifecycle. Business logic lives in
// the internal services packages.
func main() {
	log := logger.New()
	cfg := config.FromEnv(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.New()
	fbMetrics := feedbackmetrics.New()

	var checks []httptransport.HealthCheck

	var durable storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: pg.Health})
		durable = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage (records are lost on restart)")
		durable = storage.NewInMemoryStore()
	}

	records := store.NewInMemoryRecordStore(fbMetrics)
	engine := aggregate.NewEngine()
	records.Subscribe(engine.Fold)

	var cache service.StatsCache
	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: rdb.Health})
		cache = store.NewRedisStatsCache(rdb, cfg.SnapshotTTL)
	}

	var publisher service.Publisher
	var consumer *kafka.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka producer unavailable", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer

		consumer, err = kafka.NewConsumer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, log)
		if err != nil {
			log.Error("kafka consumer unavailable", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
	}

	svc := service.New(durable, records, engine, publisher, cache, log, fbMetrics)
	if err := svc.Load(ctx); err != nil {
		log.Error("startup load failed", "error", err)
		os.Exit(1)
	}

	feed := livefeed.New(records, engine, durable, log, fbMetrics)

	router := httptransport.NewRouter(log, httpMetrics, checks, handler.New(svc, log))
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting avalia", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if consumer != nil {
		g.Go(func() error {
			err := consumer.Run(gctx, feed.HandleMessage, feed.OnGap)
			feed.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
