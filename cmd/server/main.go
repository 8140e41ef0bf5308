package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablesync/internal/config"
	handlers "tablesync/internal/controllers/http"
	"tablesync/internal/infra/dedupe"
	"tablesync/internal/infra/kafka"
	"tablesync/internal/infra/logging"
	mmysql "tablesync/internal/infra/mysql"
	"tablesync/internal/infra/pubsub"
	"tablesync/internal/infra/rabbitmq"
	mysqlrepo "tablesync/internal/repository/mysql"
	"tablesync/internal/services"

	"github.com/gin-gonic/gin"
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const cancelDedupeTTL = 24 * time.Hour

func main() {
	log := logging.New("tablesync", "info")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config: load")
	}
	log = logging.New("tablesync", cfg.LogLevel)

	db, err := mmysql.NewMySQL(cfg.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("db: connect")
	}

	orderRepo := mysqlrepo.NewOrderRepository(db)
	paymentRepo := mysqlrepo.NewPaymentRepository(db)
	sessionRepo := mysqlrepo.NewSessionRepository(db)

	var (
		channel pubsub.Channel
		guard   services.OnceGuard
	)
	if cfg.PubSubDriver == "memory" {
		hub := pubsub.NewMemory()
		defer hub.Close()
		channel = hub
		guard = dedupe.NewMemory(cancelDedupeTTL)
		log.Warn().Msg("using in-process pub/sub, carts are not shared across instances")
	} else {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer rdb.Close()
		channel = pubsub.NewRedis(rdb, log)

		dedupeClient := redisv8.NewClient(&redisv8.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 2 * time.Second,
			ReadTimeout: 500 * time.Millisecond,
		})
		defer dedupeClient.Close()
		guard = dedupe.NewRedis(dedupeClient, cancelDedupeTTL)
	}

	sinks := []services.Sink{services.NewChannelSink(channel)}
	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.NotifyExchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq: init publisher")
		}
		defer publisher.Close()
		sinks = append(sinks, services.NewAMQPSink(publisher))
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, notifications are only streamed over pub/sub")
	}
	notifier := services.NewNotifier(cfg.CancelReasonDelay, log, sinks...)

	syncQueue := services.NewRefundSyncQueue(orderRepo, paymentRepo, cfg.RefundSyncRetries, 500*time.Millisecond, log)
	paymentService := services.NewPaymentService(orderRepo, paymentRepo, syncQueue, log)
	sessionService := services.NewTableSessionService(sessionRepo, channel, log)
	detector := services.NewChangeDetector(orderRepo, guard, notifier, cfg.RestaurantID, log)

	feed := kafka.NewOrderFeed(cfg.KafkaBrokers, cfg.OrderChangesTopic, cfg.KafkaGroupID, log)
	defer feed.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.RequestLogger(log))
	r.Use(handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute).Middleware())

	handlers.NewHandler(paymentService, sessionService, channel, cfg.RestaurantID, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("starting tablesync")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return feed.Run(ctx, detector.Handle)
	})
	g.Go(func() error {
		return syncQueue.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
