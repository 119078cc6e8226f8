package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"smartqueue/internal/admin"
	admin_db "smartqueue/internal/admin/db"
	"smartqueue/internal/admin/admin_api"
	"smartqueue/internal/auth"
	"smartqueue/internal/config"
	"smartqueue/internal/customer"
	"smartqueue/internal/customer/customer_api"
	customer_db "smartqueue/internal/customer/db"
	"smartqueue/internal/database"
	"smartqueue/internal/database/migrations"
	"smartqueue/internal/kafka"
	"smartqueue/internal/logger"
	"smartqueue/internal/qr"
	"smartqueue/internal/queue"
	queue_db "smartqueue/internal/queue/db"
	"smartqueue/internal/queue/queue_api"
	queue_redis "smartqueue/internal/queue/redis"
	"smartqueue/internal/server"
	"smartqueue/internal/sse"
)

const (
	dispatchBuffer  = 1024
	topicPartitions = 3
)

// App holds every long-lived component of the service.
type App struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *bun.DB
	Redis      *redis.Client
	Engine     *queue.Engine
	Dispatcher *queue.Dispatcher
	Hub        *sse.QueueEventHub
	Producer   *kafka.Producer
	Consumer   *kafka.Consumer
	Router     http.Handler

	workers sync.WaitGroup
}

// New connects the backing services and wires the HTTP surface.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, Hub: sse.NewQueueEventHub()}

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.DB = bunDB
	if err := migrations.CreateSchema(ctx, bunDB); err != nil {
		a.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.LogDatabase("MIGRATE", "*", "Schema is up to date")

	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	}

	var publisher queue.Publisher = a.Hub
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.QueueEventsTopic
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{topic}, topicPartitions, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, topic, log)
		// Every instance reads the whole topic so its own displays see all transitions.
		groupID := cfg.Kafka.GroupID + "-" + uuid.NewString()
		a.Consumer = kafka.NewConsumer(cfg.Kafka.Brokers, topic, groupID, log)
		publisher = a.Producer
		log.Info("KAFKA", fmt.Sprintf("Queue events published to %s", topic))
	}
	a.Dispatcher = queue.NewDispatcher(publisher, dispatchBuffer, log)

	opts := queue.Options{
		Dispatcher:            a.Dispatcher,
		Logger:                log,
		TicketCodeLength:      cfg.Queue.TicketCodeLength,
		DefaultServiceMinutes: cfg.Queue.DefaultServiceMinutes,
	}
	if cfg.Queue.LockBackend == "redis" {
		opts.Locker = queue_redis.NewLocker(a.Redis, cfg.Queue.LockTTL, cfg.Queue.LockWait)
	} else {
		opts.Locker = queue.NewLocalLocker(cfg.Queue.LockWait)
	}
	if cfg.Queue.RegistryBackend == "redis" {
		opts.Registry = queue_redis.NewRegistry(a.Redis)
	} else {
		opts.Registry = queue.NewMemoryRegistry()
	}
	a.Engine = queue.NewEngine(&queue_db.DB{Bun: bunDB}, opts)

	var revocations auth.RevocationStore
	if a.Redis != nil {
		revocations = auth.NewRedisRevocations(a.Redis)
	} else {
		revocations = auth.NewMemoryRevocations()
	}
	tokens := auth.NewTokenManager(cfg.Auth)
	adminService, err := admin.NewService(&admin_db.DB{Bun: bunDB}, tokens, revocations, cfg.Auth, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	customerService := customer.NewService(&customer_db.DB{Bun: bunDB}, tokens, revocations, log)

	a.Router = server.NewRouter(server.Deps{
		Config:   cfg,
		Logger:   log,
		Auth:     auth.NewMiddleware(tokens, revocations, log),
		Queue:    queue_api.NewHandler(a.Engine, a.Hub, qr.NewGenerator(cfg.Queue.PublicBaseURL), log),
		Admin:    admin_api.NewHandler(adminService, log),
		Customer: customer_api.NewHandler(customerService, log),
	})
	return a, nil
}

// Start restores the serving registry and runs the background workers until ctx ends.
func (a *App) Start(ctx context.Context) error {
	if err := a.Engine.RestoreServing(ctx); err != nil {
		return err
	}
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		a.Dispatcher.Run(ctx)
	}()
	if a.Consumer != nil {
		a.workers.Add(1)
		go func() {
			defer a.workers.Done()
			if err := a.Consumer.Run(ctx, a.Hub.Publish); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("KAFKA", fmt.Sprintf("Queue event consumer stopped: %v", err))
			}
		}()
	}
	return nil
}

// Wait blocks until the workers started by Start have returned.
func (a *App) Wait() {
	a.workers.Wait()
}

func (a *App) Close() {
	if a.Consumer != nil {
		if err := a.Consumer.Close(); err != nil {
			a.Logger.Warn("KAFKA", fmt.Sprintf("Failed to close consumer: %v", err))
		}
	}
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Logger.Warn("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
