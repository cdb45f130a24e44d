package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/inventory-audit/internal/lock"
	"github.com/sakashimaa/inventory-audit/internal/metrics"
	"github.com/sakashimaa/inventory-audit/internal/repository"
	"github.com/sakashimaa/inventory-audit/internal/repository/memory"
	"github.com/sakashimaa/inventory-audit/internal/service"
	"github.com/sakashimaa/inventory-audit/internal/transport/grpc"
	httpTransport "github.com/sakashimaa/inventory-audit/internal/transport/http"
	"github.com/sakashimaa/inventory-audit/internal/transport/http/handler"
	inventoryKafka "github.com/sakashimaa/inventory-audit/internal/transport/kafka"
	"github.com/sakashimaa/inventory-audit/pkg/config"
	"github.com/sakashimaa/inventory-audit/pkg/db"
	"github.com/sakashimaa/inventory-audit/pkg/kafka"
	outbox "github.com/sakashimaa/inventory-audit/pkg/outbox/repository"
	outboxUtils "github.com/sakashimaa/inventory-audit/pkg/outbox/utils"
	"github.com/sakashimaa/inventory-audit/pkg/outbox/worker"
	"github.com/sakashimaa/inventory-audit/pkg/utils"
	"go.uber.org/zap"
)

const serviceName = "inventory-audit"

type storage struct {
	products repository.ProductRepository
	history  repository.HistoryRepository
	outbox   service.OutboxWriter
	tx       db.Transactor
	pool     *pgxpool.Pool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.LoggerConfigFrom(serviceName))
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, utils.TracerConfig{
		ServiceName: serviceName,
		Env:         cfg.Env,
		Endpoint:    cfg.Tracing.Endpoint,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalf("Error init tracer: %v", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Error opening storage: %v", err)
	}

	var rdb *redis.Client
	var locker lock.Locker
	switch cfg.Lock.Driver {
	case config.LockRedis:
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Error connecting to redis: %v", err)
		}
		locker = lock.NewRedis(rdb, cfg.Lock.TTL, cfg.Lock.RetryInterval, logger)
	default:
		locker = lock.NewLocal()
	}

	reg := metrics.NewRegistry()
	appMetrics := metrics.New(reg)

	productService := service.NewProductService(service.Dependencies{
		Products:    store.products,
		History:     store.history,
		Outbox:      store.outbox,
		Tx:          store.tx,
		Locker:      locker,
		Metrics:     appMetrics,
		Logger:      logger,
		EventsTopic: cfg.Kafka.EventsTopic,
	})
	queryService := service.NewQueryService(store.products, logger)
	importService := service.NewImportService(service.ImportDependencies{
		Products:     productService,
		Catalog:      store.products,
		Outbox:       store.outbox,
		Tx:           store.tx,
		Locker:       locker,
		Metrics:      appMetrics,
		Logger:       logger,
		DefaultActor: cfg.Import.Actor,
		EventsTopic:  cfg.Kafka.EventsTopic,
	})

	var kafkaProducer kafka.Producer
	if cfg.Kafka.Enabled {
		rawProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			log.Fatalf("error creating kafka producer: %v", err)
		}
		kafkaProducer = kafka.WithBreaker(rawProducer, logger)

		outboxRepository := outbox.NewOutboxRepository(store.pool, logger)
		outboxProcessor := worker.NewOutboxProcessor(store.tx, outboxRepository, kafkaProducer, logger, worker.Options{
			BatchSize: cfg.Outbox.BatchSize,
			Interval:  cfg.Outbox.Interval,
		})
		go outboxProcessor.Start(ctx)

		pool := store.pool
		dedup := func(ctx context.Context, eventID int64, action func(ctx context.Context) error) (bool, error) {
			return outboxUtils.ProcessWithDeduplication(ctx, pool, logger, eventID, 200*time.Millisecond, action)
		}

		consumer := inventoryKafka.NewConsumer(productService, dedup, logger)
		go func() {
			topics := []string{cfg.Kafka.AdjustmentsTopic}
			if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, topics); err != nil {
				logger.Error("Kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Port,
		Handler:           metricsMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Println("Metrics server is listening on " + cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics serving failed: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("Error listening on %s: %v", cfg.GRPC.Port, err)
	}

	grpcServer := grpc.NewServer(reg)
	grpcServer.SetServing(true)

	go func() {
		log.Println("gRPC server listening on " + cfg.GRPC.Port)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Error serving gRPC: %v", err)
		}
	}()

	app := httpTransport.NewApp(&httpTransport.Handlers{
		Product: handler.NewProductHandler(productService, queryService, logger, cfg.HTTP.Timeout),
		Catalog: handler.NewCatalogHandler(importService, queryService, logger, cfg.Import.Timeout),
	}, httpTransport.Options{
		BodyLimit:         cfg.HTTP.BodyLimit,
		AllowOrigins:      cfg.HTTP.AllowOrigins,
		LimiterMax:        cfg.Limiter.Max,
		LimiterExpiration: cfg.Limiter.Expiration,
		Metrics:           appMetrics,
	})

	go func() {
		log.Println("HTTP Server listening on port: " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP: %v", err)
		}
	}()

	logger.Info(
		"inventory service started!",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("lock", cfg.Lock.Driver),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	grpcServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP: %v\n", err)
	} else {
		log.Println("HTTP Server stopped")
	}

	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics server: %v", err)
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("Kafka close error: %v", err)
		} else {
			log.Println("Kafka producer closed")
		}
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("Redis close error: %v", err)
		}
	}

	if store.pool != nil {
		store.pool.Close()
		log.Println("Postgres pool closed")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error closing telemetry: %v\n", err)
	} else {
		log.Println("Telemetry closed")
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		store := memory.NewStore()
		return &storage{
			products: store.Products(),
			history:  store.History(),
			outbox:   store.Outbox(),
			tx:       store,
		}, nil
	}

	if cfg.Postgres.AutoMigrate {
		if err := db.Migrate(cfg.Postgres.Migrations, cfg.Postgres.URL); err != nil {
			return nil, err
		}
		logger.Info("migrations applied", zap.String("source", cfg.Postgres.Migrations))
	}

	pool, err := db.NewPostgresDB(ctx, db.PoolConfig{
		URL:      cfg.Postgres.URL,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		return nil, err
	}

	return &storage{
		products: repository.NewProductRepository(pool, logger),
		history:  repository.NewHistoryRepository(pool, logger),
		outbox:   outbox.NewOutboxRepository(pool, logger),
		tx:       db.NewTransactor(pool, logger),
		pool:     pool,
	}, nil
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
