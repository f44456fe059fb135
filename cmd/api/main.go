package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/egov/grievance-service/internal/api/http"
	"github.com/egov/grievance-service/internal/api/http/handlers"
	"github.com/egov/grievance-service/internal/auth"
	"github.com/egov/grievance-service/internal/config"
	"github.com/egov/grievance-service/internal/directory"
	"github.com/egov/grievance-service/internal/events"
	"github.com/egov/grievance-service/internal/observability"
	"github.com/egov/grievance-service/internal/persistence"
	"github.com/egov/grievance-service/internal/reference"
	"github.com/egov/grievance-service/internal/repository"
	"github.com/egov/grievance-service/internal/repository/memory"
	"github.com/egov/grievance-service/internal/service"
	"github.com/egov/grievance-service/internal/storage"
	"github.com/egov/grievance-service/internal/worker"
)

const (
	maxFilesPerRequest = 5
	shutdownTimeout    = 15 * time.Second
)

type repositories struct {
	grievances repository.GrievanceRepository
	history    repository.HistoryRepository
	documents  repository.DocumentRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	readiness := map[string]handlers.Pinger{}

	var repos repositories
	switch cfg.Storage.Mode {
	case config.StorageModePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		repos = repositories{
			grievances: repository.NewGrievanceRepository(pool),
			history:    repository.NewHistoryRepository(pool),
			documents:  repository.NewDocumentRepository(pool),
		}
		readiness["postgres"] = pg
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		repos = repositories{
			grievances: memory.NewGrievanceRepository(),
			history:    memory.NewHistoryRepository(),
			documents:  memory.NewDocumentRepository(),
		}
	}

	catalog, err := reference.LoadCatalog(cfg.Reference.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load reference catalog", zap.Error(err))
	}

	var identity directory.IdentityDirectory = directory.NewClient(cfg.Identity, nil, logger, metrics)
	if cfg.Redis.Addr != "" && cfg.Identity.CacheTTL() > 0 {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		identity = directory.NewCachedDirectory(identity, redis.Client, cfg.Identity.CacheTTL(), logger)
		readiness["redis"] = redis
	}

	var publisher events.Publisher
	switch cfg.Events.Bus {
	case config.EventBusKafka:
		publisher = events.NewKafkaPublisher(cfg.Kafka)
		logger.Info("publishing status events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	default:
		dispatcher := events.NewInMemoryDispatcher()
		worker.StartEventLogWorker(dispatcher, logger)
		publisher = dispatcher
	}

	grievanceService := service.NewGrievanceService(service.GrievanceDependencies{
		GrievanceRepo:     repos.grievances,
		HistoryRepo:       repos.history,
		Reference:         catalog,
		Identity:          identity,
		Publisher:         publisher,
		Logger:            logger,
		Metrics:           metrics,
		WriteTimeout:      cfg.Storage.WriteTimeout(),
		SideEffectTimeout: cfg.SideEffects.Timeout(),
		SweepConcurrency:  cfg.SLA.SweepConcurrency,
	})

	blobs, err := storage.NewLocalBlobStore(cfg.Storage.BlobRoot)
	if err != nil {
		logger.Fatal("failed to open blob store", zap.Error(err))
	}
	uploadPool := worker.NewPool(cfg.Upload.Workers, cfg.Upload.QueueSize, logger, metrics)

	documentService := service.NewDocumentService(service.DocumentDependencies{
		Grievances:   grievanceService,
		DocumentRepo: repos.documents,
		Blobs:        blobs,
		Executor:     uploadPool,
		MaxBytes:     cfg.Upload.MaxBytes,
		Logger:       logger,
	})

	sweepJob := worker.NewSLASweepJob(grievanceService, cfg.SLA.SweepSchedule, cfg.App.RequestTimeout(), logger, metrics)
	if err := sweepJob.Start(); err != nil {
		logger.Fatal("failed to schedule sla sweep", zap.Error(err))
	}

	var tokens *auth.TokenManager
	if cfg.Auth.Mode == config.AuthModeJWT {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, 0)
	}

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Upload.MaxBytes)*maxFilesPerRequest + 1<<20,
		Immutable: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Grievances:     handlers.NewGrievancesHandler(grievanceService, documentService),
		Documents:      handlers.NewDocumentsHandler(documentService),
		Reference:      handlers.NewReferenceHandler(catalog),
		AuthMiddleware: auth.NewMiddleware(cfg.Auth.Mode, tokens),
		Gatherer:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sweepJob.Stop(shutdownCtx)
	uploadPool.Close()
	grievanceService.Wait()
	if err := publisher.Close(); err != nil {
		logger.Warn("event publisher close", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
