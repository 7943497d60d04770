package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	auditapp "github.com/medishield/opdclaims/internal/application/audit"
	claimsapp "github.com/medishield/opdclaims/internal/application/claims"
	membersapp "github.com/medishield/opdclaims/internal/application/members"
	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/infrastructure/database/postgres"
	"github.com/medishield/opdclaims/internal/infrastructure/database/redis"
	"github.com/medishield/opdclaims/internal/infrastructure/extraction"
	"github.com/medishield/opdclaims/internal/infrastructure/messaging/kafka"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/prometheus"
	"github.com/medishield/opdclaims/internal/infrastructure/storage/minio"
	httpserver "github.com/medishield/opdclaims/internal/interfaces/http"
	"github.com/medishield/opdclaims/internal/interfaces/http/handlers"
)

func newServeCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the claims API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the audit worker in-process")
	return cmd
}

func runServe(withWorker bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: outputPaths(cfg.Log.Output),
	})
	if err != nil {
		return err
	}
	logger.Info("Starting OPD claims service", logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Infrastructure.
	db, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	if cfg.Kafka.AutoCreateTopics {
		if tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger); err == nil {
			if err := tm.EnsureDefaultTopics(ctx); err != nil {
				logger.Warn("Failed to ensure topics", logging.Err(err))
			}
			tm.Close()
		} else {
			logger.Warn("Failed to connect topic manager", logging.Err(err))
		}
	}

	extractor, err := extraction.NewClient(cfg.Extraction, logger)
	if err != nil {
		return err
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "opdclaims",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	// The engine swaps atomically when the policy table hot-reloads.
	var engineRef atomic.Pointer[adjudication.Engine]
	engineRef.Store(adjudication.NewEngine(adjudication.PolicyFromConfig(cfg.Policy)))
	config.Watch(configPath, func(newCfg *config.Config) {
		engineRef.Store(adjudication.NewEngine(adjudication.PolicyFromConfig(newCfg.Policy)))
		logger.Info("Policy table reloaded")
	})

	// Repositories and services.
	memberRepo := postgres.NewMemberRepository(db, logger)
	claimRepo := postgres.NewClaimRepository(db, logger)
	docStore := minio.NewDocumentStore(store, logger)
	locks := redis.NewLockFactory(rdb, logger)

	memberSvc := membersapp.NewService(memberRepo, producer, logger)
	claimSvc := claimsapp.NewService(
		claimRepo, memberRepo, docStore, extractor,
		locks, rdb, producer, engineRef.Load, logger,
	).WithMetrics(metrics)

	// HTTP.
	router := httpserver.NewRouter(httpserver.RouterConfig{
		MemberHandler: handlers.NewMemberHandler(memberSvc, logger),
		ClaimHandler:  handlers.NewClaimHandler(claimSvc, logger),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.HealthChecker{
			"database": db.HealthCheck,
			"redis":    rdb.Ping,
			"storage":  store.HealthCheck,
		}, logger).WithMetrics(metrics),
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		Mode:             cfg.Server.Mode,
		MaxBodySize:      cfg.Server.MaxBodySize,
	})
	server := httpserver.NewServer(cfg.Server, router, logger)

	// Optional in-process audit worker, for single-node deployments.
	var consumer *kafka.Consumer
	if withWorker {
		consumer, err = kafka.NewConsumer(cfg.Kafka, []string{kafka.TopicAuditLog}, kafka.RetryConfig{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoffMS,
			DeadLetterTopic: kafka.TopicDeadLetterClaims,
		}, logger)
		if err != nil {
			return err
		}
		auditSvc := auditapp.NewService(postgres.NewAuditRepository(db, logger), logger)
		consumer.Subscribe(kafka.TopicAuditLog, auditSvc.HandleMessage)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer consumer.Close()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return server.Stop(context.Background())
}

func outputPaths(output string) []string {
	if output == "" {
		return nil
	}
	return []string{output}
}
