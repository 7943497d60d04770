// Command auditworker consumes audit.log events and persists them to the
// audit_log table.  It runs separately from the API server so that audit
// write throughput never competes with request handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medishield/opdclaims/internal/application/audit"
	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/infrastructure/database/postgres"
	"github.com/medishield/opdclaims/internal/infrastructure/messaging/kafka"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}
	logger.Info("Starting audit worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	consumer, err := kafka.NewConsumer(cfg.Kafka, []string{kafka.TopicAuditLog}, kafka.RetryConfig{
		MaxRetries:      cfg.Worker.MaxRetries,
		RetryBackoff:    cfg.Worker.RetryBackoffMS,
		DeadLetterTopic: kafka.TopicDeadLetterClaims,
	}, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	svc := audit.NewService(postgres.NewAuditRepository(db, logger), logger)
	consumer.Subscribe(kafka.TopicAuditLog, svc.HandleMessage)

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down audit worker")
	return nil
}
