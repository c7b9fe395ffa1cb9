// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicflow/approvals/internal/cache"
	"github.com/civicflow/approvals/internal/config"
	"github.com/civicflow/approvals/internal/escalation"
	"github.com/civicflow/approvals/internal/logging"
	"github.com/civicflow/approvals/internal/notify"
	"github.com/civicflow/approvals/internal/persistence/postgres"
	"github.com/civicflow/approvals/internal/repository"
	"github.com/civicflow/approvals/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := postgres.SchemaReady(ctx, pool); err != nil {
		log.Fatalf("schema not ready: %v", err)
	}

	invalidator, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer invalidator.Close()

	entityRepo := repository.NewEntityRepository(pool, logger)
	roleRepo := repository.NewUserRoleRepository(pool, logger)

	sweeper := worker.New(worker.Deps{
		Claimer:  entityRepo,
		Chains:   escalation.NewBuilder(entityRepo, roleRepo),
		Notifier: notify.NewHub(cfg.NotifyHubURL, cfg.NotifyHubSecret, logger),
		Cache:    invalidator,
		Logger:   logger,
		Interval: cfg.SweepInterval,
	})

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("sweeper stopped: %v", err)
	}
}
