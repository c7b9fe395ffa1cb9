// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicflow/approvals/internal/cache"
	"github.com/civicflow/approvals/internal/config"
	"github.com/civicflow/approvals/internal/escalation"
	"github.com/civicflow/approvals/internal/logging"
	"github.com/civicflow/approvals/internal/notify"
	"github.com/civicflow/approvals/internal/persistence/postgres"
	"github.com/civicflow/approvals/internal/repository"
	httptransport "github.com/civicflow/approvals/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
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

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			log.Fatalf("schema migration failed: %v", err)
		}
	}
	if err := postgres.SchemaReady(ctx, pool); err != nil {
		log.Fatalf("schema not ready: %v", err)
	}

	invalidator, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer invalidator.Close()

	entityRepo := repository.NewEntityRepository(pool, logger)
	decisionRepo := repository.NewDecisionRepository(pool, logger)
	delegationRepo := repository.NewDelegationRepository(pool, logger)
	activityRepo := repository.NewActivityRepository(pool, logger)
	linkRepo := repository.NewLinkRepository(pool, logger)
	roleRepo := repository.NewUserRoleRepository(pool, logger)
	tokenRepo := repository.NewTokenRepository(pool, logger)

	hub := notify.NewHub(cfg.NotifyHubURL, cfg.NotifyHubSecret, logger)
	chains := escalation.NewBuilder(entityRepo, roleRepo)

	handler := httptransport.NewRouter(httptransport.Deps{
		Entities:    entityRepo,
		Decisions:   decisionRepo,
		Escalation:  chains,
		Delegations: delegationRepo,
		Links:       linkRepo,
		Activities:  activityRepo,
		TokenAdmin:  tokenRepo,
		RoleAdmin:   roleRepo,
		Resolver:    tokenRepo,
		Cache:       invalidator,
		Notifier:    hub,
		Health:      postgres.NewSchemaHealthChecker(pool),
		Logger:      logger,
		AdminToken:  cfg.AdminToken,
		Version:     Version,
		Commit:      Commit,
		BuildDate:   BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
