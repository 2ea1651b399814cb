// Package main provides the entry point for the credential brokering and
// tool-invocation gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/coregate/gateway/internal/app"
	"github.com/coregate/gateway/internal/config"
	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
)

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(m *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := m.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Credential brokering and tool-invocation gateway",
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server and background schedulers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrations()
				},
			},
			{
				Name:  "create-envelope-key",
				Usage: "Register a new envelope key back-end",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Value: "local_file", Usage: "kms or local_file"},
					&cli.StringFlag{Name: "arn", Usage: "KMS key ARN (kind=kms)"},
					&cli.StringFlag{Name: "region", Usage: "KMS region (kind=kms)"},
					&cli.StringFlag{Name: "path", Usage: "local key file path (kind=local_file)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCreateEnvelopeKey(ctx, cmd.String("kind"), cmd.String("arn"), cmd.String("region"), cmd.String("path"))
				},
			},
			{
				Name:  "create-dek",
				Usage: "Generate and wrap a new data encryption key under an envelope key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "envelope-key-id", Required: true, Usage: "envelope key ID (ARN or path)"},
					&cli.StringFlag{Name: "alias", Usage: "alias to bind the new DEK to immediately"},
					&cli.StringFlag{
						Name:  "algorithm",
						Value: "aes-gcm",
						Usage: "content cipher algorithm (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCreateDek(ctx, cmd.String("envelope-key-id"), cmd.String("alias"), cmd.String("algorithm"))
				},
			},
			{
				Name:  "migrate-dek",
				Usage: "Re-wrap a DEK under a new envelope key and rebind its aliases",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dek-id", Required: true, Usage: "existing DEK ID (UUID)"},
					&cli.StringFlag{Name: "new-envelope-key-id", Required: true, Usage: "envelope key ID to migrate to"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrateDek(ctx, cmd.String("dek-id"), cmd.String("new-envelope-key-id"))
				},
			},
			{
				Name:  "rotate-due",
				Usage: "Run a single rotation scheduler pass over credentials due for rotation",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runRotateDue(ctx)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

// runServer starts the HTTP server with graceful shutdown support, alongside
// the out-of-band rotation scheduler, broker-state sweeper, and outbox
// event drainer.
func runServer(ctx context.Context) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", "1.0.0"))
	defer closeContainer(container, logger)

	// Providers register themselves against the process-wide registry
	// during container construction of the concrete gateway
	// binary; this build does not ship a provider, so the registry
	// starts empty and invocation requests fail ToolNotFound until one is
	// registered.
	_ = container.Registry()

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	rotationUseCase, err := container.RotationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize rotation use case: %w", err)
	}

	brokerSweeper, err := container.BrokerSweeper()
	if err != nil {
		return fmt.Errorf("failed to initialize broker sweeper: %w", err)
	}

	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	if _, err := container.AgentDefStore(); err != nil {
		return fmt.Errorf("failed to open agent definition manifest: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	go func() {
		if err := rotationUseCase.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("rotation scheduler stopped", slog.Any("error", err))
		}
	}()

	go brokerSweeper.Start(ctx)

	go func() {
		if err := outboxUseCase.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox use case stopped", slog.Any("error", err))
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	case err := <-serverErr:
		return err
	}

	return nil
}

// runMigrations executes database migrations based on the configured driver.
func runMigrations() error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	logger.Info("running database migrations", slog.String("driver", cfg.DBDriver))

	migrationsPath := "file://migrations/postgresql"
	if cfg.DBDriver == "mysql" {
		migrationsPath = "file://migrations/mysql"
	}

	m, err := migrate.New(migrationsPath, cfg.DBConnectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

// runCreateEnvelopeKey registers a new envelope key. A KMS
// key is identified by its ARN and region; a local-file key is identified
// by its filesystem path, created on first use by the local back-end.
func runCreateEnvelopeKey(ctx context.Context, kind, arn, region, path string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	cryptoUseCase, err := container.CryptoUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize crypto use case: %w", err)
	}

	key := &cryptoDomain.EnvelopeKey{}
	switch kind {
	case "kms":
		if arn == "" || region == "" {
			return fmt.Errorf("kind=kms requires --arn and --region")
		}
		key.ID = arn
		key.Kind = cryptoDomain.EnvelopeKeyKindKMS
		key.ARN = arn
		key.Region = region
	case "local_file":
		if path == "" {
			return fmt.Errorf("kind=local_file requires --path")
		}
		key.ID = path
		key.Kind = cryptoDomain.EnvelopeKeyKindLocalFile
		key.Path = path
	default:
		return fmt.Errorf("invalid kind: %s (valid options: kms, local_file)", kind)
	}

	if err := cryptoUseCase.CreateEnvelopeKey(ctx, key); err != nil {
		return fmt.Errorf("failed to create envelope key: %w", err)
	}

	logger.Info("envelope key created", slog.String("id", key.ID), slog.String("kind", string(key.Kind)))
	return nil
}

// runCreateDek generates a fresh 256-bit data encryption key, wraps it under
// envelopeKeyID, and optionally binds it to alias immediately so new
// credentials can be encrypted under it without a separate alias step.
func runCreateDek(ctx context.Context, envelopeKeyID, alias, algorithmStr string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	var algorithm cryptoDomain.Algorithm
	switch algorithmStr {
	case "aes-gcm":
		algorithm = cryptoDomain.AESGCM
	case "chacha20-poly1305":
		algorithm = cryptoDomain.ChaCha20
	default:
		return fmt.Errorf("invalid algorithm: %s (valid options: aes-gcm, chacha20-poly1305)", algorithmStr)
	}

	cryptoUseCase, err := container.CryptoUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize crypto use case: %w", err)
	}

	dek, err := cryptoUseCase.CreateDek(ctx, envelopeKeyID, algorithm)
	if err != nil {
		return fmt.Errorf("failed to create DEK: %w", err)
	}

	logger.Info("DEK created", slog.String("dek_id", dek.ID.String()), slog.String("envelope_key_id", dek.EnvelopeKeyID))

	if alias != "" {
		if err := cryptoUseCase.CreateAlias(ctx, alias, dek.ID); err != nil {
			return fmt.Errorf("failed to bind alias %q to DEK %s: %w", alias, dek.ID, err)
		}
		logger.Info("alias bound", slog.String("alias", alias), slog.String("dek_id", dek.ID.String()))
	}

	return nil
}

// runMigrateDek re-wraps dekID's plaintext under newEnvelopeKeyID, rebinding
// every alias that pointed at the old DEK.
func runMigrateDek(ctx context.Context, dekIDStr, newEnvelopeKeyID string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	dekID, err := uuid.Parse(dekIDStr)
	if err != nil {
		return fmt.Errorf("invalid --dek-id: %w", err)
	}

	cryptoUseCase, err := container.CryptoUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize crypto use case: %w", err)
	}

	newDek, err := cryptoUseCase.MigrateDek(ctx, dekID, newEnvelopeKeyID)
	if err != nil {
		return fmt.Errorf("failed to migrate DEK: %w", err)
	}

	logger.Info("DEK migrated",
		slog.String("old_dek_id", dekIDStr),
		slog.String("new_dek_id", newDek.ID.String()),
		slog.String("new_envelope_key_id", newEnvelopeKeyID),
	)
	return nil
}

// runRotateDue drives a single pass of the rotation scheduler's due-credential
// poll, for operators that prefer an external cron over the long-running
// server process's background ticker.
func runRotateDue(ctx context.Context) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	rotationUseCase, err := container.RotationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize rotation use case: %w", err)
	}

	if err := rotationUseCase.ProcessDue(ctx); err != nil {
		return fmt.Errorf("failed to process due rotations: %w", err)
	}

	logger.Info("rotation pass complete")
	return nil
}
