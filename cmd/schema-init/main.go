// Package main creates the remote tables the server reads and writes.
//
// With -remote=sql it creates one document table per collection on the
// configured database. With -remote=postgrest it applies the typed schema
// served by PostgREST, connecting to the underlying Postgres through
// -remote-dsn.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/domain"
	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/remote/postgrest"
	"github.com/sleepwell/sleepwell-server/internal/remote/sqldb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "schema-init: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cfg.Remote.Kind {
	case config.RemoteSQL:
		gw, err := sqldb.Open(sqldb.Options{
			Driver: cfg.Remote.Driver,
			DSN:    cfg.Remote.DSN,
			Logger: log.Logger,
		})
		if err != nil {
			return err
		}
		defer gw.Close()

		if err := gw.Migrate(ctx, domain.RemoteCollections...); err != nil {
			return err
		}

	case config.RemotePostgREST:
		if cfg.Remote.DSN == "" {
			return fmt.Errorf("-remote-dsn must point at the Postgres database behind PostgREST")
		}
		db, err := gorm.Open(postgres.Open(cfg.Remote.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		if err := db.WithContext(ctx).Exec(postgrest.Schema).Error; err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}

	default:
		return fmt.Errorf("unknown remote kind %q", cfg.Remote.Kind)
	}

	log.Info("Remote schema ready", "kind", cfg.Remote.Kind, "collections", len(domain.RemoteCollections))
	return nil
}
