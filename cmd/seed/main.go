// Package main loads reference data (users, crop catalog, standard plans)
// into the farm database. The server can do the same on start with
// seed.on_start; this command is for explicit seeding of a shared database.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"smartfarm.io/farm/internal/config"
	"smartfarm.io/farm/internal/infrastructure"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/repository/postgres"
	"smartfarm.io/farm/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Database.Driver == config.DriverMemory {
		return fmt.Errorf("the memory driver keeps no data between processes; use seed.on_start instead")
	}

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	logger.Info("Starting data seeding...", zap.String("file", cfg.Seed.File))
	res, err := seedRepository(ctx, postgres.New(db.Pool), cfg.Seed.File)
	if err != nil {
		return err
	}
	logger.Info("Data seeding completed successfully",
		zap.Int("users", res.Users),
		zap.Int("crop_types", res.CropTypes),
		zap.Int("varieties", res.Varieties),
		zap.Int("plans", res.Plans),
	)
	return nil
}

// seedRepository applies the document at path, or the embedded default
// when path is empty.
func seedRepository(ctx context.Context, repo repository.Repository, path string) (seed.Result, error) {
	doc, err := seed.Load(path)
	if err != nil {
		return seed.Result{}, fmt.Errorf("load seed: %w", err)
	}
	res, err := seed.NewSeeder(repo).Apply(ctx, doc)
	if err != nil {
		return seed.Result{}, fmt.Errorf("apply seed: %w", err)
	}
	return res, nil
}
