package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"smartfarm.io/farm/internal/config"
	"smartfarm.io/farm/internal/infrastructure"
	"smartfarm.io/farm/internal/jobs"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/pkg/metrics"
	"smartfarm.io/farm/internal/pkg/worker"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/repository/memory"
	"smartfarm.io/farm/internal/repository/postgres"
	"smartfarm.io/farm/internal/seed"
	"smartfarm.io/farm/internal/storage"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	// DB is nil with the memory driver.
	DB          *infrastructure.DatabaseClients
	Repo        repository.Repository
	Store       storage.Store
	Pools       *worker.Pools
	RiverClient *river.Client[pgx.Tx]
}

// NewInfrastructure opens the store selected by cfg.Database.Driver, the
// image store and the worker pools.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{Config: cfg}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		infra.Repo = memory.New()
		logger.Warn("Using the in-memory store; data is lost on restart")
	default:
		db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		infra.DB = db
		infra.Repo = postgres.New(db.Pool)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init image store: %w", err)
	}
	infra.Store = store

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		StoragePoolSize: cfg.Worker.StoragePoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools
	metrics.ObservePools(pools.Occupancy)

	if cfg.Seed.OnStart {
		if err := infra.Seed(ctx); err != nil {
			infra.Close()
			return nil, err
		}
	}
	return infra, nil
}

// Seed applies the configured seed document. It is idempotent.
func (i *Infrastructure) Seed(ctx context.Context) error {
	doc, err := seed.Load(i.Config.Seed.File)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	if _, err := seed.NewSeeder(i.Repo).Apply(ctx, doc); err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	return nil
}

// InitRiver initializes the River client on top of a prepared worker
// registry. It is a no-op with the memory driver.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if i.DB == nil {
		return nil
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// ImageCleanup picks the orphaned-image cleanup strategy: a River job when
// a queue is available, otherwise a detached task on the storage pool.
func (i *Infrastructure) ImageCleanup() jobs.ImageCleanup {
	if i.RiverClient != nil {
		return jobs.NewRiverImageCleanup(i.RiverClient)
	}
	logger.Info("No job queue; orphaned images are deleted in process",
		zap.String("backend", i.Store.Backend()),
	)
	return jobs.NewDetachedImageCleanup(i.Pools, i.Store)
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
