// Package app is the composition root. Bootstrap only orchestrates: each
// module owns its own wiring.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/api/openapi"
	"smartfarm.io/farm/internal/app/modules"
	"smartfarm.io/farm/internal/config"
	"smartfarm.io/farm/internal/infrastructure"
	"smartfarm.io/farm/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	doc, err := openapi.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	baseModules := []modules.Module{
		modules.NewIdentityModule(infra),
		modules.NewCatalogModule(infra),
		modules.NewAdminModule(infra),
		modules.NewMediaModule(infra),
	}

	workers := river.NewWorkers()
	for _, mod := range baseModules {
		mod.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	farmModule, err := modules.NewFarmModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init farm module: %w", err)
	}

	allModules := append(baseModules, farmModule)
	server := handlers.NewServer(modules.NewServerDeps(infra, allModules))

	return &Application{
		Config: cfg,
		Router: newRouter(routerDeps{
			cfg:    cfg,
			server: server,
			jwt:    modules.JWTConfig(cfg),
			doc:    doc,
			store:  infra.Store,
		}),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}
