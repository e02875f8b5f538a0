package modules

import (
	"context"

	"github.com/riverqueue/river"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/service"
)

// CatalogModule wires the crop catalog and standard plans.
type CatalogModule struct {
	catalog *service.CatalogService
}

func NewCatalogModule(infra *Infrastructure) *CatalogModule {
	return &CatalogModule{catalog: service.NewCatalogService(infra.Repo, infra.Config.Catalog.CacheTTL)}
}

func (m *CatalogModule) Name() string { return "catalog" }

func (m *CatalogModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Catalog = m.catalog
}

func (m *CatalogModule) RegisterWorkers(_ *river.Workers) {}

func (m *CatalogModule) Shutdown(context.Context) error { return nil }
