package modules

import (
	"context"

	"github.com/riverqueue/river"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/service"
)

// AdminModule wires the platform statistics and the plot map.
type AdminModule struct {
	admin *service.AdminService
}

func NewAdminModule(infra *Infrastructure) *AdminModule {
	return &AdminModule{admin: service.NewAdminService(infra.Repo, infra.Pools.General)}
}

func (m *AdminModule) Name() string { return "admin" }

func (m *AdminModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Admin = m.admin
}

func (m *AdminModule) RegisterWorkers(_ *river.Workers) {}

func (m *AdminModule) Shutdown(context.Context) error { return nil }
