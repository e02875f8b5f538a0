package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/service"
)

// FarmModule wires plots, planting cycles, the activity ledger and the
// aggregates over them.
type FarmModule struct {
	plots      *service.PlotService
	cycles     *service.CycleService
	activities *service.ActivityService
	aggregates *service.AggregationService
}

// NewFarmModule creates the farm module after the River client is
// initialized, since deletes schedule image cleanup through it.
func NewFarmModule(infra *Infrastructure) (*FarmModule, error) {
	if infra == nil || infra.Repo == nil || infra.Store == nil {
		return nil, fmt.Errorf("farm module requires a repository and an image store")
	}
	cleanup := infra.ImageCleanup()
	return &FarmModule{
		plots:      service.NewPlotService(infra.Repo, cleanup),
		cycles:     service.NewCycleService(infra.Repo),
		activities: service.NewActivityService(infra.Repo, cleanup),
		aggregates: service.NewAggregationService(infra.Repo),
	}, nil
}

func (m *FarmModule) Name() string { return "farm" }

func (m *FarmModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Plots = m.plots
	deps.Cycles = m.cycles
	deps.Activities = m.activities
	deps.Aggregates = m.aggregates
}

func (m *FarmModule) RegisterWorkers(_ *river.Workers) {}

func (m *FarmModule) Shutdown(context.Context) error { return nil }
