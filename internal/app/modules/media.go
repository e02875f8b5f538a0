package modules

import (
	"context"

	"github.com/riverqueue/river"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/jobs"
	"smartfarm.io/farm/internal/service"
)

// MediaModule wires activity image uploads and the orphaned-image worker.
type MediaModule struct {
	infra   *Infrastructure
	uploads *service.UploadService
}

func NewMediaModule(infra *Infrastructure) *MediaModule {
	return &MediaModule{
		infra:   infra,
		uploads: service.NewUploadService(infra.Store, infra.Pools.Storage, infra.Config.Storage.MaxUploadBytes),
	}
}

func (m *MediaModule) Name() string { return "media" }

func (m *MediaModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Uploads = m.uploads
}

func (m *MediaModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil || m.infra == nil {
		return
	}
	river.AddWorker(workers, jobs.NewImageCleanupWorker(m.infra.Store))
}

func (m *MediaModule) Shutdown(context.Context) error { return nil }
