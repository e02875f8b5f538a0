package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/jobs"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/repository"
)

// PlotInput creates a plot or patches one. For creates Name, Latitude and
// Longitude are required; for updates nil leaves a field unchanged.
type PlotInput struct {
	Name      *string
	SizeRai   *float64
	SizeNgan  *float64
	SizeWa    *float64
	Latitude  *float64
	Longitude *float64
	Address   *string
}

// PlotView is a plot with its area in rai and its ACTIVE cycle, if any.
type PlotView struct {
	domain.Plot
	TotalRai    float64    `json:"totalRai"`
	ActiveCycle *CycleView `json:"activeCycle"`
}

// PlotDetail is the plot page: the active cycle's plan tasks and activities.
type PlotDetail struct {
	PlotView
	Tasks      []domain.PlanTask `json:"tasks"`
	Activities []domain.Activity `json:"activities"`
}

// PlotService manages a farmer's plots. The owner is fixed at creation.
type PlotService struct {
	repo    repository.Repository
	guard   *authz.Guard
	cleanup jobs.ImageCleanup
	now     func() time.Time
}

// NewPlotService creates a PlotService.
func NewPlotService(repo repository.Repository, cleanup jobs.ImageCleanup) *PlotService {
	return &PlotService{repo: repo, guard: authz.NewGuard(repo), cleanup: cleanup, now: utcNow}
}

func validatePlot(p *domain.Plot) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.ErrValidation("name", "name is required")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return apperrors.ErrValidation("latitude", "latitude must be between -90 and 90")
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return apperrors.ErrValidation("longitude", "longitude must be between -180 and 180")
	}
	if err := nonNegative("sizeRai", p.SizeRai); err != nil {
		return err
	}
	if err := nonNegative("sizeNgan", p.SizeNgan); err != nil {
		return err
	}
	return nonNegative("sizeWa", p.SizeWa)
}

func (in PlotInput) apply(p *domain.Plot) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.SizeRai != nil {
		p.SizeRai = in.SizeRai
	}
	if in.SizeNgan != nil {
		p.SizeNgan = in.SizeNgan
	}
	if in.SizeWa != nil {
		p.SizeWa = in.SizeWa
	}
	if in.Latitude != nil {
		p.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		p.Longitude = *in.Longitude
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
}

// CreatePlot creates a plot owned by the caller.
func (s *PlotService) CreatePlot(ctx context.Context, p authz.Principal, in PlotInput) (*domain.Plot, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if in.Latitude == nil {
		return nil, apperrors.ErrValidation("latitude", "latitude is required")
	}
	if in.Longitude == nil {
		return nil, apperrors.ErrValidation("longitude", "longitude is required")
	}
	now := s.now()
	plot := &domain.Plot{ID: newID(), UserID: p.UserID, CreatedAt: now, UpdatedAt: now}
	in.apply(plot)
	if err := validatePlot(plot); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePlot(ctx, plot); err != nil {
		return nil, storeErr("create plot", err)
	}
	return plot, nil
}

// UpdatePlot patches a plot the caller owns.
func (s *PlotService) UpdatePlot(ctx context.Context, p authz.Principal, plotID string, in PlotInput) (*domain.Plot, error) {
	var plot *domain.Plot
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if plot, err = s.guard.With(tx).Plot(ctx, p, plotID); err != nil {
			return err
		}
		in.apply(plot)
		if err := validatePlot(plot); err != nil {
			return err
		}
		plot.UpdatedAt = s.now()
		return storeErr("update plot", tx.UpdatePlot(ctx, plot))
	})
	if err != nil {
		return nil, err
	}
	return plot, nil
}

// DeletePlot removes a plot with its cycles and activities. The images of
// the removed activities that no other activity lists are scheduled for
// deletion.
func (s *PlotService) DeletePlot(ctx context.Context, p authz.Principal, plotID string) error {
	var images []string
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		if _, err := s.guard.With(tx).Plot(ctx, p, plotID); err != nil {
			return err
		}
		cycles, err := tx.ListCycles(ctx, repository.CycleFilter{PlotIDs: []string{plotID}})
		if err != nil {
			return storeErr("list cycles", err)
		}
		if len(cycles) > 0 {
			ids := make([]string, len(cycles))
			for i, c := range cycles {
				ids[i] = c.ID
			}
			activities, err := tx.ListActivities(ctx, repository.ActivityFilter{CycleIDs: ids})
			if err != nil {
				return storeErr("list activities", err)
			}
			for _, a := range activities {
				images = append(images, a.Images...)
			}
		}
		if err := tx.DeletePlot(ctx, plotID); err != nil {
			return storeErr("delete plot", err)
		}
		return scheduleOrphans(ctx, tx, s.cleanup, images)
	})
	if err != nil {
		return err
	}
	logger.Info("plot deleted",
		zap.String("plot_id", plotID),
		zap.String("user_id", p.UserID),
		zap.Int("images", len(images)),
	)
	return nil
}

// ListPlots returns the caller's plots, newest first.
func (s *PlotService) ListPlots(ctx context.Context, p authz.Principal) ([]PlotView, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	plots, err := s.repo.ListPlots(ctx, p.UserID)
	if err != nil {
		return nil, storeErr("list plots", err)
	}
	lookup := newCatalogLookup(s.repo)
	out := make([]PlotView, 0, len(plots))
	for i := range plots {
		view, err := plotView(ctx, s.repo, lookup, &plots[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

func plotView(ctx context.Context, repo repository.Repository, lookup *catalogLookup, plot *domain.Plot) (*PlotView, error) {
	active, err := activeCycleView(ctx, repo, lookup, plot.ID)
	if err != nil {
		return nil, storeErr("load active cycle", err)
	}
	return &PlotView{Plot: *plot, TotalRai: plot.TotalRai(), ActiveCycle: active}, nil
}

// GetPlot returns a plot with its active cycle's tasks and activities.
func (s *PlotService) GetPlot(ctx context.Context, p authz.Principal, plotID string) (*PlotDetail, error) {
	plot, err := s.guard.Plot(ctx, p, plotID)
	if err != nil {
		return nil, err
	}
	view, err := plotView(ctx, s.repo, newCatalogLookup(s.repo), plot)
	if err != nil {
		return nil, err
	}
	detail := &PlotDetail{PlotView: *view, Tasks: []domain.PlanTask{}, Activities: []domain.Activity{}}
	if view.ActiveCycle == nil {
		return detail, nil
	}
	if detail.Tasks, err = planTasks(ctx, s.repo, &view.ActiveCycle.PlantingCycle); err != nil {
		return nil, storeErr("list plan tasks", err)
	}
	if detail.Activities, err = cycleActivities(ctx, s.repo, view.ActiveCycle.ID); err != nil {
		return nil, storeErr("list activities", err)
	}
	return detail, nil
}
