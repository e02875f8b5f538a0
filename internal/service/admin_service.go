package service

import (
	"context"
	"errors"
	"fmt"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/pkg/worker"
	"smartfarm.io/farm/internal/repository"
)

// AdminStats are the dashboard counters.
type AdminStats struct {
	TotalUsers      int `json:"totalUsers"`
	TotalPlots      int `json:"totalPlots"`
	ActiveCycles    int `json:"activeCycles"`
	TotalActivities int `json:"totalActivities"`
}

// PlotOwner is the public part of a plot's owner.
type PlotOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// MapMarker is what the map surface needs to draw a plot.
type MapMarker struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// MapPlot is a plot on the admin map.
type MapPlot struct {
	PlotView
	Owner  PlotOwner `json:"owner"`
	Marker MapMarker `json:"marker"`
}

// AdminService serves the admin dashboard and map.
type AdminService struct {
	repo repository.Repository
	pool *worker.Pool
}

// NewAdminService creates an AdminService. The counters run on pool.
func NewAdminService(repo repository.Repository, pool *worker.Pool) *AdminService {
	return &AdminService{repo: repo, pool: pool}
}

// Stats counts farmers, plots, ACTIVE cycles and activities concurrently.
func (s *AdminService) Stats(ctx context.Context, p authz.Principal) (*AdminStats, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	var out AdminStats
	err := s.pool.Group(ctx,
		func(ctx context.Context) (err error) {
			out.TotalUsers, err = s.repo.CountUsersByRole(ctx, domain.RoleFarmer)
			return wrapCount("users", err)
		},
		func(ctx context.Context) (err error) {
			out.TotalPlots, err = s.repo.CountPlots(ctx)
			return wrapCount("plots", err)
		},
		func(ctx context.Context) (err error) {
			out.ActiveCycles, err = s.repo.CountCycles(ctx, repository.CycleFilter{
				Statuses: []domain.CycleStatus{domain.CycleActive},
			})
			return wrapCount("active cycles", err)
		},
		func(ctx context.Context) (err error) {
			out.TotalActivities, err = s.repo.CountActivities(ctx)
			return wrapCount("activities", err)
		},
	)
	if err != nil {
		return nil, storeErr("admin stats", err)
	}
	return &out, nil
}

func wrapCount(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("count %s: %w", what, err)
}

// PlotsForMap returns every plot with its owner and ACTIVE cycle.
func (s *AdminService) PlotsForMap(ctx context.Context, p authz.Principal) ([]MapPlot, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	plots, err := s.repo.ListPlots(ctx, "")
	if err != nil {
		return nil, storeErr("list plots", err)
	}

	lookup := newCatalogLookup(s.repo)
	owners := make(map[string]PlotOwner)
	out := make([]MapPlot, 0, len(plots))
	for i := range plots {
		plot := &plots[i]
		owner, ok := owners[plot.UserID]
		if !ok {
			u, err := s.repo.GetUser(ctx, plot.UserID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, storeErr("get owner", err)
			}
			owner = PlotOwner{ID: plot.UserID}
			if u != nil {
				owner.Name, owner.Email = u.Name, u.Email
			}
			owners[plot.UserID] = owner
		}
		view, err := plotView(ctx, s.repo, lookup, plot)
		if err != nil {
			return nil, err
		}
		out = append(out, MapPlot{
			PlotView: *view,
			Owner:    owner,
			Marker:   MapMarker{Latitude: plot.Latitude, Longitude: plot.Longitude, Label: mapLabel(plot, owner, view.ActiveCycle)},
		})
	}
	return out, nil
}

func mapLabel(plot *domain.Plot, owner PlotOwner, active *CycleView) string {
	label := plot.Name
	if owner.Name != "" {
		label += " (" + owner.Name + ")"
	}
	if name := active.CropName(); name != "" {
		label += ": " + name
	}
	return label
}
