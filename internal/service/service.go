// Package service holds the farm use cases. Every exported method takes the
// caller's authz.Principal explicitly; nothing reads identity from context.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/repository"
)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// storeErr passes AppErrors through and hides everything else behind an
// Internal error that keeps the cause for logging.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	return apperrors.ErrInternal(fmt.Errorf("%s: %w", op, err))
}

func nonNegative(field string, v *float64) error {
	if v != nil && *v < 0 {
		return apperrors.ErrValidation(field, field+" must not be negative")
	}
	return nil
}

// CycleView is a cycle with the variety and crop type it grows.
type CycleView struct {
	domain.PlantingCycle
	CropVariety *domain.CropVariety `json:"cropVariety,omitempty"`
	CropType    *domain.CropType    `json:"cropType,omitempty"`
}

// CropName is the variety display name, or "" when unknown.
func (v *CycleView) CropName() string {
	if v == nil || v.CropVariety == nil {
		return ""
	}
	return v.CropVariety.DisplayName()
}

// catalogLookup memoizes variety and crop type reads within one call.
type catalogLookup struct {
	store     repository.CatalogStore
	varieties map[string]*domain.CropVariety
	types     map[string]*domain.CropType
}

func newCatalogLookup(store repository.CatalogStore) *catalogLookup {
	return &catalogLookup{
		store:     store,
		varieties: make(map[string]*domain.CropVariety),
		types:     make(map[string]*domain.CropType),
	}
}

func (l *catalogLookup) variety(ctx context.Context, id string) (*domain.CropVariety, error) {
	if v, ok := l.varieties[id]; ok {
		return v, nil
	}
	v, err := l.store.GetVariety(ctx, id)
	if err != nil {
		return nil, err
	}
	l.varieties[id] = v
	return v, nil
}

func (l *catalogLookup) cropType(ctx context.Context, id string) (*domain.CropType, error) {
	if ct, ok := l.types[id]; ok {
		return ct, nil
	}
	ct, err := l.store.GetCropType(ctx, id)
	if err != nil {
		return nil, err
	}
	l.types[id] = ct
	return ct, nil
}

func (l *catalogLookup) cycleView(ctx context.Context, c *domain.PlantingCycle) (*CycleView, error) {
	view := &CycleView{PlantingCycle: *c}
	v, err := l.variety(ctx, c.CropVarietyID)
	if err != nil {
		return nil, err
	}
	view.CropVariety = v
	ct, err := l.cropType(ctx, v.CropTypeID)
	if err != nil {
		return nil, err
	}
	view.CropType = ct
	return view, nil
}

// activeCycleView returns the plot's ACTIVE cycle, or nil when it has none.
func activeCycleView(ctx context.Context, repo repository.Repository, l *catalogLookup, plotID string) (*CycleView, error) {
	c, err := repo.ActiveCycle(ctx, plotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l.cycleView(ctx, c)
}

// planTasks returns the tasks of the cycle's plan, or an empty list.
func planTasks(ctx context.Context, repo repository.CatalogStore, c *domain.PlantingCycle) ([]domain.PlanTask, error) {
	if c == nil || c.StandardPlanID == nil {
		return []domain.PlanTask{}, nil
	}
	tasks, err := repo.ListPlanTasks(ctx, *c.StandardPlanID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.PlanTask{}
	}
	return tasks, nil
}

func cycleActivities(ctx context.Context, repo repository.ActivityStore, cycleID string) ([]domain.Activity, error) {
	activities, err := repo.ListActivities(ctx, repository.ActivityFilter{CycleIDs: []string{cycleID}})
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	return activities, nil
}
