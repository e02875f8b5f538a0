package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/pkg/metrics"
	"smartfarm.io/farm/internal/repository"
)

// StartCycleInput starts a planting cycle on a plot.
type StartCycleInput struct {
	CropVarietyID  string
	StartDate      *time.Time
	StandardPlanID *string
}

// CycleDetail is a cycle with everything the cycle page shows.
type CycleDetail struct {
	CycleView
	Plot         *domain.Plot         `json:"plot"`
	StandardPlan *domain.StandardPlan `json:"standardPlan,omitempty"`
	Tasks        []domain.PlanTask    `json:"tasks"`
	Activities   []domain.Activity    `json:"activities"`
}

// CycleWithStats is one row of a plot's history.
type CycleWithStats struct {
	CycleView
	Stats domain.CycleStats `json:"stats"`
}

// CycleService owns the planting cycle state machine.
//
// A plot has at most one ACTIVE cycle. The check in StartCycle gives the
// friendly error; the store's partial unique index catches the race.
type CycleService struct {
	repo  repository.Repository
	guard *authz.Guard
	now   func() time.Time
}

// NewCycleService creates a CycleService.
func NewCycleService(repo repository.Repository) *CycleService {
	return &CycleService{repo: repo, guard: authz.NewGuard(repo), now: utcNow}
}

func errCycleAlreadyActive() error {
	return apperrors.Conflict(apperrors.CodeCycleAlreadyActive, "Plot already has an active planting cycle")
}

// StartCycle moves a plot from NONE to ACTIVE. An existing ACTIVE cycle is
// reported before any problem with the input. Without an explicit plan the
// variety's first linked plan is bound, if any.
func (s *CycleService) StartCycle(ctx context.Context, p authz.Principal, plotID string, in StartCycleInput) (*domain.PlantingCycle, error) {
	var created domain.PlantingCycle
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		if _, err := s.guard.With(tx).Plot(ctx, p, plotID); err != nil {
			return err
		}

		if _, err := tx.ActiveCycle(ctx, plotID); err == nil {
			return errCycleAlreadyActive()
		} else if !errors.Is(err, repository.ErrNotFound) {
			return storeErr("get active cycle", err)
		}

		if in.CropVarietyID == "" {
			return apperrors.NotFound(apperrors.CodeVarietyNotFound, "Crop variety not found")
		}
		if _, err := tx.GetVariety(ctx, in.CropVarietyID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeVarietyNotFound, "Crop variety not found")
			}
			return storeErr("get variety", err)
		}

		planID, err := s.resolvePlan(ctx, tx, in)
		if err != nil {
			return err
		}

		now := s.now()
		start := now
		if in.StartDate != nil {
			start = in.StartDate.UTC()
		}
		created = domain.PlantingCycle{
			ID:             newID(),
			PlotID:         plotID,
			CropVarietyID:  in.CropVarietyID,
			StandardPlanID: planID,
			StartDate:      start,
			Status:         domain.CycleActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateCycle(ctx, &created); err != nil {
			if errors.Is(err, repository.ErrActiveCycleExists) {
				return errCycleAlreadyActive()
			}
			return storeErr("create cycle", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CycleTransitions.WithLabelValues(string(domain.CycleActive)).Inc()
	logger.Info("planting cycle started",
		zap.String("cycle_id", created.ID),
		zap.String("plot_id", plotID),
		zap.String("user_id", p.UserID),
	)
	return &created, nil
}

func (s *CycleService) resolvePlan(ctx context.Context, tx repository.Repository, in StartCycleInput) (*string, error) {
	if in.StandardPlanID != nil && *in.StandardPlanID != "" {
		if _, err := tx.GetPlan(ctx, *in.StandardPlanID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound(apperrors.CodePlanNotFound, "Standard plan not found")
			}
			return nil, storeErr("get plan", err)
		}
		id := *in.StandardPlanID
		return &id, nil
	}
	plan, err := tx.FirstPlanForVariety(ctx, in.CropVarietyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find plan for variety", err)
	}
	return &plan.ID, nil
}

// CompleteCycle moves an ACTIVE cycle to COMPLETED. endDate defaults to now
// and is not checked against the start date.
func (s *CycleService) CompleteCycle(ctx context.Context, p authz.Principal, cycleID string, endDate *time.Time) (*domain.PlantingCycle, error) {
	var updated *domain.PlantingCycle
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		cycle, _, err := s.guard.With(tx).Cycle(ctx, p, cycleID)
		if err != nil {
			return err
		}
		if !cycle.IsActive() {
			return apperrors.ErrCycleNotActive()
		}
		now := s.now()
		end := now
		if endDate != nil {
			end = endDate.UTC()
		}
		updated, err = s.transition(ctx, tx, cycleID, domain.CycleCompleted, end, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.CycleTransitions.WithLabelValues(string(domain.CycleCompleted)).Inc()
	return updated, nil
}

// AbandonCycle moves an ACTIVE cycle to ABANDONED with endDate = now. A
// reason is recorded first as an OTHER activity on the still-ACTIVE cycle,
// in the same transaction as the status change.
func (s *CycleService) AbandonCycle(ctx context.Context, p authz.Principal, cycleID, reason string) (*domain.PlantingCycle, error) {
	var updated *domain.PlantingCycle
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		cycle, _, err := s.guard.With(tx).Cycle(ctx, p, cycleID)
		if err != nil {
			return err
		}
		if !cycle.IsActive() {
			return apperrors.ErrCycleNotActive()
		}

		now := s.now()
		if reason != "" {
			note := domain.Activity{
				ID:           newID(),
				CycleID:      cycleID,
				Type:         domain.ActivityOther,
				Description:  domain.AbandonNote(reason),
				ActivityDate: now,
				Images:       []string{},
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.CreateActivity(ctx, &note); err != nil {
				return storeErr("record abandon reason", err)
			}
		}
		updated, err = s.transition(ctx, tx, cycleID, domain.CycleAbandoned, now, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.CycleTransitions.WithLabelValues(string(domain.CycleAbandoned)).Inc()
	if reason != "" {
		metrics.ActivitiesRecorded.WithLabelValues(string(domain.ActivityOther)).Inc()
	}
	return updated, nil
}

func (s *CycleService) transition(ctx context.Context, tx repository.Repository, id string, to domain.CycleStatus, end, now time.Time) (*domain.PlantingCycle, error) {
	c, err := tx.TransitionCycle(ctx, id, to, end, now)
	if errors.Is(err, repository.ErrNotActive) {
		return nil, apperrors.ErrCycleNotActive()
	}
	if err != nil {
		return nil, storeErr("transition cycle", err)
	}
	return c, nil
}

// GetCycle returns the cycle with its plot, crop, plan tasks and activities.
func (s *CycleService) GetCycle(ctx context.Context, p authz.Principal, cycleID string) (*CycleDetail, error) {
	cycle, plot, err := s.guard.Cycle(ctx, p, cycleID)
	if err != nil {
		return nil, err
	}
	view, err := newCatalogLookup(s.repo).cycleView(ctx, cycle)
	if err != nil {
		return nil, storeErr("load cycle crop", err)
	}
	detail := &CycleDetail{CycleView: *view, Plot: plot}

	if cycle.StandardPlanID != nil {
		plan, err := s.repo.GetPlan(ctx, *cycle.StandardPlanID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr("get plan", err)
		}
		detail.StandardPlan = plan
	}
	if detail.Tasks, err = planTasks(ctx, s.repo, cycle); err != nil {
		return nil, storeErr("list plan tasks", err)
	}
	if detail.Activities, err = cycleActivities(ctx, s.repo, cycleID); err != nil {
		return nil, storeErr("list activities", err)
	}
	return detail, nil
}

// PlotHistory lists every cycle of a plot, newest start first, with totals
// over all of each cycle's activities.
func (s *CycleService) PlotHistory(ctx context.Context, p authz.Principal, plotID string) ([]CycleWithStats, error) {
	if _, err := s.guard.Plot(ctx, p, plotID); err != nil {
		return nil, err
	}
	cycles, err := s.repo.ListCycles(ctx, repository.CycleFilter{PlotIDs: []string{plotID}})
	if err != nil {
		return nil, storeErr("list cycles", err)
	}
	out := make([]CycleWithStats, 0, len(cycles))
	if len(cycles) == 0 {
		return out, nil
	}

	ids := make([]string, len(cycles))
	for i, c := range cycles {
		ids[i] = c.ID
	}
	activities, err := s.repo.ListActivities(ctx, repository.ActivityFilter{CycleIDs: ids})
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	byCycle := groupByCycle(activities)

	lookup := newCatalogLookup(s.repo)
	now := s.now()
	for i := range cycles {
		view, err := lookup.cycleView(ctx, &cycles[i])
		if err != nil {
			return nil, storeErr("load cycle crop", err)
		}
		out = append(out, CycleWithStats{
			CycleView: *view,
			Stats: domain.CycleStats{
				Totals:      domain.Tally(byCycle[cycles[i].ID]),
				DaysElapsed: domain.DaysElapsed(cycles[i].StartDate, now),
			},
		})
	}
	return out, nil
}

func groupByCycle(activities []domain.Activity) map[string][]domain.Activity {
	out := make(map[string][]domain.Activity)
	for _, a := range activities {
		out[a.CycleID] = append(out[a.CycleID], a)
	}
	return out
}
