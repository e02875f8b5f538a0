package service

import (
	"context"
	"strings"
	"time"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/repository"
)

// SummaryEntry is one cycle in a summary bucket.
type SummaryEntry struct {
	ID        string             `json:"id"`
	PlotID    string             `json:"plotId"`
	Name      string             `json:"name"`
	Status    domain.CycleStatus `json:"status"`
	CropName  string             `json:"cropName"`
	Stats     domain.Totals      `json:"stats"`
	StartDate time.Time          `json:"startDate"`
	EndDate   *time.Time         `json:"endDate"`
}

// Summary buckets a user's cycles by status over a date range.
type Summary struct {
	StartDate       time.Time      `json:"startDate"`
	EndDate         time.Time      `json:"endDate"`
	ActivePlots     []SummaryEntry `json:"activePlots"`
	CompletedPlots  []SummaryEntry `json:"completedPlots"`
	ActiveTotals    domain.Totals  `json:"activeTotals"`
	CompletedTotals domain.Totals  `json:"completedTotals"`
}

// AggregationService computes cycle statistics and the date-ranged summary.
// Nothing is cached; every call reads the store.
type AggregationService struct {
	repo  repository.Repository
	guard *authz.Guard
	now   func() time.Time
}

// NewAggregationService creates an AggregationService.
func NewAggregationService(repo repository.Repository) *AggregationService {
	return &AggregationService{repo: repo, guard: authz.NewGuard(repo), now: utcNow}
}

// CycleStats totals all of a cycle's activities.
func (s *AggregationService) CycleStats(ctx context.Context, p authz.Principal, cycleID string) (*domain.CycleStats, error) {
	cycle, _, err := s.guard.Cycle(ctx, p, cycleID)
	if err != nil {
		return nil, err
	}
	activities, err := cycleActivities(ctx, s.repo, cycleID)
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	return &domain.CycleStats{
		Totals:      domain.Tally(activities),
		DaysElapsed: domain.DaysElapsed(cycle.StartDate, s.now()),
	}, nil
}

// StatsByType groups all of a cycle's activities by type.
func (s *AggregationService) StatsByType(ctx context.Context, p authz.Principal, cycleID string) (map[domain.ActivityType]domain.TypeTotals, error) {
	if _, _, err := s.guard.Cycle(ctx, p, cycleID); err != nil {
		return nil, err
	}
	activities, err := cycleActivities(ctx, s.repo, cycleID)
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	return domain.TallyByType(activities), nil
}

// ParseDateRange parses summary bounds. Both are required and accept
// YYYY-MM-DD or RFC 3339; a date-only end covers its whole day.
func ParseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, apperrors.BadRequest(apperrors.CodeDateRangeRequired, "Start date and end date are required")
	}
	start, _, err := domain.ParseDate(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ErrValidation("startDate", "startDate must be YYYY-MM-DD or RFC 3339")
	}
	end, dateOnlyEnd, err := domain.ParseDate(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ErrValidation("endDate", "endDate must be YYYY-MM-DD or RFC 3339")
	}
	if dateOnlyEnd {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

// Summary totals the caller's cycles over activities dated within
// [start, end] and splits them into ACTIVE and COMPLETED buckets. ABANDONED
// cycles appear in neither.
func (s *AggregationService) Summary(ctx context.Context, p authz.Principal, startRaw, endRaw string) (*Summary, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	start, end, err := ParseDateRange(startRaw, endRaw)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		StartDate:      start,
		EndDate:        end,
		ActivePlots:    []SummaryEntry{},
		CompletedPlots: []SummaryEntry{},
	}

	plots, err := s.repo.ListPlots(ctx, p.UserID)
	if err != nil {
		return nil, storeErr("list plots", err)
	}
	if len(plots) == 0 {
		return out, nil
	}
	plotIDs := make([]string, len(plots))
	for i, pl := range plots {
		plotIDs[i] = pl.ID
	}

	cycles, err := s.repo.ListCycles(ctx, repository.CycleFilter{
		PlotIDs:  plotIDs,
		Statuses: []domain.CycleStatus{domain.CycleActive, domain.CycleCompleted},
	})
	if err != nil {
		return nil, storeErr("list cycles", err)
	}
	if len(cycles) == 0 {
		return out, nil
	}
	cycleIDs := make([]string, len(cycles))
	byPlot := make(map[string][]domain.PlantingCycle)
	for i, c := range cycles {
		cycleIDs[i] = c.ID
		byPlot[c.PlotID] = append(byPlot[c.PlotID], c)
	}

	activities, err := s.repo.ListActivities(ctx, repository.ActivityFilter{
		CycleIDs: cycleIDs,
		From:     &start,
		To:       &end,
	})
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	byCycle := groupByCycle(activities)

	lookup := newCatalogLookup(s.repo)
	for _, pl := range plots {
		for _, c := range byPlot[pl.ID] {
			v, err := lookup.variety(ctx, c.CropVarietyID)
			if err != nil {
				return nil, storeErr("get variety", err)
			}
			entry := SummaryEntry{
				ID:        c.ID,
				PlotID:    pl.ID,
				Name:      pl.Name,
				Status:    c.Status,
				CropName:  v.DisplayName(),
				Stats:     domain.Tally(byCycle[c.ID]),
				StartDate: c.StartDate,
				EndDate:   c.EndDate,
			}
			switch c.Status {
			case domain.CycleActive:
				out.ActivePlots = append(out.ActivePlots, entry)
				out.ActiveTotals = out.ActiveTotals.Add(entry.Stats)
			case domain.CycleCompleted:
				out.CompletedPlots = append(out.CompletedPlots, entry)
				out.CompletedTotals = out.CompletedTotals.Add(entry.Stats)
			}
		}
	}
	return out, nil
}
