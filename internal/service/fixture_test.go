package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/repository/memory"
)

func init() {
	_ = logger.Init("error", "json")
}

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// recordingCleanup collects scheduled image URLs.
type recordingCleanup struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingCleanup) Schedule(_ context.Context, _ repository.Repository, urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, urls...)
	return nil
}

func (r *recordingCleanup) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

type fixture struct {
	repo    *memory.Store
	cleanup *recordingCleanup

	farmer   authz.Principal
	stranger authz.Principal
	admin    authz.Principal

	plot    domain.Plot
	rice    domain.CropType
	jasmine domain.CropVariety
	plan    domain.StandardPlan

	cycles     *CycleService
	activities *ActivityService
	aggregates *AggregationService
	plots      *PlotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	f := &fixture{
		repo:     repo,
		cleanup:  &recordingCleanup{},
		farmer:   authz.Principal{UserID: "farmer-1", Role: domain.RoleFarmer},
		stranger: authz.Principal{UserID: "farmer-2", Role: domain.RoleFarmer},
		admin:    authz.Principal{UserID: "admin-1", Role: domain.RoleAdmin},
	}

	for _, u := range []domain.User{
		{ID: "farmer-1", Name: "Somchai", Email: "somchai@example.com", Username: "somchai", Role: domain.RoleFarmer, CreatedAt: testNow},
		{ID: "farmer-2", Name: "Malee", Username: "malee", Role: domain.RoleFarmer, CreatedAt: testNow},
		{ID: "admin-1", Name: "Admin", Username: "admin", Role: domain.RoleAdmin, CreatedAt: testNow},
	} {
		u := u
		require.NoError(t, repo.CreateUser(ctx, &u))
	}

	f.plot = domain.Plot{ID: "plot-1", UserID: "farmer-1", Name: "North field", Latitude: 14.35, Longitude: 100.56, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, repo.CreatePlot(ctx, &f.plot))

	days := 120
	f.rice = domain.CropType{ID: "ct-rice", Name: "Rice", NameTh: "ข้าว", CreatedAt: testNow}
	f.jasmine = domain.CropVariety{ID: "v-jasmine", CropTypeID: "ct-rice", Name: "Jasmine 105", NameTh: "ข้าวหอมมะลิ 105", GrowthPeriodDays: &days, CreatedAt: testNow}
	f.plan = domain.StandardPlan{ID: "plan-rice", Name: "Jasmine rice plan", CreatedAt: testNow}
	require.NoError(t, repo.CreateCropType(ctx, &f.rice))
	require.NoError(t, repo.CreateVariety(ctx, &f.jasmine))
	require.NoError(t, repo.CreatePlan(ctx, &f.plan))
	require.NoError(t, repo.LinkPlanVariety(ctx, f.plan.ID, f.jasmine.ID))
	require.NoError(t, repo.CreatePlanTask(ctx, &domain.PlanTask{ID: "task-1", StandardPlanID: f.plan.ID, Title: "Prepare soil", DayFromStart: 0, ActivityType: domain.ActivitySoilPreparation, CreatedAt: testNow}))
	require.NoError(t, repo.CreatePlanTask(ctx, &domain.PlanTask{ID: "task-2", StandardPlanID: f.plan.ID, Title: "Fertilize", DayFromStart: 30, ActivityType: domain.ActivityFertilizing, CreatedAt: testNow}))

	f.cycles = NewCycleService(repo)
	f.cycles.now = fixedClock
	f.activities = NewActivityService(repo, f.cleanup)
	f.activities.now = fixedClock
	f.aggregates = NewAggregationService(repo)
	f.aggregates.now = fixedClock
	f.plots = NewPlotService(repo, f.cleanup)
	f.plots.now = fixedClock
	return f
}

func (f *fixture) startCycle(t *testing.T, startDate time.Time) *domain.PlantingCycle {
	t.Helper()
	c, err := f.cycles.StartCycle(context.Background(), f.farmer, f.plot.ID, StartCycleInput{
		CropVarietyID: f.jasmine.ID,
		StartDate:     &startDate,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) addActivity(t *testing.T, cycleID string, typ domain.ActivityType, date time.Time, cost, income float64) *domain.Activity {
	t.Helper()
	a, err := f.activities.AddActivity(context.Background(), f.farmer, cycleID, ActivityInput{
		Type:         string(typ),
		ActivityDate: &date,
		Cost:         &cost,
		Income:       &income,
	})
	require.NoError(t, err)
	return a
}

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.HTTPStatus)
}

func ptr[T any](v T) *T { return &v }
