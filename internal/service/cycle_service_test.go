package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/repository"
)

func TestCycleService_OneActiveCyclePerPlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.startCycle(t, testNow.AddDate(0, 0, -10))
	assert.Equal(t, domain.CycleActive, first.Status)
	assert.Nil(t, first.EndDate)

	_, err := f.cycles.StartCycle(ctx, f.farmer, f.plot.ID, StartCycleInput{CropVarietyID: f.jasmine.ID})
	requireCode(t, err, apperrors.CodeCycleAlreadyActive, http.StatusConflict)

	_, err = f.cycles.StartCycle(ctx, f.farmer, f.plot.ID, StartCycleInput{CropVarietyID: "nope"})
	requireCode(t, err, apperrors.CodeCycleAlreadyActive, http.StatusConflict)

	_, err = f.cycles.CompleteCycle(ctx, f.farmer, first.ID, nil)
	require.NoError(t, err)

	second, err := f.cycles.StartCycle(ctx, f.farmer, f.plot.ID, StartCycleInput{CropVarietyID: f.jasmine.ID})
	require.NoError(t, err)
	assert.Equal(t, testNow, second.StartDate, "start date defaults to now")
}

// raceStartCycle starts n cycles on one plot at once and returns how many
// succeeded. Every failure must be CYCLE_ALREADY_ACTIVE.
func raceStartCycle(t *testing.T, svc *CycleService, p authz.Principal, plotID, varietyID string, n int) int {
	t.Helper()
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
		gate = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			_, errs[i] = svc.StartCycle(context.Background(), p, plotID, StartCycleInput{CropVarietyID: varietyID})
		}(i)
	}
	close(gate)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireCode(t, err, apperrors.CodeCycleAlreadyActive, http.StatusConflict)
	}
	return wins
}

func TestCycleService_ConcurrentStartKeepsOneActive(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, raceStartCycle(t, f.cycles, f.farmer, f.plot.ID, f.jasmine.ID, 30))

	n, err := f.repo.CountCycles(context.Background(), repository.CycleFilter{
		PlotIDs:  []string{f.plot.ID},
		Statuses: []domain.CycleStatus{domain.CycleActive},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCycleService_StartBindsFirstLinkedPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	later := domain.StandardPlan{ID: "plan-later", Name: "Later plan", CreatedAt: testNow}
	require.NoError(t, f.repo.CreatePlan(ctx, &later))
	require.NoError(t, f.repo.LinkPlanVariety(ctx, later.ID, f.jasmine.ID))

	c := f.startCycle(t, testNow)
	require.NotNil(t, c.StandardPlanID)
	assert.Equal(t, f.plan.ID, *c.StandardPlanID)
}

func TestCycleService_StartWithoutAnyPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bare := domain.CropVariety{ID: "v-bare", CropTypeID: f.rice.ID, Name: "Riceberry", CreatedAt: testNow}
	require.NoError(t, f.repo.CreateVariety(ctx, &bare))

	c, err := f.cycles.StartCycle(ctx, f.farmer, f.plot.ID, StartCycleInput{CropVarietyID: bare.ID})
	require.NoError(t, err)
	assert.Nil(t, c.StandardPlanID)
}

func TestCycleService_StartFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		run    func() error
		code   string
		status int
	}{
		{
			name: "unknown variety",
			run: func() error {
				_, err := f.cycles.StartCycle(ctx, f.farmer, f.plot.ID, StartCycleInput{CropVarietyID: "nope"})
				return err
			},
			code: apperrors.CodeVarietyNotFound, status: http.StatusNotFound,
		},
		{
			name: "unknown plan",
			run: func() error {
				_, err := f.cycles.StartCycle(ctx, f.farmer, f.plot.ID, StartCycleInput{CropVarietyID: f.jasmine.ID, StandardPlanID: ptr("nope")})
				return err
			},
			code: apperrors.CodePlanNotFound, status: http.StatusNotFound,
		},
		{
			name: "stranger",
			run: func() error {
				_, err := f.cycles.StartCycle(ctx, f.stranger, f.plot.ID, StartCycleInput{CropVarietyID: f.jasmine.ID})
				return err
			},
			code: apperrors.CodeUnauthorized, status: http.StatusUnauthorized,
		},
		{
			name: "missing plot",
			run: func() error {
				_, err := f.cycles.StartCycle(ctx, f.farmer, "no-plot", StartCycleInput{CropVarietyID: f.jasmine.ID})
				return err
			},
			code: apperrors.CodeUnauthorized, status: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, tt.run(), tt.code, tt.status)
		})
	}

	n, err := f.repo.CountCycles(ctx, repository.CycleFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCycleService_TerminalStatesAreTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.startCycle(t, testNow.AddDate(0, 0, -30))

	harvest := testNow.AddDate(0, 0, -1)
	done, err := f.cycles.CompleteCycle(ctx, f.farmer, c.ID, &harvest)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleCompleted, done.Status)
	require.NotNil(t, done.EndDate)
	assert.True(t, harvest.Equal(*done.EndDate))

	_, err = f.cycles.CompleteCycle(ctx, f.farmer, c.ID, nil)
	requireCode(t, err, apperrors.CodeCycleNotActive, http.StatusUnprocessableEntity)
	_, err = f.cycles.AbandonCycle(ctx, f.farmer, c.ID, "flood")
	requireCode(t, err, apperrors.CodeCycleNotActive, http.StatusUnprocessableEntity)

	got, err := f.repo.GetCycle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleCompleted, got.Status)

	activities, err := f.repo.ListActivities(ctx, repository.ActivityFilter{CycleIDs: []string{c.ID}})
	require.NoError(t, err)
	assert.Empty(t, activities, "a rejected abandon must not leave its note behind")
}

func TestCycleService_CompleteAcceptsEndBeforeStart(t *testing.T) {
	f := newFixture(t)
	c := f.startCycle(t, testNow)

	before := testNow.AddDate(0, 0, -5)
	done, err := f.cycles.CompleteCycle(context.Background(), f.farmer, c.ID, &before)
	require.NoError(t, err)
	assert.True(t, before.Equal(*done.EndDate))
}

func TestCycleService_AbandonWithReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.startCycle(t, testNow.AddDate(0, 0, -20))

	abandoned, err := f.cycles.AbandonCycle(ctx, f.farmer, c.ID, "flooded by the river")
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAbandoned, abandoned.Status)
	require.NotNil(t, abandoned.EndDate)
	assert.Equal(t, testNow, *abandoned.EndDate)

	activities, err := f.repo.ListActivities(ctx, repository.ActivityFilter{CycleIDs: []string{c.ID}})
	require.NoError(t, err)
	require.Len(t, activities, 1)
	note := activities[0]
	assert.Equal(t, domain.ActivityOther, note.Type)
	assert.True(t, strings.Contains(note.Description, "flooded by the river"))
	assert.Equal(t, "Cycle abandoned: flooded by the river", note.Description)
	assert.False(t, note.ActivityDate.Before(testNow))
	assert.Zero(t, note.Cost)
	assert.Empty(t, note.Images)
}

func TestCycleService_AbandonWithoutReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.startCycle(t, testNow.AddDate(0, 0, -20))

	_, err := f.cycles.AbandonCycle(ctx, f.farmer, c.ID, "")
	require.NoError(t, err)

	activities, err := f.repo.ListActivities(ctx, repository.ActivityFilter{CycleIDs: []string{c.ID}})
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestCycleService_OwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.startCycle(t, testNow)

	_, errStranger := f.cycles.GetCycle(ctx, f.stranger, c.ID)
	_, errMissing := f.cycles.GetCycle(ctx, f.farmer, "no-such-cycle")
	requireCode(t, errStranger, apperrors.CodeUnauthorized, http.StatusUnauthorized)
	requireCode(t, errMissing, apperrors.CodeUnauthorized, http.StatusUnauthorized)

	_, err := f.cycles.CompleteCycle(ctx, f.stranger, c.ID, nil)
	requireCode(t, err, apperrors.CodeUnauthorized, http.StatusUnauthorized)
	_, err = f.cycles.AbandonCycle(ctx, f.admin, c.ID, "admin")
	requireCode(t, err, apperrors.CodeUnauthorized, http.StatusUnauthorized)
	_, err = f.cycles.PlotHistory(ctx, f.stranger, f.plot.ID)
	requireCode(t, err, apperrors.CodeUnauthorized, http.StatusUnauthorized)
}

func TestCycleService_GetCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.startCycle(t, testNow.AddDate(0, 0, -3))
	f.addActivity(t, c.ID, domain.ActivityPlanting, testNow.AddDate(0, 0, -3), 100, 0)
	f.addActivity(t, c.ID, domain.ActivityIrrigation, testNow.AddDate(0, 0, -1), 20, 0)

	detail, err := f.cycles.GetCycle(ctx, f.farmer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.plot.ID, detail.Plot.ID)
	assert.Equal(t, f.jasmine.ID, detail.CropVariety.ID)
	assert.Equal(t, f.rice.ID, detail.CropType.ID)
	require.NotNil(t, detail.StandardPlan)
	assert.Equal(t, f.plan.ID, detail.StandardPlan.ID)
	require.Len(t, detail.Tasks, 2)
	assert.Equal(t, 0, detail.Tasks[0].DayFromStart)
	require.Len(t, detail.Activities, 2)
	assert.Equal(t, domain.ActivityIrrigation, detail.Activities[0].Type, "newest activity first")
}

func TestCycleService_PlotHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.startCycle(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	f.addActivity(t, old.ID, domain.ActivityHarvesting, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), 0, 500)
	_, err := f.cycles.CompleteCycle(ctx, f.farmer, old.ID, nil)
	require.NoError(t, err)
	current := f.startCycle(t, testNow.AddDate(0, 0, -2))

	history, err := f.cycles.PlotHistory(ctx, f.farmer, f.plot.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, current.ID, history[0].ID)
	assert.Equal(t, 2, history[0].Stats.DaysElapsed)
	assert.Equal(t, old.ID, history[1].ID)
	assert.Equal(t, 500.0, history[1].Stats.TotalIncome)
	assert.Equal(t, 1, history[1].Stats.ActivityCount)
}
