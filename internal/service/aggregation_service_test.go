package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregationService_CycleStats(t *testing.T) {
	f := newFixture(t)
	c := f.startCycle(t, testNow.Add(-(3*24*time.Hour + 5*time.Hour)))
	f.addActivity(t, c.ID, domain.ActivityPlanting, testNow, 100, 0)
	f.addActivity(t, c.ID, domain.ActivityHarvesting, testNow, 0, 250)
	f.addActivity(t, c.ID, domain.ActivityOther, testNow, 50, 50)

	stats, err := f.aggregates.CycleStats(context.Background(), f.farmer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stats.TotalCost)
	assert.Equal(t, 300.0, stats.TotalIncome)
	assert.Equal(t, 150.0, stats.NetProfit)
	assert.Equal(t, 3, stats.ActivityCount)
	assert.Equal(t, 3, stats.DaysElapsed)

	_, err = f.aggregates.CycleStats(context.Background(), f.stranger, c.ID)
	requireCode(t, err, apperrors.CodeUnauthorized, http.StatusUnauthorized)
}

func TestAggregationService_StatsByType(t *testing.T) {
	f := newFixture(t)
	c := f.startCycle(t, testNow.AddDate(0, 0, -5))
	f.addActivity(t, c.ID, domain.ActivityFertilizing, testNow, 100, 0)
	f.addActivity(t, c.ID, domain.ActivityFertilizing, testNow, 40, 0)
	f.addActivity(t, c.ID, domain.ActivityHarvesting, testNow, 0, 900)

	byType, err := f.aggregates.StatsByType(context.Background(), f.farmer, c.ID)
	require.NoError(t, err)
	assert.Len(t, byType, 2)
	assert.Equal(t, domain.TypeTotals{Count: 2, TotalCost: 140}, byType[domain.ActivityFertilizing])
	assert.Equal(t, domain.TypeTotals{Count: 1, TotalIncome: 900}, byType[domain.ActivityHarvesting])
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
		wantCode  string
	}{
		{
			name: "date only end covers the day", start: "2025-01-01", end: "2025-01-31",
			wantStart: day(2025, 1, 1), wantEnd: day(2025, 2, 1).Add(-time.Nanosecond),
		},
		{
			name: "rfc3339 kept exact", start: "2025-01-01T00:00:00Z", end: "2025-01-31T12:00:00+07:00",
			wantStart: day(2025, 1, 1), wantEnd: time.Date(2025, 1, 31, 5, 0, 0, 0, time.UTC),
		},
		{name: "missing start", start: "", end: "2025-01-31", wantCode: apperrors.CodeDateRangeRequired},
		{name: "missing end", start: "2025-01-01", end: " ", wantCode: apperrors.CodeDateRangeRequired},
		{name: "garbage", start: "yesterday", end: "2025-01-31", wantCode: apperrors.CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ParseDateRange(tt.start, tt.end)
			if tt.wantCode != "" {
				requireCode(t, err, tt.wantCode, http.StatusBadRequest)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start), "start = %s", start)
			assert.True(t, tt.wantEnd.Equal(end), "end = %s", end)
		})
	}
}

func TestAggregationService_Summary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	south := domain.Plot{ID: "plot-2", UserID: "farmer-1", Name: "South field", CreatedAt: testNow.Add(time.Hour)}
	gone := domain.Plot{ID: "plot-3", UserID: "farmer-1", Name: "Flooded field", CreatedAt: testNow.Add(2 * time.Hour)}
	theirs := domain.Plot{ID: "plot-4", UserID: "farmer-2", Name: "Malee field", CreatedAt: testNow}
	for _, p := range []*domain.Plot{&south, &gone, &theirs} {
		require.NoError(t, f.repo.CreatePlot(ctx, p))
	}

	// North: completed cycle with activities on and around the boundaries.
	completed := f.startCycle(t, day(2024, 12, 1))
	f.addActivity(t, completed.ID, domain.ActivityPlanting, day(2024, 12, 31).Add(23*time.Hour), 999, 0)
	f.addActivity(t, completed.ID, domain.ActivityFertilizing, day(2025, 1, 1), 100, 0)
	f.addActivity(t, completed.ID, domain.ActivityHarvesting, day(2025, 1, 31).Add(23*time.Hour+59*time.Minute), 0, 400)
	f.addActivity(t, completed.ID, domain.ActivityOther, day(2025, 2, 1), 0, 777)
	_, err := f.cycles.CompleteCycle(ctx, f.farmer, completed.ID, ptr(day(2025, 2, 2)))
	require.NoError(t, err)

	start := func(plotID string, at time.Time) *domain.PlantingCycle {
		c, err := f.cycles.StartCycle(ctx, authz.Principal{UserID: "farmer-1", Role: domain.RoleFarmer}, plotID, StartCycleInput{CropVarietyID: f.jasmine.ID, StartDate: &at})
		require.NoError(t, err)
		return c
	}
	active := start(south.ID, day(2025, 1, 10))
	f.addActivity(t, active.ID, domain.ActivityIrrigation, day(2025, 1, 15), 30, 0)

	abandoned := start(gone.ID, day(2025, 1, 2))
	f.addActivity(t, abandoned.ID, domain.ActivityPlanting, day(2025, 1, 3), 500, 0)
	_, err = f.cycles.AbandonCycle(ctx, f.farmer, abandoned.ID, "flood")
	require.NoError(t, err)

	theirCycle, err := f.cycles.StartCycle(ctx, f.stranger, theirs.ID, StartCycleInput{CropVarietyID: f.jasmine.ID, StartDate: ptr(day(2025, 1, 5))})
	require.NoError(t, err)
	_, err = f.activities.AddActivity(ctx, f.stranger, theirCycle.ID, ActivityInput{Type: "OTHER", ActivityDate: ptr(day(2025, 1, 6)), Cost: ptr(10000.0)})
	require.NoError(t, err)

	sum, err := f.aggregates.Summary(ctx, f.farmer, "2025-01-01", "2025-01-31")
	require.NoError(t, err)

	require.Len(t, sum.CompletedPlots, 1)
	done := sum.CompletedPlots[0]
	assert.Equal(t, completed.ID, done.ID)
	assert.Equal(t, f.plot.ID, done.PlotID)
	assert.Equal(t, "North field", done.Name)
	assert.Equal(t, domain.CycleCompleted, done.Status)
	assert.Equal(t, "ข้าวหอมมะลิ 105", done.CropName)
	assert.Equal(t, domain.Totals{TotalCost: 100, TotalIncome: 400, NetProfit: 300, ActivityCount: 2}, done.Stats)
	require.NotNil(t, done.EndDate)

	require.Len(t, sum.ActivePlots, 1)
	assert.Equal(t, active.ID, sum.ActivePlots[0].ID)
	assert.Equal(t, domain.Totals{TotalCost: 30, NetProfit: -30, ActivityCount: 1}, sum.ActivePlots[0].Stats)

	assert.Equal(t, domain.Totals{TotalCost: 30, NetProfit: -30, ActivityCount: 1}, sum.ActiveTotals)
	assert.Equal(t, domain.Totals{TotalCost: 100, TotalIncome: 400, NetProfit: 300, ActivityCount: 2}, sum.CompletedTotals)
}

func TestAggregationService_SummaryEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.aggregates.Summary(ctx, f.farmer, "", "2025-01-31")
	requireCode(t, err, apperrors.CodeDateRangeRequired, http.StatusBadRequest)

	_, err = f.aggregates.Summary(ctx, authz.Principal{}, "2025-01-01", "2025-01-31")
	requireCode(t, err, apperrors.CodeUnauthorized, http.StatusUnauthorized)

	// A user with no plots gets empty, non-nil buckets.
	sum, err := f.aggregates.Summary(ctx, f.stranger, "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.NotNil(t, sum.ActivePlots)
	assert.Empty(t, sum.ActivePlots)
	assert.Empty(t, sum.CompletedPlots)

	// A cycle with no activity in range still shows up with zero totals.
	f.startCycle(t, day(2024, 1, 1))
	sum, err = f.aggregates.Summary(ctx, f.farmer, "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	require.Len(t, sum.ActivePlots, 1)
	assert.Equal(t, domain.Totals{}, sum.ActivePlots[0].Stats)
}
