package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

var t0 = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store   *Store
	user    domain.User
	plot    domain.Plot
	ct      domain.CropType
	variety domain.CropVariety
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:   New(),
		user:    domain.User{ID: "u1", Username: "somchai", Role: domain.RoleFarmer, CreatedAt: t0},
		plot:    domain.Plot{ID: "p1", UserID: "u1", Name: "North field", Latitude: 14.1, Longitude: 100.5, CreatedAt: t0},
		ct:      domain.CropType{ID: "ct1", Name: "Rice", CreatedAt: t0},
		variety: domain.CropVariety{ID: "v1", CropTypeID: "ct1", Name: "Jasmine 105", CreatedAt: t0},
	}
	require.NoError(t, f.store.CreateUser(ctx, &f.user))
	require.NoError(t, f.store.CreatePlot(ctx, &f.plot))
	require.NoError(t, f.store.CreateCropType(ctx, &f.ct))
	require.NoError(t, f.store.CreateVariety(ctx, &f.variety))
	return f
}

func (f *fixture) activeCycle(t *testing.T, id string) domain.PlantingCycle {
	t.Helper()
	c := domain.PlantingCycle{ID: id, PlotID: f.plot.ID, CropVarietyID: f.variety.ID, StartDate: t0, Status: domain.CycleActive}
	require.NoError(t, f.store.CreateCycle(context.Background(), &c))
	return c
}

func TestStore_OneActiveCyclePerPlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.activeCycle(t, "c1")

	second := domain.PlantingCycle{ID: "c2", PlotID: f.plot.ID, CropVarietyID: f.variety.ID, StartDate: t0, Status: domain.CycleActive}
	err := f.store.CreateCycle(ctx, &second)
	require.ErrorIs(t, err, repository.ErrActiveCycleExists)

	_, err = f.store.TransitionCycle(ctx, "c1", domain.CycleCompleted, t0.Add(time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.store.CreateCycle(ctx, &second))
	active, err := f.store.ActiveCycle(ctx, f.plot.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", active.ID)
}

func TestStore_TransitionIsConditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeCycle(t, "c1")

	end := t0.Add(48 * time.Hour)
	got, err := f.store.TransitionCycle(ctx, "c1", domain.CycleAbandoned, end, end)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAbandoned, got.Status)
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))

	_, err = f.store.TransitionCycle(ctx, "c1", domain.CycleCompleted, end, end)
	require.ErrorIs(t, err, repository.ErrNotActive)

	_, err = f.store.TransitionCycle(ctx, "missing", domain.CycleCompleted, end, end)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_InTxRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeCycle(t, "c1")

	boom := errors.New("boom")
	err := f.store.InTx(ctx, func(tx repository.Repository) error {
		require.NoError(t, tx.CreateActivity(ctx, &domain.Activity{ID: "a1", CycleID: "c1", Type: domain.ActivityOther, ActivityDate: t0}))
		if _, err := tx.TransitionCycle(ctx, "c1", domain.CycleAbandoned, t0, t0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = f.store.GetActivity(ctx, "a1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	c, err := f.store.GetCycle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CycleActive, c.Status)

	err = f.store.InTx(ctx, func(tx repository.Repository) error {
		return tx.CreateActivity(ctx, &domain.Activity{ID: "a1", CycleID: "c1", Type: domain.ActivityOther, ActivityDate: t0})
	})
	require.NoError(t, err)
	_, err = f.store.GetActivity(ctx, "a1")
	require.NoError(t, err)
}

func TestStore_DeleteGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.store.DeleteCropType(ctx, f.ct.ID), repository.ErrInUse)

	f.activeCycle(t, "c1")
	require.ErrorIs(t, f.store.DeleteVariety(ctx, f.variety.ID), repository.ErrInUse)

	require.NoError(t, f.store.DeletePlot(ctx, f.plot.ID))
	require.NoError(t, f.store.DeleteVariety(ctx, f.variety.ID))
	require.NoError(t, f.store.DeleteCropType(ctx, f.ct.ID))
}

func TestStore_DeletePlotCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeCycle(t, "c1")
	require.NoError(t, f.store.CreateActivity(ctx, &domain.Activity{ID: "a1", CycleID: "c1", Type: domain.ActivityPlanting, ActivityDate: t0}))

	require.NoError(t, f.store.DeletePlot(ctx, f.plot.ID))

	_, err := f.store.GetCycle(ctx, "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	n, err := f.store.CountActivities(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Uniques(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.CreateUser(ctx, &domain.User{ID: "u2", Username: "somchai", Role: domain.RoleFarmer})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	err = f.store.CreateCropType(ctx, &domain.CropType{ID: "ct2", Name: "Rice"})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	err = f.store.CreateVariety(ctx, &domain.CropVariety{ID: "v2", CropTypeID: "ct1", Name: "Jasmine 105"})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, f.store.CreateAccount(ctx, &domain.Account{ID: "acc1", UserID: "u1", Provider: "google", ProviderAccountID: "g-1"}))
	err = f.store.CreateAccount(ctx, &domain.Account{ID: "acc2", UserID: "u1", Provider: "google", ProviderAccountID: "g-1"})
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStore_ListActivitiesFilterAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeCycle(t, "c1")

	for i, day := range []int{1, 3, 2} {
		a := domain.Activity{
			ID:           string(rune('a' + i)),
			CycleID:      "c1",
			Type:         domain.ActivityIrrigation,
			ActivityDate: t0.AddDate(0, 0, day),
			Images:       []string{"x"},
		}
		require.NoError(t, f.store.CreateActivity(ctx, &a))
	}

	all, err := f.store.ListActivities(ctx, repository.ActivityFilter{CycleIDs: []string{"c1"}})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	from, to := t0.AddDate(0, 0, 2), t0.AddDate(0, 0, 3)
	ranged, err := f.store.ListActivities(ctx, repository.ActivityFilter{CycleIDs: []string{"c1"}, From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	all[0].Images[0] = "mutated"
	again, err := f.store.GetActivity(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.Images)
}

func TestStore_ReferencedImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activeCycle(t, "c1")
	require.NoError(t, f.store.CreateActivity(ctx, &domain.Activity{ID: "a1", CycleID: "c1", Type: domain.ActivityOther, Images: []string{"x", "y"}}))
	require.NoError(t, f.store.CreateActivity(ctx, &domain.Activity{ID: "a2", CycleID: "c1", Type: domain.ActivityOther, Images: []string{"y"}}))

	got, err := f.store.ReferencedImages(ctx, []string{"y", "z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, got)

	got, err = f.store.ReferencedImages(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_FirstPlanForVariety(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.FirstPlanForVariety(ctx, f.variety.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	for _, id := range []string{"plan-a", "plan-b"} {
		require.NoError(t, f.store.CreatePlan(ctx, &domain.StandardPlan{ID: id, Name: id, CreatedAt: t0}))
	}
	require.NoError(t, f.store.LinkPlanVariety(ctx, "plan-b", f.variety.ID))
	require.NoError(t, f.store.LinkPlanVariety(ctx, "plan-a", f.variety.ID))

	plan, err := f.store.FirstPlanForVariety(ctx, f.variety.ID)
	require.NoError(t, err)
	assert.Equal(t, "plan-b", plan.ID)

	require.NoError(t, f.store.DeletePlan(ctx, "plan-b"))
	plan, err = f.store.FirstPlanForVariety(ctx, f.variety.ID)
	require.NoError(t, err)
	assert.Equal(t, "plan-a", plan.ID)
}

func TestStore_DeletePlanDetachesCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreatePlan(ctx, &domain.StandardPlan{ID: "plan", Name: "Rice plan", CreatedAt: t0}))
	require.NoError(t, f.store.CreatePlanTask(ctx, &domain.PlanTask{ID: "t1", StandardPlanID: "plan", Title: "Plough", ActivityType: domain.ActivitySoilPreparation}))

	planID := "plan"
	c := domain.PlantingCycle{ID: "c1", PlotID: f.plot.ID, CropVarietyID: f.variety.ID, StandardPlanID: &planID, StartDate: t0, Status: domain.CycleActive}
	require.NoError(t, f.store.CreateCycle(ctx, &c))

	require.NoError(t, f.store.DeletePlan(ctx, "plan"))

	got, err := f.store.GetCycle(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got.StandardPlanID)
	_, err = f.store.GetPlanTask(ctx, "t1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_AfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ran []string
	err := f.store.InTx(ctx, func(tx repository.Repository) error {
		tx.(*Store).AfterCommit(func() {
			// The hook sees committed state and may take the lock again.
			_, err := f.store.GetPlot(ctx, "p2")
			assert.NoError(t, err)
			ran = append(ran, "committed")
		})
		return tx.CreatePlot(ctx, &domain.Plot{ID: "p2", UserID: "u1", Name: "South", CreatedAt: t0})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"committed"}, ran)

	err = f.store.InTx(ctx, func(tx repository.Repository) error {
		tx.(*Store).AfterCommit(func() { ran = append(ran, "rolled back") })
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"committed"}, ran)

	f.store.AfterCommit(func() { ran = append(ran, "direct") })
	assert.Equal(t, []string{"committed", "direct"}, ran)
}
