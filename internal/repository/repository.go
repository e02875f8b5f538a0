// Package repository defines the persistence contract shared by the
// postgres and memory drivers.
//
// Repositories are dumb: callers assign ids and timestamps, services own the
// business rules. Drivers enforce the same relational invariants (uniques,
// restrict/cascade, one ACTIVE cycle per plot) so either can back the API.
package repository

import (
	"context"
	"errors"
	"time"

	"smartfarm.io/farm/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
	// ErrActiveCycleExists is returned when a plot already has an ACTIVE cycle.
	ErrActiveCycleExists = errors.New("plot already has an active cycle")
	// ErrNotActive is returned by a transition on a cycle that is not ACTIVE.
	ErrNotActive = errors.New("cycle is not active")
	// ErrInUse is returned when a delete is restricted by dependent rows.
	ErrInUse = errors.New("row is referenced")
)

// CycleFilter narrows cycle listings. Zero values match everything.
type CycleFilter struct {
	PlotIDs  []string
	Statuses []domain.CycleStatus
}

// ActivityFilter narrows activity listings. From and To are inclusive.
type ActivityFilter struct {
	CycleIDs []string
	From     *time.Time
	To       *time.Time
}

// UserStore persists users and their linked accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error
	CountUsersByRole(ctx context.Context, role domain.Role) (int, error)

	CreateAccount(ctx context.Context, a *domain.Account) error
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	DeleteAccountsByProvider(ctx context.Context, userID, provider string) (int, error)
}

// PlotStore persists plots. DeletePlot cascades to cycles and activities.
type PlotStore interface {
	CreatePlot(ctx context.Context, p *domain.Plot) error
	GetPlot(ctx context.Context, id string) (*domain.Plot, error)
	UpdatePlot(ctx context.Context, p *domain.Plot) error
	DeletePlot(ctx context.Context, id string) error
	// ListPlots returns plots newest first. An empty userID lists every plot.
	ListPlots(ctx context.Context, userID string) ([]domain.Plot, error)
	CountPlots(ctx context.Context) (int, error)
}

// CatalogStore persists crop types, varieties, standard plans and plan tasks.
type CatalogStore interface {
	CreateCropType(ctx context.Context, ct *domain.CropType) error
	GetCropType(ctx context.Context, id string) (*domain.CropType, error)
	UpdateCropType(ctx context.Context, ct *domain.CropType) error
	// DeleteCropType returns ErrInUse while the type has varieties.
	DeleteCropType(ctx context.Context, id string) error
	// ListCropTypes returns crop types by name.
	ListCropTypes(ctx context.Context) ([]domain.CropType, error)

	CreateVariety(ctx context.Context, v *domain.CropVariety) error
	GetVariety(ctx context.Context, id string) (*domain.CropVariety, error)
	UpdateVariety(ctx context.Context, v *domain.CropVariety) error
	// DeleteVariety returns ErrInUse while a cycle references it.
	DeleteVariety(ctx context.Context, id string) error
	// ListVarieties returns varieties by name. An empty cropTypeID lists all.
	ListVarieties(ctx context.Context, cropTypeID string) ([]domain.CropVariety, error)
	CountVarietiesByCropType(ctx context.Context, cropTypeID string) (int, error)

	CreatePlan(ctx context.Context, p *domain.StandardPlan) error
	GetPlan(ctx context.Context, id string) (*domain.StandardPlan, error)
	UpdatePlan(ctx context.Context, p *domain.StandardPlan) error
	DeletePlan(ctx context.Context, id string) error
	// ListPlans returns plans newest first.
	ListPlans(ctx context.Context) ([]domain.StandardPlan, error)
	// FirstPlanForVariety returns the earliest linked plan, or ErrNotFound.
	FirstPlanForVariety(ctx context.Context, varietyID string) (*domain.StandardPlan, error)

	PlanVarietyIDs(ctx context.Context, planID string) ([]string, error)
	LinkPlanVariety(ctx context.Context, planID, varietyID string) error
	UnlinkPlanVariety(ctx context.Context, planID, varietyID string) error

	CreatePlanTask(ctx context.Context, t *domain.PlanTask) error
	GetPlanTask(ctx context.Context, id string) (*domain.PlanTask, error)
	UpdatePlanTask(ctx context.Context, t *domain.PlanTask) error
	DeletePlanTask(ctx context.Context, id string) error
	// ListPlanTasks returns a plan's tasks by dayFromStart.
	ListPlanTasks(ctx context.Context, planID string) ([]domain.PlanTask, error)
}

// CycleStore persists planting cycles.
type CycleStore interface {
	// CreateCycle returns ErrActiveCycleExists when an ACTIVE cycle is
	// inserted on a plot that already has one.
	CreateCycle(ctx context.Context, c *domain.PlantingCycle) error
	GetCycle(ctx context.Context, id string) (*domain.PlantingCycle, error)
	// ActiveCycle returns the plot's ACTIVE cycle, or ErrNotFound.
	ActiveCycle(ctx context.Context, plotID string) (*domain.PlantingCycle, error)
	// ListCycles returns matching cycles by startDate, newest first.
	ListCycles(ctx context.Context, f CycleFilter) ([]domain.PlantingCycle, error)
	CountCycles(ctx context.Context, f CycleFilter) (int, error)
	// TransitionCycle moves an ACTIVE cycle to a terminal status. It returns
	// ErrNotActive when the cycle is no longer ACTIVE.
	TransitionCycle(ctx context.Context, id string, to domain.CycleStatus, endDate, updatedAt time.Time) (*domain.PlantingCycle, error)
}

// ActivityStore persists activities.
type ActivityStore interface {
	CreateActivity(ctx context.Context, a *domain.Activity) error
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)
	UpdateActivity(ctx context.Context, a *domain.Activity) error
	DeleteActivity(ctx context.Context, id string) error
	// ListActivities returns matching activities by activityDate, newest first.
	ListActivities(ctx context.Context, f ActivityFilter) ([]domain.Activity, error)
	CountActivities(ctx context.Context) (int, error)
	// ReferencedImages returns the urls that some activity still lists.
	ReferencedImages(ctx context.Context, urls []string) ([]string, error)
}

// Repository is the full store. InTx runs fn against a transactional view;
// fn's error rolls back every write made through that view.
type Repository interface {
	UserStore
	PlotStore
	CatalogStore
	CycleStore
	ActivityStore

	InTx(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error
}
