package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/metrics"
	"smartfarm.io/farm/internal/repository"
)

// CropTypeWithVarieties is a crop type and its varieties by name.
type CropTypeWithVarieties struct {
	domain.CropType
	Varieties []domain.CropVariety `json:"varieties"`
}

// PlanDetail is a standard plan with its linked varieties and tasks.
type PlanDetail struct {
	domain.StandardPlan
	Varieties []domain.CropVariety `json:"varieties"`
	Tasks     []domain.PlanTask    `json:"tasks"`
}

// CropTypeInput creates or replaces a crop type.
type CropTypeInput struct {
	Name        string
	NameEn      string
	NameTh      string
	Description string
	Icon        string
}

// VarietyInput creates or replaces a crop variety.
type VarietyInput struct {
	CropTypeID       string
	Name             string
	NameEn           string
	NameTh           string
	Description      string
	GrowthPeriodDays *int
}

// PlanTaskInput creates or replaces a plan task.
type PlanTaskInput struct {
	Title        string
	Description  string
	DayFromStart int
	ActivityType string
}

// PlanInput creates or updates a standard plan. On update a nil VarietyIDs
// keeps the current links and Tasks is ignored.
type PlanInput struct {
	Name        string
	Description string
	VarietyIDs  []string
	Tasks       []PlanTaskInput
}

const cropTypesCacheKey = "crop-types"

// CatalogService manages the admin reference data.
type CatalogService struct {
	repo  repository.Repository
	cache *cache.Cache
	now   func() time.Time
}

// NewCatalogService creates a CatalogService. The crop type listing is
// cached for ttl and dropped on every crop type or variety write.
func NewCatalogService(repo repository.Repository, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogService{repo: repo, cache: cache.New(ttl, 2*ttl), now: utcNow}
}

func (s *CatalogService) invalidate() {
	s.cache.Delete(cropTypesCacheKey)
}

func errCropTypeNotFound() error {
	return apperrors.NotFound(apperrors.CodeCropTypeNotFound, "Crop type not found")
}

func errVarietyNotFound() error {
	return apperrors.NotFound(apperrors.CodeVarietyNotFound, "Crop variety not found")
}

func errPlanNotFound() error {
	return apperrors.NotFound(apperrors.CodePlanNotFound, "Standard plan not found")
}

func errNameTaken() error {
	return apperrors.Conflict(apperrors.CodeCatalogNameTaken, "Name is already in use")
}

// mapCatalogErr turns store sentinels into API errors for one entity kind.
func mapCatalogErr(op string, err error, notFound func() error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound()
	case errors.Is(err, repository.ErrDuplicate):
		return errNameTaken()
	default:
		return storeErr(op, err)
	}
}

// ListCropTypes returns crop types by name, each with its varieties.
// The result is shared between callers and must not be modified.
func (s *CatalogService) ListCropTypes(ctx context.Context, p authz.Principal) ([]CropTypeWithVarieties, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(cropTypesCacheKey); ok {
		metrics.CatalogCache.WithLabelValues("hit").Inc()
		return cached.([]CropTypeWithVarieties), nil
	}
	metrics.CatalogCache.WithLabelValues("miss").Inc()

	types, err := s.repo.ListCropTypes(ctx)
	if err != nil {
		return nil, storeErr("list crop types", err)
	}
	varieties, err := s.repo.ListVarieties(ctx, "")
	if err != nil {
		return nil, storeErr("list varieties", err)
	}
	byType := make(map[string][]domain.CropVariety)
	for _, v := range varieties {
		byType[v.CropTypeID] = append(byType[v.CropTypeID], v)
	}

	out := make([]CropTypeWithVarieties, len(types))
	for i, ct := range types {
		vs := byType[ct.ID]
		if vs == nil {
			vs = []domain.CropVariety{}
		}
		out[i] = CropTypeWithVarieties{CropType: ct, Varieties: vs}
	}
	s.cache.Set(cropTypesCacheKey, out, cache.DefaultExpiration)
	return out, nil
}

// ListStandardPlans returns plans newest first with varieties and tasks.
func (s *CatalogService) ListStandardPlans(ctx context.Context, p authz.Principal) ([]PlanDetail, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, storeErr("list plans", err)
	}
	out := make([]PlanDetail, 0, len(plans))
	for i := range plans {
		d, err := s.planDetail(ctx, s.repo, &plans[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *CatalogService) planDetail(ctx context.Context, repo repository.Repository, plan *domain.StandardPlan) (*PlanDetail, error) {
	ids, err := repo.PlanVarietyIDs(ctx, plan.ID)
	if err != nil {
		return nil, storeErr("list plan varieties", err)
	}
	d := &PlanDetail{StandardPlan: *plan, Varieties: make([]domain.CropVariety, 0, len(ids))}
	for _, id := range ids {
		v, err := repo.GetVariety(ctx, id)
		if err != nil {
			return nil, storeErr("get variety", err)
		}
		d.Varieties = append(d.Varieties, *v)
	}
	if d.Tasks, err = repo.ListPlanTasks(ctx, plan.ID); err != nil {
		return nil, storeErr("list plan tasks", err)
	}
	if d.Tasks == nil {
		d.Tasks = []domain.PlanTask{}
	}
	return d, nil
}

// Crop types.

func validateCropType(in CropTypeInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.ErrValidation("name", "name is required")
	}
	return nil
}

func (s *CatalogService) CreateCropType(ctx context.Context, p authz.Principal, in CropTypeInput) (*domain.CropType, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := validateCropType(in); err != nil {
		return nil, err
	}
	now := s.now()
	ct := &domain.CropType{
		ID:          newID(),
		Name:        strings.TrimSpace(in.Name),
		NameEn:      in.NameEn,
		NameTh:      in.NameTh,
		Description: in.Description,
		Icon:        in.Icon,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateCropType(ctx, ct); err != nil {
		return nil, mapCatalogErr("create crop type", err, errCropTypeNotFound)
	}
	s.invalidate()
	return ct, nil
}

func (s *CatalogService) GetCropType(ctx context.Context, p authz.Principal, id string) (*CropTypeWithVarieties, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	ct, err := s.repo.GetCropType(ctx, id)
	if err != nil {
		return nil, mapCatalogErr("get crop type", err, errCropTypeNotFound)
	}
	vs, err := s.repo.ListVarieties(ctx, id)
	if err != nil {
		return nil, storeErr("list varieties", err)
	}
	if vs == nil {
		vs = []domain.CropVariety{}
	}
	return &CropTypeWithVarieties{CropType: *ct, Varieties: vs}, nil
}

func (s *CatalogService) UpdateCropType(ctx context.Context, p authz.Principal, id string, in CropTypeInput) (*domain.CropType, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := validateCropType(in); err != nil {
		return nil, err
	}
	var ct *domain.CropType
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if ct, err = tx.GetCropType(ctx, id); err != nil {
			return mapCatalogErr("get crop type", err, errCropTypeNotFound)
		}
		ct.Name = strings.TrimSpace(in.Name)
		ct.NameEn, ct.NameTh = in.NameEn, in.NameTh
		ct.Description, ct.Icon = in.Description, in.Icon
		ct.UpdatedAt = s.now()
		return mapCatalogErr("update crop type", tx.UpdateCropType(ctx, ct), errCropTypeNotFound)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return ct, nil
}

// DeleteCropType refuses while the type still has varieties.
func (s *CatalogService) DeleteCropType(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.RequireAdmin(p); err != nil {
		return err
	}
	errHasVarieties := func() error {
		return apperrors.Conflict(apperrors.CodeCropTypeHasVarieties, "Cannot delete crop type with existing varieties")
	}
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		n, err := tx.CountVarietiesByCropType(ctx, id)
		if err != nil {
			return storeErr("count varieties", err)
		}
		if n > 0 {
			return errHasVarieties()
		}
		err = tx.DeleteCropType(ctx, id)
		if errors.Is(err, repository.ErrInUse) {
			return errHasVarieties()
		}
		return mapCatalogErr("delete crop type", err, errCropTypeNotFound)
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Varieties.

func validateVariety(in VarietyInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.ErrValidation("name", "name is required")
	}
	if in.CropTypeID == "" {
		return apperrors.ErrValidation("cropTypeId", "cropTypeId is required")
	}
	if in.GrowthPeriodDays != nil && *in.GrowthPeriodDays < 0 {
		return apperrors.ErrValidation("growthPeriodDays", "growthPeriodDays must not be negative")
	}
	return nil
}

func (s *CatalogService) CreateVariety(ctx context.Context, p authz.Principal, in VarietyInput) (*domain.CropVariety, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := validateVariety(in); err != nil {
		return nil, err
	}
	now := s.now()
	v := &domain.CropVariety{
		ID:               newID(),
		CropTypeID:       in.CropTypeID,
		Name:             strings.TrimSpace(in.Name),
		NameEn:           in.NameEn,
		NameTh:           in.NameTh,
		Description:      in.Description,
		GrowthPeriodDays: in.GrowthPeriodDays,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// A missing crop type surfaces as ErrNotFound from the foreign key.
	if err := s.repo.CreateVariety(ctx, v); err != nil {
		return nil, mapCatalogErr("create variety", err, errCropTypeNotFound)
	}
	s.invalidate()
	return v, nil
}

func (s *CatalogService) GetVariety(ctx context.Context, p authz.Principal, id string) (*domain.CropVariety, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	v, err := s.repo.GetVariety(ctx, id)
	if err != nil {
		return nil, mapCatalogErr("get variety", err, errVarietyNotFound)
	}
	return v, nil
}

func (s *CatalogService) UpdateVariety(ctx context.Context, p authz.Principal, id string, in VarietyInput) (*domain.CropVariety, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := validateVariety(in); err != nil {
		return nil, err
	}
	var v *domain.CropVariety
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if v, err = tx.GetVariety(ctx, id); err != nil {
			return mapCatalogErr("get variety", err, errVarietyNotFound)
		}
		if _, err := tx.GetCropType(ctx, in.CropTypeID); err != nil {
			return mapCatalogErr("get crop type", err, errCropTypeNotFound)
		}
		v.CropTypeID = in.CropTypeID
		v.Name = strings.TrimSpace(in.Name)
		v.NameEn, v.NameTh, v.Description = in.NameEn, in.NameTh, in.Description
		v.GrowthPeriodDays = in.GrowthPeriodDays
		v.UpdatedAt = s.now()
		return mapCatalogErr("update variety", tx.UpdateVariety(ctx, v), errVarietyNotFound)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return v, nil
}

// DeleteVariety refuses while any planting cycle references the variety.
func (s *CatalogService) DeleteVariety(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.RequireAdmin(p); err != nil {
		return err
	}
	err := s.repo.DeleteVariety(ctx, id)
	if errors.Is(err, repository.ErrInUse) {
		return apperrors.Conflict(apperrors.CodeVarietyInUse, "Cannot delete variety used by planting cycles")
	}
	if err != nil {
		return mapCatalogErr("delete variety", err, errVarietyNotFound)
	}
	s.invalidate()
	return nil
}

// Standard plans.

func validatePlanTask(in PlanTaskInput) (domain.ActivityType, error) {
	if strings.TrimSpace(in.Title) == "" {
		return "", apperrors.ErrValidation("title", "title is required")
	}
	if in.DayFromStart < 0 {
		return "", apperrors.ErrValidation("dayFromStart", "dayFromStart must not be negative")
	}
	t, err := domain.ParseActivityType(in.ActivityType)
	if err != nil {
		return "", apperrors.ErrValidation("activityType", err.Error())
	}
	return t, nil
}

func (s *CatalogService) newTask(planID string, in PlanTaskInput, typ domain.ActivityType) *domain.PlanTask {
	return &domain.PlanTask{
		ID:             newID(),
		StandardPlanID: planID,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		DayFromStart:   in.DayFromStart,
		ActivityType:   typ,
		CreatedAt:      s.now(),
	}
}

func linkVarieties(ctx context.Context, tx repository.Repository, planID string, ids []string) error {
	for _, id := range ids {
		if err := tx.LinkPlanVariety(ctx, planID, id); err != nil {
			return mapCatalogErr("link variety", err, errVarietyNotFound)
		}
	}
	return nil
}

func (s *CatalogService) CreatePlan(ctx context.Context, p authz.Principal, in PlanInput) (*PlanDetail, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.ErrValidation("name", "name is required")
	}
	types := make([]domain.ActivityType, len(in.Tasks))
	for i, t := range in.Tasks {
		typ, err := validatePlanTask(t)
		if err != nil {
			return nil, err
		}
		types[i] = typ
	}

	var detail *PlanDetail
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		now := s.now()
		plan := &domain.StandardPlan{
			ID:          newID(),
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return mapCatalogErr("create plan", err, errPlanNotFound)
		}
		added, _ := domain.ReconcileIDs(nil, in.VarietyIDs)
		if err := linkVarieties(ctx, tx, plan.ID, added); err != nil {
			return err
		}
		for i, t := range in.Tasks {
			if err := tx.CreatePlanTask(ctx, s.newTask(plan.ID, t, types[i])); err != nil {
				return storeErr("create plan task", err)
			}
		}
		var err error
		detail, err = s.planDetail(ctx, tx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *CatalogService) GetPlan(ctx context.Context, p authz.Principal, id string) (*PlanDetail, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, mapCatalogErr("get plan", err, errPlanNotFound)
	}
	return s.planDetail(ctx, s.repo, plan)
}

// UpdatePlan changes name and description and reconciles the variety links
// in one transaction: removed links are deleted, new ones inserted, and a
// failure leaves the previous links intact.
func (s *CatalogService) UpdatePlan(ctx context.Context, p authz.Principal, id string, in PlanInput) (*PlanDetail, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.ErrValidation("name", "name is required")
	}

	var detail *PlanDetail
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		plan, err := tx.GetPlan(ctx, id)
		if err != nil {
			return mapCatalogErr("get plan", err, errPlanNotFound)
		}
		plan.Name = strings.TrimSpace(in.Name)
		plan.Description = in.Description
		plan.UpdatedAt = s.now()
		if err := tx.UpdatePlan(ctx, plan); err != nil {
			return mapCatalogErr("update plan", err, errPlanNotFound)
		}

		if in.VarietyIDs != nil {
			current, err := tx.PlanVarietyIDs(ctx, id)
			if err != nil {
				return storeErr("list plan varieties", err)
			}
			added, removed := domain.ReconcileIDs(current, in.VarietyIDs)
			for _, vid := range removed {
				if err := tx.UnlinkPlanVariety(ctx, id, vid); err != nil {
					return storeErr("unlink variety", err)
				}
			}
			if err := linkVarieties(ctx, tx, id, added); err != nil {
				return err
			}
		}
		detail, err = s.planDetail(ctx, tx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// DeletePlan removes the plan, its tasks and links. Cycles bound to it keep
// running without a plan.
func (s *CatalogService) DeletePlan(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.RequireAdmin(p); err != nil {
		return err
	}
	return mapCatalogErr("delete plan", s.repo.DeletePlan(ctx, id), errPlanNotFound)
}

// Plan tasks.

func errTaskNotFound() error {
	return apperrors.NotFound(apperrors.CodeTaskNotFound, "Plan task not found")
}

func (s *CatalogService) AddPlanTask(ctx context.Context, p authz.Principal, planID string, in PlanTaskInput) (*domain.PlanTask, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	typ, err := validatePlanTask(in)
	if err != nil {
		return nil, err
	}
	task := s.newTask(planID, in, typ)
	if err := s.repo.CreatePlanTask(ctx, task); err != nil {
		return nil, mapCatalogErr("create plan task", err, errPlanNotFound)
	}
	return task, nil
}

func (s *CatalogService) UpdatePlanTask(ctx context.Context, p authz.Principal, taskID string, in PlanTaskInput) (*domain.PlanTask, error) {
	if err := authz.RequireAdmin(p); err != nil {
		return nil, err
	}
	typ, err := validatePlanTask(in)
	if err != nil {
		return nil, err
	}
	var task *domain.PlanTask
	err = s.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if task, err = tx.GetPlanTask(ctx, taskID); err != nil {
			return mapCatalogErr("get plan task", err, errTaskNotFound)
		}
		task.Title = strings.TrimSpace(in.Title)
		task.Description = in.Description
		task.DayFromStart = in.DayFromStart
		task.ActivityType = typ
		return mapCatalogErr("update plan task", tx.UpdatePlanTask(ctx, task), errTaskNotFound)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *CatalogService) DeletePlanTask(ctx context.Context, p authz.Principal, taskID string) error {
	if err := authz.RequireAdmin(p); err != nil {
		return err
	}
	return mapCatalogErr("delete plan task", s.repo.DeletePlanTask(ctx, taskID), errTaskNotFound)
}
