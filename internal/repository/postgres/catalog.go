package postgres

import (
	"context"
	"time"

	"smartfarm.io/farm/internal/domain"
)

const (
	cropTypeColumns = `id, name, name_en, name_th, description, icon, created_at, updated_at`
	varietyColumns  = `id, crop_type_id, name, name_en, name_th, description, growth_period_days, created_at, updated_at`
	planColumns     = `id, name, description, created_at, updated_at`
	taskColumns     = `id, standard_plan_id, title, description, day_from_start, activity_type, created_at`
)

type cropTypeRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	NameEn      *string   `db:"name_en"`
	NameTh      *string   `db:"name_th"`
	Description *string   `db:"description"`
	Icon        *string   `db:"icon"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r cropTypeRow) toDomain() domain.CropType {
	return domain.CropType{
		ID:          r.ID,
		Name:        r.Name,
		NameEn:      derefString(r.NameEn),
		NameTh:      derefString(r.NameTh),
		Description: derefString(r.Description),
		Icon:        derefString(r.Icon),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type varietyRow struct {
	ID               string    `db:"id"`
	CropTypeID       string    `db:"crop_type_id"`
	Name             string    `db:"name"`
	NameEn           *string   `db:"name_en"`
	NameTh           *string   `db:"name_th"`
	Description      *string   `db:"description"`
	GrowthPeriodDays *int64    `db:"growth_period_days"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r varietyRow) toDomain() domain.CropVariety {
	v := domain.CropVariety{
		ID:          r.ID,
		CropTypeID:  r.CropTypeID,
		Name:        r.Name,
		NameEn:      derefString(r.NameEn),
		NameTh:      derefString(r.NameTh),
		Description: derefString(r.Description),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.GrowthPeriodDays != nil {
		days := int(*r.GrowthPeriodDays)
		v.GrowthPeriodDays = &days
	}
	return v
}

type planRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r planRow) toDomain() domain.StandardPlan {
	return domain.StandardPlan{
		ID:          r.ID,
		Name:        r.Name,
		Description: derefString(r.Description),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type taskRow struct {
	ID             string    `db:"id"`
	StandardPlanID string    `db:"standard_plan_id"`
	Title          string    `db:"title"`
	Description    *string   `db:"description"`
	DayFromStart   int64     `db:"day_from_start"`
	ActivityType   string    `db:"activity_type"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r taskRow) toDomain() domain.PlanTask {
	return domain.PlanTask{
		ID:             r.ID,
		StandardPlanID: r.StandardPlanID,
		Title:          r.Title,
		Description:    derefString(r.Description),
		DayFromStart:   int(r.DayFromStart),
		ActivityType:   domain.ActivityType(r.ActivityType),
		CreatedAt:      r.CreatedAt,
	}
}

func growthParam(days *int) *int64 {
	if days == nil {
		return nil
	}
	v := int64(*days)
	return &v
}

func (s *Store) CreateCropType(ctx context.Context, ct *domain.CropType) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO crop_types (`+cropTypeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ct.ID, ct.Name, nullString(ct.NameEn), nullString(ct.NameTh),
		nullString(ct.Description), nullString(ct.Icon), ct.CreatedAt, ct.UpdatedAt,
	)
	return mapWriteErr("insert crop type", err)
}

func (s *Store) GetCropType(ctx context.Context, id string) (*domain.CropType, error) {
	rows, err := s.q.Query(ctx, `SELECT `+cropTypeColumns+` FROM crop_types WHERE id = $1`, id)
	row, err := collectOne[cropTypeRow](rows, err, "get crop type")
	if err != nil {
		return nil, err
	}
	ct := row.toDomain()
	return &ct, nil
}

func (s *Store) UpdateCropType(ctx context.Context, ct *domain.CropType) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE crop_types
		SET name = $2, name_en = $3, name_th = $4, description = $5, icon = $6, updated_at = $7
		WHERE id = $1`,
		ct.ID, ct.Name, nullString(ct.NameEn), nullString(ct.NameTh),
		nullString(ct.Description), nullString(ct.Icon), ct.UpdatedAt,
	)
	return affectOne("update crop type", tag, err, mapWriteErr)
}

func (s *Store) DeleteCropType(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM crop_types WHERE id = $1`, id)
	return affectOne("delete crop type", tag, err, mapDeleteErr)
}

func (s *Store) ListCropTypes(ctx context.Context) ([]domain.CropType, error) {
	rows, err := s.q.Query(ctx, `SELECT `+cropTypeColumns+` FROM crop_types ORDER BY lower(name), id`)
	got, err := collectAll[cropTypeRow](rows, err, "list crop types")
	if err != nil {
		return nil, err
	}
	out := make([]domain.CropType, len(got))
	for i, r := range got {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) CreateVariety(ctx context.Context, v *domain.CropVariety) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO crop_varieties (`+varietyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.CropTypeID, v.Name, nullString(v.NameEn), nullString(v.NameTh),
		nullString(v.Description), growthParam(v.GrowthPeriodDays), v.CreatedAt, v.UpdatedAt,
	)
	return mapWriteErr("insert variety", err)
}

func (s *Store) GetVariety(ctx context.Context, id string) (*domain.CropVariety, error) {
	rows, err := s.q.Query(ctx, `SELECT `+varietyColumns+` FROM crop_varieties WHERE id = $1`, id)
	row, err := collectOne[varietyRow](rows, err, "get variety")
	if err != nil {
		return nil, err
	}
	v := row.toDomain()
	return &v, nil
}

func (s *Store) UpdateVariety(ctx context.Context, v *domain.CropVariety) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE crop_varieties
		SET crop_type_id = $2, name = $3, name_en = $4, name_th = $5, description = $6,
		    growth_period_days = $7, updated_at = $8
		WHERE id = $1`,
		v.ID, v.CropTypeID, v.Name, nullString(v.NameEn), nullString(v.NameTh),
		nullString(v.Description), growthParam(v.GrowthPeriodDays), v.UpdatedAt,
	)
	return affectOne("update variety", tag, err, mapWriteErr)
}

func (s *Store) DeleteVariety(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM crop_varieties WHERE id = $1`, id)
	return affectOne("delete variety", tag, err, mapDeleteErr)
}

func (s *Store) ListVarieties(ctx context.Context, cropTypeID string) ([]domain.CropVariety, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+varietyColumns+` FROM crop_varieties
		WHERE $1::text = '' OR crop_type_id = $1
		ORDER BY lower(name), id`, cropTypeID)
	got, err := collectAll[varietyRow](rows, err, "list varieties")
	if err != nil {
		return nil, err
	}
	out := make([]domain.CropVariety, len(got))
	for i, r := range got {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) CountVarietiesByCropType(ctx context.Context, cropTypeID string) (int, error) {
	return count(ctx, s.q, "count varieties", `SELECT count(*) FROM crop_varieties WHERE crop_type_id = $1`, cropTypeID)
}

func (s *Store) CreatePlan(ctx context.Context, p *domain.StandardPlan) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO standard_plans (`+planColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, nullString(p.Description), p.CreatedAt, p.UpdatedAt,
	)
	return mapWriteErr("insert plan", err)
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.StandardPlan, error) {
	rows, err := s.q.Query(ctx, `SELECT `+planColumns+` FROM standard_plans WHERE id = $1`, id)
	row, err := collectOne[planRow](rows, err, "get plan")
	if err != nil {
		return nil, err
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *domain.StandardPlan) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE standard_plans SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Name, nullString(p.Description), p.UpdatedAt,
	)
	return affectOne("update plan", tag, err, mapWriteErr)
}

func (s *Store) DeletePlan(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM standard_plans WHERE id = $1`, id)
	return affectOne("delete plan", tag, err, mapDeleteErr)
}

func (s *Store) ListPlans(ctx context.Context) ([]domain.StandardPlan, error) {
	rows, err := s.q.Query(ctx, `SELECT `+planColumns+` FROM standard_plans ORDER BY created_at DESC, id DESC`)
	got, err := collectAll[planRow](rows, err, "list plans")
	if err != nil {
		return nil, err
	}
	out := make([]domain.StandardPlan, len(got))
	for i, r := range got {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) FirstPlanForVariety(ctx context.Context, varietyID string) (*domain.StandardPlan, error) {
	rows, err := s.q.Query(ctx, `
		SELECT sp.id, sp.name, sp.description, sp.created_at, sp.updated_at
		FROM standard_plans sp
		JOIN plan_varieties pv ON pv.standard_plan_id = sp.id
		WHERE pv.crop_variety_id = $1
		ORDER BY pv.linked_at, sp.id
		LIMIT 1`, varietyID)
	row, err := collectOne[planRow](rows, err, "first plan for variety")
	if err != nil {
		return nil, err
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) PlanVarietyIDs(ctx context.Context, planID string) ([]string, error) {
	rows, err := s.q.Query(ctx, `
		SELECT crop_variety_id FROM plan_varieties
		WHERE standard_plan_id = $1 ORDER BY linked_at, crop_variety_id`, planID)
	if err != nil {
		return nil, mapReadErr("plan variety ids", err)
	}
	ids, err := collectStrings(rows)
	if err != nil {
		return nil, mapReadErr("plan variety ids", err)
	}
	return ids, nil
}

func (s *Store) LinkPlanVariety(ctx context.Context, planID, varietyID string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO plan_varieties (standard_plan_id, crop_variety_id, linked_at)
		VALUES ($1, $2, clock_timestamp())`, planID, varietyID)
	return mapWriteErr("link plan variety", err)
}

func (s *Store) UnlinkPlanVariety(ctx context.Context, planID, varietyID string) error {
	_, err := s.q.Exec(ctx, `
		DELETE FROM plan_varieties WHERE standard_plan_id = $1 AND crop_variety_id = $2`, planID, varietyID)
	return mapDeleteErr("unlink plan variety", err)
}

func (s *Store) CreatePlanTask(ctx context.Context, t *domain.PlanTask) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO plan_tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.StandardPlanID, t.Title, nullString(t.Description),
		int64(t.DayFromStart), string(t.ActivityType), t.CreatedAt,
	)
	return mapWriteErr("insert plan task", err)
}

func (s *Store) GetPlanTask(ctx context.Context, id string) (*domain.PlanTask, error) {
	rows, err := s.q.Query(ctx, `SELECT `+taskColumns+` FROM plan_tasks WHERE id = $1`, id)
	row, err := collectOne[taskRow](rows, err, "get plan task")
	if err != nil {
		return nil, err
	}
	t := row.toDomain()
	return &t, nil
}

func (s *Store) UpdatePlanTask(ctx context.Context, t *domain.PlanTask) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE plan_tasks
		SET title = $2, description = $3, day_from_start = $4, activity_type = $5
		WHERE id = $1`,
		t.ID, t.Title, nullString(t.Description), int64(t.DayFromStart), string(t.ActivityType),
	)
	return affectOne("update plan task", tag, err, mapWriteErr)
}

func (s *Store) DeletePlanTask(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM plan_tasks WHERE id = $1`, id)
	return affectOne("delete plan task", tag, err, mapDeleteErr)
}

func (s *Store) ListPlanTasks(ctx context.Context, planID string) ([]domain.PlanTask, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+taskColumns+` FROM plan_tasks
		WHERE standard_plan_id = $1 ORDER BY day_from_start, created_at, id`, planID)
	got, err := collectAll[taskRow](rows, err, "list plan tasks")
	if err != nil {
		return nil, err
	}
	out := make([]domain.PlanTask, len(got))
	for i, r := range got {
		out[i] = r.toDomain()
	}
	return out, nil
}
