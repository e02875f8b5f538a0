package postgres

import (
	"context"
	"errors"
	"time"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

const cycleColumns = `id, plot_id, crop_variety_id, standard_plan_id, start_date, end_date, status, created_at, updated_at`

type cycleRow struct {
	ID             string     `db:"id"`
	PlotID         string     `db:"plot_id"`
	CropVarietyID  string     `db:"crop_variety_id"`
	StandardPlanID *string    `db:"standard_plan_id"`
	StartDate      time.Time  `db:"start_date"`
	EndDate        *time.Time `db:"end_date"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r cycleRow) toDomain() domain.PlantingCycle {
	return domain.PlantingCycle{
		ID:             r.ID,
		PlotID:         r.PlotID,
		CropVarietyID:  r.CropVarietyID,
		StandardPlanID: r.StandardPlanID,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Status:         domain.CycleStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func statusStrings(in []domain.CycleStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// cycleWhere matches repository.CycleFilter; empty arrays match everything.
const cycleWhere = `
	(cardinality($1::text[]) = 0 OR plot_id = ANY($1))
	AND (cardinality($2::text[]) = 0 OR status = ANY($2))`

func cycleArgs(f repository.CycleFilter) []any {
	plotIDs := f.PlotIDs
	if plotIDs == nil {
		plotIDs = []string{}
	}
	return []any{plotIDs, statusStrings(f.Statuses)}
}

func (s *Store) CreateCycle(ctx context.Context, c *domain.PlantingCycle) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO planting_cycles (`+cycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.PlotID, c.CropVarietyID, c.StandardPlanID, c.StartDate, c.EndDate,
		string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	return mapWriteErr("insert cycle", err)
}

func (s *Store) GetCycle(ctx context.Context, id string) (*domain.PlantingCycle, error) {
	rows, err := s.q.Query(ctx, `SELECT `+cycleColumns+` FROM planting_cycles WHERE id = $1`, id)
	row, err := collectOne[cycleRow](rows, err, "get cycle")
	if err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

func (s *Store) ActiveCycle(ctx context.Context, plotID string) (*domain.PlantingCycle, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+cycleColumns+` FROM planting_cycles
		WHERE plot_id = $1 AND status = 'ACTIVE'`, plotID)
	row, err := collectOne[cycleRow](rows, err, "get active cycle")
	if err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

func (s *Store) ListCycles(ctx context.Context, f repository.CycleFilter) ([]domain.PlantingCycle, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+cycleColumns+` FROM planting_cycles
		WHERE `+cycleWhere+`
		ORDER BY start_date DESC, created_at DESC, id DESC`, cycleArgs(f)...)
	got, err := collectAll[cycleRow](rows, err, "list cycles")
	if err != nil {
		return nil, err
	}
	out := make([]domain.PlantingCycle, len(got))
	for i, r := range got {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) CountCycles(ctx context.Context, f repository.CycleFilter) (int, error) {
	return count(ctx, s.q, "count cycles", `SELECT count(*) FROM planting_cycles WHERE `+cycleWhere, cycleArgs(f)...)
}

// TransitionCycle is a conditional update on status = 'ACTIVE'. A miss is
// disambiguated with a second read so callers can tell "gone" from "closed".
func (s *Store) TransitionCycle(ctx context.Context, id string, to domain.CycleStatus, endDate, updatedAt time.Time) (*domain.PlantingCycle, error) {
	if !domain.CycleActive.CanTransitionTo(to) {
		return nil, repository.ErrNotActive
	}
	rows, err := s.q.Query(ctx, `
		UPDATE planting_cycles
		SET status = $2, end_date = $3, updated_at = $4
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING `+cycleColumns,
		id, string(to), endDate, updatedAt,
	)
	row, err := collectOne[cycleRow](rows, err, "transition cycle")
	if err == nil {
		c := row.toDomain()
		return &c, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, getErr := s.GetCycle(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrNotActive
}
