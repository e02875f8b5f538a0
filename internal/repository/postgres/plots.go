package postgres

import (
	"context"
	"time"

	"smartfarm.io/farm/internal/domain"
)

const plotColumns = `id, user_id, name, size_rai, size_ngan, size_wa, latitude, longitude, address, created_at, updated_at`

type plotRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	SizeRai   *float64  `db:"size_rai"`
	SizeNgan  *float64  `db:"size_ngan"`
	SizeWa    *float64  `db:"size_wa"`
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
	Address   *string   `db:"address"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r plotRow) toDomain() domain.Plot {
	return domain.Plot{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		SizeRai:   r.SizeRai,
		SizeNgan:  r.SizeNgan,
		SizeWa:    r.SizeWa,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Address:   derefString(r.Address),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *Store) CreatePlot(ctx context.Context, p *domain.Plot) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO plots (`+plotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.UserID, p.Name, p.SizeRai, p.SizeNgan, p.SizeWa,
		p.Latitude, p.Longitude, nullString(p.Address), p.CreatedAt, p.UpdatedAt,
	)
	return mapWriteErr("insert plot", err)
}

func (s *Store) GetPlot(ctx context.Context, id string) (*domain.Plot, error) {
	rows, err := s.q.Query(ctx, `SELECT `+plotColumns+` FROM plots WHERE id = $1`, id)
	row, err := collectOne[plotRow](rows, err, "get plot")
	if err != nil {
		return nil, err
	}
	p := row.toDomain()
	return &p, nil
}

// UpdatePlot never touches user_id; the owner is fixed at creation.
func (s *Store) UpdatePlot(ctx context.Context, p *domain.Plot) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE plots
		SET name = $2, size_rai = $3, size_ngan = $4, size_wa = $5,
		    latitude = $6, longitude = $7, address = $8, updated_at = $9
		WHERE id = $1`,
		p.ID, p.Name, p.SizeRai, p.SizeNgan, p.SizeWa,
		p.Latitude, p.Longitude, nullString(p.Address), p.UpdatedAt,
	)
	return affectOne("update plot", tag, err, mapWriteErr)
}

func (s *Store) DeletePlot(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM plots WHERE id = $1`, id)
	return affectOne("delete plot", tag, err, mapDeleteErr)
}

func (s *Store) ListPlots(ctx context.Context, userID string) ([]domain.Plot, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+plotColumns+` FROM plots
		WHERE $1::text = '' OR user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
	got, err := collectAll[plotRow](rows, err, "list plots")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Plot, len(got))
	for i, r := range got {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) CountPlots(ctx context.Context) (int, error) {
	return count(ctx, s.q, "count plots", `SELECT count(*) FROM plots`)
}
