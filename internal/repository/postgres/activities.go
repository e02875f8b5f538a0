package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

const activityColumns = `id, cycle_id, type, description, activity_date, cost, income, images, created_at, updated_at`

type activityRow struct {
	ID           string    `db:"id"`
	CycleID      string    `db:"cycle_id"`
	Type         string    `db:"type"`
	Description  string    `db:"description"`
	ActivityDate time.Time `db:"activity_date"`
	Cost         float64   `db:"cost"`
	Income       float64   `db:"income"`
	Images       []byte    `db:"images"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r activityRow) toDomain() (domain.Activity, error) {
	a := domain.Activity{
		ID:           r.ID,
		CycleID:      r.CycleID,
		Type:         domain.ActivityType(r.Type),
		Description:  r.Description,
		ActivityDate: r.ActivityDate,
		Cost:         r.Cost,
		Income:       r.Income,
		Images:       []string{},
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Images) > 0 {
		if err := json.Unmarshal(r.Images, &a.Images); err != nil {
			return domain.Activity{}, fmt.Errorf("decode images of activity %s: %w", r.ID, err)
		}
		if a.Images == nil {
			a.Images = []string{}
		}
	}
	return a, nil
}

func imagesParam(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

func (s *Store) CreateActivity(ctx context.Context, a *domain.Activity) error {
	images, err := imagesParam(a.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.CycleID, string(a.Type), a.Description, a.ActivityDate,
		a.Cost, a.Income, images, a.CreatedAt, a.UpdatedAt,
	)
	return mapWriteErr("insert activity", err)
}

func (s *Store) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	rows, err := s.q.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
	row, err := collectOne[activityRow](rows, err, "get activity")
	if err != nil {
		return nil, err
	}
	a, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateActivity(ctx context.Context, a *domain.Activity) error {
	images, err := imagesParam(a.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE activities
		SET type = $2, description = $3, activity_date = $4, cost = $5, income = $6,
		    images = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, string(a.Type), a.Description, a.ActivityDate, a.Cost, a.Income, images, a.UpdatedAt,
	)
	return affectOne("update activity", tag, err, mapWriteErr)
}

func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	return affectOne("delete activity", tag, err, mapDeleteErr)
}

func (s *Store) ListActivities(ctx context.Context, f repository.ActivityFilter) ([]domain.Activity, error) {
	cycleIDs := f.CycleIDs
	if cycleIDs == nil {
		cycleIDs = []string{}
	}
	rows, err := s.q.Query(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE (cardinality($1::text[]) = 0 OR cycle_id = ANY($1))
		  AND ($2::timestamptz IS NULL OR activity_date >= $2)
		  AND ($3::timestamptz IS NULL OR activity_date <= $3)
		ORDER BY activity_date DESC, created_at DESC, id DESC`,
		cycleIDs, f.From, f.To,
	)
	got, err := collectAll[activityRow](rows, err, "list activities")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(got))
	for _, r := range got {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) CountActivities(ctx context.Context) (int, error) {
	return count(ctx, s.q, "count activities", `SELECT count(*) FROM activities`)
}

func (s *Store) ReferencedImages(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	rows, err := s.q.Query(ctx, `
		SELECT DISTINCT img FROM activities, jsonb_array_elements_text(images) AS img
		WHERE img = ANY($1::text[])`, urls)
	if err != nil {
		return nil, mapReadErr("referenced images", err)
	}
	got, err := collectStrings(rows)
	if err != nil {
		return nil, mapReadErr("referenced images", err)
	}
	return got, nil
}
