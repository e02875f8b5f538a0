package memory

import (
	"context"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

type plotRow struct {
	domain.Plot
	seq int64
}

func (s *Store) CreatePlot(_ context.Context, p *domain.Plot) error {
	defer s.lock()()
	if _, ok := s.st.users[p.UserID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.st.plots[p.ID]; ok {
		return repository.ErrDuplicate
	}
	s.st.plots[p.ID] = plotRow{Plot: *p, seq: s.st.next()}
	return nil
}

func (s *Store) GetPlot(_ context.Context, id string) (*domain.Plot, error) {
	defer s.rlock()()
	row, ok := s.st.plots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := row.Plot
	return &p, nil
}

func (s *Store) UpdatePlot(_ context.Context, p *domain.Plot) error {
	defer s.lock()()
	row, ok := s.st.plots[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *p
	// Owner is immutable.
	updated.UserID = row.UserID
	updated.CreatedAt = row.CreatedAt
	s.st.plots[p.ID] = plotRow{Plot: updated, seq: row.seq}
	return nil
}

func (s *Store) DeletePlot(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.plots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.plots, id)
	for cid, c := range s.st.cycles {
		if c.PlotID == id {
			s.deleteCycleLocked(cid)
		}
	}
	return nil
}

func (s *Store) deleteCycleLocked(id string) {
	delete(s.st.cycles, id)
	for aid, a := range s.st.activities {
		if a.CycleID == id {
			delete(s.st.activities, aid)
		}
	}
}

func (s *Store) ListPlots(_ context.Context, userID string) ([]domain.Plot, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.plots,
		func(r plotRow) bool { return userID == "" || r.UserID == userID },
		func(a, b plotRow) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.seq > b.seq
		},
	)
	out := make([]domain.Plot, len(rows))
	for i, r := range rows {
		out[i] = r.Plot
	}
	return out, nil
}

func (s *Store) CountPlots(context.Context) (int, error) {
	defer s.rlock()()
	return len(s.st.plots), nil
}
