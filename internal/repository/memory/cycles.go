package memory

import (
	"context"
	"time"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

type cycleRow struct {
	domain.PlantingCycle
	seq int64
}

func matchCycle(f repository.CycleFilter, c cycleRow) bool {
	if len(f.PlotIDs) > 0 && !containsString(f.PlotIDs, c.PlotID) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, st := range f.Statuses {
			if c.Status == st {
				return true
			}
		}
		return false
	}
	return true
}

func (s *Store) CreateCycle(_ context.Context, c *domain.PlantingCycle) error {
	defer s.lock()()
	if _, ok := s.st.plots[c.PlotID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.st.varieties[c.CropVarietyID]; !ok {
		return repository.ErrNotFound
	}
	if c.StandardPlanID != nil {
		if _, ok := s.st.plans[*c.StandardPlanID]; !ok {
			return repository.ErrNotFound
		}
	}
	if c.Status == domain.CycleActive {
		for _, existing := range s.st.cycles {
			if existing.PlotID == c.PlotID && existing.Status == domain.CycleActive {
				return repository.ErrActiveCycleExists
			}
		}
	}
	s.st.cycles[c.ID] = cycleRow{PlantingCycle: *c, seq: s.st.next()}
	return nil
}

func (s *Store) GetCycle(_ context.Context, id string) (*domain.PlantingCycle, error) {
	defer s.rlock()()
	row, ok := s.st.cycles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := row.PlantingCycle
	return &c, nil
}

func (s *Store) ActiveCycle(_ context.Context, plotID string) (*domain.PlantingCycle, error) {
	defer s.rlock()()
	for _, row := range s.st.cycles {
		if row.PlotID == plotID && row.Status == domain.CycleActive {
			c := row.PlantingCycle
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListCycles(_ context.Context, f repository.CycleFilter) ([]domain.PlantingCycle, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.cycles,
		func(r cycleRow) bool { return matchCycle(f, r) },
		func(a, b cycleRow) bool {
			if !a.StartDate.Equal(b.StartDate) {
				return a.StartDate.After(b.StartDate)
			}
			return a.seq > b.seq
		},
	)
	out := make([]domain.PlantingCycle, len(rows))
	for i, r := range rows {
		out[i] = r.PlantingCycle
	}
	return out, nil
}

func (s *Store) CountCycles(_ context.Context, f repository.CycleFilter) (int, error) {
	defer s.rlock()()
	n := 0
	for _, c := range s.st.cycles {
		if matchCycle(f, c) {
			n++
		}
	}
	return n, nil
}

func (s *Store) TransitionCycle(_ context.Context, id string, to domain.CycleStatus, endDate, updatedAt time.Time) (*domain.PlantingCycle, error) {
	defer s.lock()()
	row, ok := s.st.cycles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !row.Status.CanTransitionTo(to) {
		return nil, repository.ErrNotActive
	}
	end := endDate
	row.Status = to
	row.EndDate = &end
	row.UpdatedAt = updatedAt
	s.st.cycles[id] = row
	c := row.PlantingCycle
	return &c, nil
}
