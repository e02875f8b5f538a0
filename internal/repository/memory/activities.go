package memory

import (
	"context"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

type activityRow struct {
	domain.Activity
	seq int64
}

func copyActivity(a domain.Activity) domain.Activity {
	a.Images = append([]string{}, a.Images...)
	return a
}

func matchActivity(f repository.ActivityFilter, a activityRow) bool {
	if len(f.CycleIDs) > 0 && !containsString(f.CycleIDs, a.CycleID) {
		return false
	}
	if f.From != nil && a.ActivityDate.Before(*f.From) {
		return false
	}
	if f.To != nil && a.ActivityDate.After(*f.To) {
		return false
	}
	return true
}

func (s *Store) CreateActivity(_ context.Context, a *domain.Activity) error {
	defer s.lock()()
	if _, ok := s.st.cycles[a.CycleID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.st.activities[a.ID]; ok {
		return repository.ErrDuplicate
	}
	s.st.activities[a.ID] = activityRow{Activity: copyActivity(*a), seq: s.st.next()}
	return nil
}

func (s *Store) GetActivity(_ context.Context, id string) (*domain.Activity, error) {
	defer s.rlock()()
	row, ok := s.st.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := copyActivity(row.Activity)
	return &a, nil
}

func (s *Store) UpdateActivity(_ context.Context, a *domain.Activity) error {
	defer s.lock()()
	row, ok := s.st.activities[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := copyActivity(*a)
	updated.CycleID = row.CycleID
	updated.CreatedAt = row.CreatedAt
	s.st.activities[a.ID] = activityRow{Activity: updated, seq: row.seq}
	return nil
}

func (s *Store) DeleteActivity(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.activities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.activities, id)
	return nil
}

func (s *Store) ListActivities(_ context.Context, f repository.ActivityFilter) ([]domain.Activity, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.activities,
		func(r activityRow) bool { return matchActivity(f, r) },
		func(a, b activityRow) bool {
			if !a.ActivityDate.Equal(b.ActivityDate) {
				return a.ActivityDate.After(b.ActivityDate)
			}
			return a.seq > b.seq
		},
	)
	out := make([]domain.Activity, len(rows))
	for i, r := range rows {
		out[i] = copyActivity(r.Activity)
	}
	return out, nil
}

func (s *Store) CountActivities(context.Context) (int, error) {
	defer s.rlock()()
	return len(s.st.activities), nil
}

func (s *Store) ReferencedImages(_ context.Context, urls []string) ([]string, error) {
	defer s.rlock()()
	want := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		want[u] = struct{}{}
	}
	var out []string
	for _, row := range s.st.activities {
		for _, u := range row.Images {
			if _, ok := want[u]; ok {
				out = append(out, u)
				delete(want, u)
			}
		}
	}
	return out, nil
}
