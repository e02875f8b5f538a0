package memory

import (
	"context"
	"sort"
	"strings"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/repository"
)

type cropTypeRow struct {
	domain.CropType
}

type varietyRow struct {
	domain.CropVariety
	growthDays int
	hasGrowth  bool
}

func newVarietyRow(v domain.CropVariety) varietyRow {
	row := varietyRow{CropVariety: v}
	if v.GrowthPeriodDays != nil {
		row.growthDays, row.hasGrowth = *v.GrowthPeriodDays, true
	}
	row.GrowthPeriodDays = nil
	return row
}

func (r varietyRow) variety() domain.CropVariety {
	v := r.CropVariety
	if r.hasGrowth {
		days := r.growthDays
		v.GrowthPeriodDays = &days
	}
	return v
}

type planRow struct {
	domain.StandardPlan
	seq int64
}

type taskRow struct {
	domain.PlanTask
	seq int64
}

func byName(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

func (s *Store) CreateCropType(_ context.Context, ct *domain.CropType) error {
	defer s.lock()()
	if s.cropTypeNameTaken(ct.Name, "") {
		return repository.ErrDuplicate
	}
	s.st.cropTypes[ct.ID] = cropTypeRow{CropType: *ct}
	return nil
}

func (s *Store) cropTypeNameTaken(name, exceptID string) bool {
	for id, ct := range s.st.cropTypes {
		if id != exceptID && ct.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) GetCropType(_ context.Context, id string) (*domain.CropType, error) {
	defer s.rlock()()
	row, ok := s.st.cropTypes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ct := row.CropType
	return &ct, nil
}

func (s *Store) UpdateCropType(_ context.Context, ct *domain.CropType) error {
	defer s.lock()()
	row, ok := s.st.cropTypes[ct.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.cropTypeNameTaken(ct.Name, ct.ID) {
		return repository.ErrDuplicate
	}
	updated := *ct
	updated.CreatedAt = row.CreatedAt
	s.st.cropTypes[ct.ID] = cropTypeRow{CropType: updated}
	return nil
}

func (s *Store) DeleteCropType(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.cropTypes[id]; !ok {
		return repository.ErrNotFound
	}
	for _, v := range s.st.varieties {
		if v.CropTypeID == id {
			return repository.ErrInUse
		}
	}
	delete(s.st.cropTypes, id)
	return nil
}

func (s *Store) ListCropTypes(context.Context) ([]domain.CropType, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.cropTypes, nil, func(a, b cropTypeRow) bool { return byName(a.Name, b.Name) })
	out := make([]domain.CropType, len(rows))
	for i, r := range rows {
		out[i] = r.CropType
	}
	return out, nil
}

func (s *Store) varietyNameTaken(cropTypeID, name, exceptID string) bool {
	for id, v := range s.st.varieties {
		if id != exceptID && v.CropTypeID == cropTypeID && v.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) CreateVariety(_ context.Context, v *domain.CropVariety) error {
	defer s.lock()()
	if _, ok := s.st.cropTypes[v.CropTypeID]; !ok {
		return repository.ErrNotFound
	}
	if s.varietyNameTaken(v.CropTypeID, v.Name, "") {
		return repository.ErrDuplicate
	}
	s.st.varieties[v.ID] = newVarietyRow(*v)
	return nil
}

func (s *Store) GetVariety(_ context.Context, id string) (*domain.CropVariety, error) {
	defer s.rlock()()
	row, ok := s.st.varieties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := row.variety()
	return &v, nil
}

func (s *Store) UpdateVariety(_ context.Context, v *domain.CropVariety) error {
	defer s.lock()()
	row, ok := s.st.varieties[v.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.st.cropTypes[v.CropTypeID]; !ok {
		return repository.ErrNotFound
	}
	if s.varietyNameTaken(v.CropTypeID, v.Name, v.ID) {
		return repository.ErrDuplicate
	}
	updated := *v
	updated.CreatedAt = row.CreatedAt
	s.st.varieties[v.ID] = newVarietyRow(updated)
	return nil
}

func (s *Store) DeleteVariety(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.varieties[id]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range s.st.cycles {
		if c.CropVarietyID == id {
			return repository.ErrInUse
		}
	}
	delete(s.st.varieties, id)
	for link := range s.st.planLinks {
		if link.varietyID == id {
			delete(s.st.planLinks, link)
		}
	}
	return nil
}

func (s *Store) ListVarieties(_ context.Context, cropTypeID string) ([]domain.CropVariety, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.varieties,
		func(r varietyRow) bool { return cropTypeID == "" || r.CropTypeID == cropTypeID },
		func(a, b varietyRow) bool { return byName(a.Name, b.Name) },
	)
	out := make([]domain.CropVariety, len(rows))
	for i, r := range rows {
		out[i] = r.variety()
	}
	return out, nil
}

func (s *Store) CountVarietiesByCropType(_ context.Context, cropTypeID string) (int, error) {
	defer s.rlock()()
	n := 0
	for _, v := range s.st.varieties {
		if v.CropTypeID == cropTypeID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreatePlan(_ context.Context, p *domain.StandardPlan) error {
	defer s.lock()()
	if _, ok := s.st.plans[p.ID]; ok {
		return repository.ErrDuplicate
	}
	s.st.plans[p.ID] = planRow{StandardPlan: *p, seq: s.st.next()}
	return nil
}

func (s *Store) GetPlan(_ context.Context, id string) (*domain.StandardPlan, error) {
	defer s.rlock()()
	row, ok := s.st.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := row.StandardPlan
	return &p, nil
}

func (s *Store) UpdatePlan(_ context.Context, p *domain.StandardPlan) error {
	defer s.lock()()
	row, ok := s.st.plans[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *p
	updated.CreatedAt = row.CreatedAt
	s.st.plans[p.ID] = planRow{StandardPlan: updated, seq: row.seq}
	return nil
}

func (s *Store) DeletePlan(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.plans, id)
	for tid, t := range s.st.tasks {
		if t.StandardPlanID == id {
			delete(s.st.tasks, tid)
		}
	}
	for link := range s.st.planLinks {
		if link.planID == id {
			delete(s.st.planLinks, link)
		}
	}
	for cid, c := range s.st.cycles {
		if c.StandardPlanID != nil && *c.StandardPlanID == id {
			c.StandardPlanID = nil
			s.st.cycles[cid] = c
		}
	}
	return nil
}

func (s *Store) ListPlans(context.Context) ([]domain.StandardPlan, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.plans, nil, func(a, b planRow) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.StandardPlan, len(rows))
	for i, r := range rows {
		out[i] = r.StandardPlan
	}
	return out, nil
}

func (s *Store) FirstPlanForVariety(_ context.Context, varietyID string) (*domain.StandardPlan, error) {
	defer s.rlock()()
	var (
		first   *domain.StandardPlan
		firstAt int64
	)
	for link, at := range s.st.planLinks {
		if link.varietyID != varietyID {
			continue
		}
		row, ok := s.st.plans[link.planID]
		if !ok {
			continue
		}
		if first == nil || at < firstAt {
			p := row.StandardPlan
			first, firstAt = &p, at
		}
	}
	if first == nil {
		return nil, repository.ErrNotFound
	}
	return first, nil
}

func (s *Store) PlanVarietyIDs(_ context.Context, planID string) ([]string, error) {
	defer s.rlock()()
	type linked struct {
		id string
		at int64
	}
	var links []linked
	for link, at := range s.st.planLinks {
		if link.planID == planID {
			links = append(links, linked{id: link.varietyID, at: at})
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].at < links[j].at })
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.id
	}
	return out, nil
}

func (s *Store) LinkPlanVariety(_ context.Context, planID, varietyID string) error {
	defer s.lock()()
	if _, ok := s.st.plans[planID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.st.varieties[varietyID]; !ok {
		return repository.ErrNotFound
	}
	key := planVariety{planID: planID, varietyID: varietyID}
	if _, ok := s.st.planLinks[key]; ok {
		return repository.ErrDuplicate
	}
	s.st.planLinks[key] = s.st.next()
	return nil
}

func (s *Store) UnlinkPlanVariety(_ context.Context, planID, varietyID string) error {
	defer s.lock()()
	delete(s.st.planLinks, planVariety{planID: planID, varietyID: varietyID})
	return nil
}

func (s *Store) CreatePlanTask(_ context.Context, t *domain.PlanTask) error {
	defer s.lock()()
	if _, ok := s.st.plans[t.StandardPlanID]; !ok {
		return repository.ErrNotFound
	}
	s.st.tasks[t.ID] = taskRow{PlanTask: *t, seq: s.st.next()}
	return nil
}

func (s *Store) GetPlanTask(_ context.Context, id string) (*domain.PlanTask, error) {
	defer s.rlock()()
	row, ok := s.st.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := row.PlanTask
	return &t, nil
}

func (s *Store) UpdatePlanTask(_ context.Context, t *domain.PlanTask) error {
	defer s.lock()()
	row, ok := s.st.tasks[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *t
	updated.StandardPlanID = row.StandardPlanID
	updated.CreatedAt = row.CreatedAt
	s.st.tasks[t.ID] = taskRow{PlanTask: updated, seq: row.seq}
	return nil
}

func (s *Store) DeletePlanTask(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.tasks, id)
	return nil
}

func (s *Store) ListPlanTasks(_ context.Context, planID string) ([]domain.PlanTask, error) {
	defer s.rlock()()
	rows := sortedValues(s.st.tasks,
		func(r taskRow) bool { return r.StandardPlanID == planID },
		func(a, b taskRow) bool {
			if a.DayFromStart != b.DayFromStart {
				return a.DayFromStart < b.DayFromStart
			}
			return a.seq < b.seq
		},
	)
	out := make([]domain.PlanTask, len(rows))
	for i, r := range rows {
		out[i] = r.PlanTask
	}
	return out, nil
}
