package service

import (
	"context"
	"time"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/jobs"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/metrics"
	"smartfarm.io/farm/internal/repository"
)

// ActivityInput is a new activity. Nil fields take their defaults: now for
// the date, 0 for money, no images.
type ActivityInput struct {
	Type         string
	Description  string
	ActivityDate *time.Time
	Cost         *float64
	Income       *float64
	Images       []string
}

// ActivityPatch changes the non-nil fields of an activity.
type ActivityPatch struct {
	Type         *string
	Description  *string
	ActivityDate *time.Time
	Cost         *float64
	Income       *float64
	Images       *[]string
}

// ActivityService is the activity ledger of a cycle.
//
// Adding requires an ACTIVE cycle. Editing and deleting only require
// ownership, so records of closed cycles can still be corrected.
type ActivityService struct {
	repo    repository.Repository
	guard   *authz.Guard
	cleanup jobs.ImageCleanup
	now     func() time.Time
}

// NewActivityService creates an ActivityService. cleanup receives the URLs
// of images dropped by edits and deletes.
func NewActivityService(repo repository.Repository, cleanup jobs.ImageCleanup) *ActivityService {
	return &ActivityService{repo: repo, guard: authz.NewGuard(repo), cleanup: cleanup, now: utcNow}
}

func parseActivityType(raw string) (domain.ActivityType, error) {
	t, err := domain.ParseActivityType(raw)
	if err != nil {
		return "", apperrors.ErrValidation("type", err.Error())
	}
	return t, nil
}

// AddActivity appends an activity to an ACTIVE cycle.
func (s *ActivityService) AddActivity(ctx context.Context, p authz.Principal, cycleID string, in ActivityInput) (*domain.Activity, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	typ, err := parseActivityType(in.Type)
	if err != nil {
		return nil, err
	}
	if err := nonNegative("cost", in.Cost); err != nil {
		return nil, err
	}
	if err := nonNegative("income", in.Income); err != nil {
		return nil, err
	}

	var created domain.Activity
	err = s.repo.InTx(ctx, func(tx repository.Repository) error {
		cycle, _, err := s.guard.With(tx).Cycle(ctx, p, cycleID)
		if err != nil {
			return err
		}
		if !cycle.IsActive() {
			return apperrors.ErrCycleNotActive()
		}

		now := s.now()
		created = domain.Activity{
			ID:           newID(),
			CycleID:      cycleID,
			Type:         typ,
			Description:  in.Description,
			ActivityDate: now,
			Images:       []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if in.ActivityDate != nil {
			created.ActivityDate = in.ActivityDate.UTC()
		}
		if in.Cost != nil {
			created.Cost = *in.Cost
		}
		if in.Income != nil {
			created.Income = *in.Income
		}
		if in.Images != nil {
			created.Images = append([]string{}, in.Images...)
		}
		return storeErr("create activity", tx.CreateActivity(ctx, &created))
	})
	if err != nil {
		return nil, err
	}
	metrics.ActivitiesRecorded.WithLabelValues(string(created.Type)).Inc()
	return &created, nil
}

// UpdateActivity edits an activity regardless of its cycle's status. Images
// removed from the list and listed by no other activity are scheduled for
// deletion.
func (s *ActivityService) UpdateActivity(ctx context.Context, p authz.Principal, activityID string, patch ActivityPatch) (*domain.Activity, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if err := nonNegative("cost", patch.Cost); err != nil {
		return nil, err
	}
	if err := nonNegative("income", patch.Income); err != nil {
		return nil, err
	}
	var typ domain.ActivityType
	if patch.Type != nil {
		t, err := parseActivityType(*patch.Type)
		if err != nil {
			return nil, err
		}
		typ = t
	}

	var updated *domain.Activity
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		a, _, err := s.guard.With(tx).Activity(ctx, p, activityID)
		if err != nil {
			return err
		}

		var dropped []string
		if patch.Type != nil {
			a.Type = typ
		}
		if patch.Description != nil {
			a.Description = *patch.Description
		}
		if patch.ActivityDate != nil {
			a.ActivityDate = patch.ActivityDate.UTC()
		}
		if patch.Cost != nil {
			a.Cost = *patch.Cost
		}
		if patch.Income != nil {
			a.Income = *patch.Income
		}
		if patch.Images != nil {
			dropped = removedImages(a.Images, *patch.Images)
			a.Images = append([]string{}, (*patch.Images)...)
		}
		a.UpdatedAt = s.now()

		if err := tx.UpdateActivity(ctx, a); err != nil {
			return storeErr("update activity", err)
		}
		updated = a
		return scheduleOrphans(ctx, tx, s.cleanup, dropped)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteActivity removes an activity and schedules its images that no other
// activity lists for deletion.
func (s *ActivityService) DeleteActivity(ctx context.Context, p authz.Principal, activityID string) error {
	return s.repo.InTx(ctx, func(tx repository.Repository) error {
		a, _, err := s.guard.With(tx).Activity(ctx, p, activityID)
		if err != nil {
			return err
		}
		if err := tx.DeleteActivity(ctx, activityID); err != nil {
			return storeErr("delete activity", err)
		}
		return scheduleOrphans(ctx, tx, s.cleanup, a.Images)
	})
}

// ListActivities returns a cycle's activities, newest activityDate first.
func (s *ActivityService) ListActivities(ctx context.Context, p authz.Principal, cycleID string) ([]domain.Activity, error) {
	if _, _, err := s.guard.Cycle(ctx, p, cycleID); err != nil {
		return nil, err
	}
	activities, err := cycleActivities(ctx, s.repo, cycleID)
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	return activities, nil
}

func removedImages(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var out []string
	for _, u := range before {
		if _, ok := keep[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

// scheduleOrphans hands cleanup the urls no remaining activity lists. It
// must run after the rows dropping them have been written through tx.
func scheduleOrphans(ctx context.Context, tx repository.Repository, cleanup jobs.ImageCleanup, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	referenced, err := tx.ReferencedImages(ctx, urls)
	if err != nil {
		return storeErr("find referenced images", err)
	}
	skip := make(map[string]struct{}, len(referenced))
	for _, u := range referenced {
		skip[u] = struct{}{}
	}
	orphans := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := skip[u]; ok {
			continue
		}
		skip[u] = struct{}{}
		orphans = append(orphans, u)
	}
	if len(orphans) == 0 {
		return nil
	}
	return storeErr("schedule image cleanup", cleanup.Schedule(ctx, tx, orphans))
}
