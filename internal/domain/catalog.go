package domain

import "time"

// CropType groups varieties, e.g. Rice or Vegetables.
type CropType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NameEn      string    `json:"nameEn,omitempty"`
	NameTh      string    `json:"nameTh,omitempty"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CropVariety belongs to exactly one CropType.
type CropVariety struct {
	ID               string    `json:"id"`
	CropTypeID       string    `json:"cropTypeId"`
	Name             string    `json:"name"`
	NameEn           string    `json:"nameEn,omitempty"`
	NameTh           string    `json:"nameTh,omitempty"`
	Description      string    `json:"description,omitempty"`
	GrowthPeriodDays *int      `json:"growthPeriodDays,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DisplayName prefers the Thai name.
func (v *CropVariety) DisplayName() string {
	if v.NameTh != "" {
		return v.NameTh
	}
	return v.Name
}

// StandardPlan is an admin template of day-offset tasks.
type StandardPlan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlanTask is one step of a StandardPlan.
type PlanTask struct {
	ID             string       `json:"id"`
	StandardPlanID string       `json:"standardPlanId"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	DayFromStart   int          `json:"dayFromStart"`
	ActivityType   ActivityType `json:"activityType"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ReconcileIDs returns the ids to add and to remove to turn current into
// desired. Duplicates in desired are ignored; order follows desired for
// additions and current for removals.
func ReconcileIDs(current, desired []string) (added, removed []string) {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := want[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
