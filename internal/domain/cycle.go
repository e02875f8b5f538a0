package domain

import "time"

// CycleStatus is the lifecycle state of a planting cycle.
type CycleStatus string

const (
	CycleActive    CycleStatus = "ACTIVE"
	CycleCompleted CycleStatus = "COMPLETED"
	CycleAbandoned CycleStatus = "ABANDONED"
)

// Terminal reports whether no further transition is defined from s.
func (s CycleStatus) Terminal() bool {
	return s == CycleCompleted || s == CycleAbandoned
}

// CanTransitionTo reports whether s -> to is a legal cycle transition.
// Only ACTIVE has outgoing edges.
func (s CycleStatus) CanTransitionTo(to CycleStatus) bool {
	return s == CycleActive && to.Terminal()
}

// PlantingCycle is one season on a plot.
type PlantingCycle struct {
	ID             string      `json:"id"`
	PlotID         string      `json:"plotId"`
	CropVarietyID  string      `json:"cropVarietyId"`
	StandardPlanID *string     `json:"standardPlanId"`
	StartDate      time.Time   `json:"startDate"`
	EndDate        *time.Time  `json:"endDate"`
	Status         CycleStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// IsActive reports whether the cycle accepts new activities.
func (c *PlantingCycle) IsActive() bool {
	return c.Status == CycleActive
}

const msPerDay = 24 * 60 * 60 * 1000

// DaysElapsed is floor((now - start) / 86,400,000 ms). It is a whole-day
// truncation of the elapsed time, not a calendar-day difference.
func DaysElapsed(start, now time.Time) int {
	ms := now.UnixMilli() - start.UnixMilli()
	days := ms / msPerDay
	if ms%msPerDay != 0 && ms < 0 {
		days--
	}
	return int(days)
}
