package domain

import (
	"fmt"
	"time"
)

// ActivityType is the closed set of activity tags. Plan tasks use the same set.
type ActivityType string

const (
	ActivitySoilPreparation ActivityType = "SOIL_PREPARATION"
	ActivityPlanting        ActivityType = "PLANTING"
	ActivityFertilizing     ActivityType = "FERTILIZING"
	ActivityPestControl     ActivityType = "PEST_CONTROL"
	ActivityIrrigation      ActivityType = "IRRIGATION"
	ActivityWeeding         ActivityType = "WEEDING"
	ActivityHarvesting      ActivityType = "HARVESTING"
	ActivityOther           ActivityType = "OTHER"
)

var activityTypes = []ActivityType{
	ActivitySoilPreparation,
	ActivityPlanting,
	ActivityFertilizing,
	ActivityPestControl,
	ActivityIrrigation,
	ActivityWeeding,
	ActivityHarvesting,
	ActivityOther,
}

// ActivityTypes returns every activity type in declaration order.
func ActivityTypes() []ActivityType {
	out := make([]ActivityType, len(activityTypes))
	copy(out, activityTypes)
	return out
}

// Valid reports whether t is in the closed set.
func (t ActivityType) Valid() bool {
	for _, known := range activityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseActivityType validates a raw tag.
func ParseActivityType(raw string) (ActivityType, error) {
	t := ActivityType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown activity type %q", raw)
	}
	return t, nil
}

// Activity is a dated, costed record of work within a cycle.
type Activity struct {
	ID           string       `json:"id"`
	CycleID      string       `json:"cycleId"`
	Type         ActivityType `json:"type"`
	Description  string       `json:"description"`
	ActivityDate time.Time    `json:"activityDate"`
	Cost         float64      `json:"cost"`
	Income       float64      `json:"income"`
	Images       []string     `json:"images"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// AbandonNote is the description of the OTHER activity recorded when a cycle
// is abandoned with a reason.
func AbandonNote(reason string) string {
	return "Cycle abandoned: " + reason
}
