package domain

// Totals is the money and count rollup of a set of activities.
type Totals struct {
	TotalCost     float64 `json:"totalCost"`
	TotalIncome   float64 `json:"totalIncome"`
	NetProfit     float64 `json:"netProfit"`
	ActivityCount int     `json:"activityCount"`
}

// Add returns the field-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		TotalCost:     t.TotalCost + o.TotalCost,
		TotalIncome:   t.TotalIncome + o.TotalIncome,
		NetProfit:     t.NetProfit + o.NetProfit,
		ActivityCount: t.ActivityCount + o.ActivityCount,
	}
}

// Tally sums cost and income over activities. No rounding is applied.
func Tally(activities []Activity) Totals {
	var t Totals
	for _, a := range activities {
		t.TotalCost += a.Cost
		t.TotalIncome += a.Income
	}
	t.NetProfit = t.TotalIncome - t.TotalCost
	t.ActivityCount = len(activities)
	return t
}

// CycleStats is Totals plus whole days since the cycle started.
type CycleStats struct {
	Totals
	DaysElapsed int `json:"daysElapsed"`
}

// TypeTotals is the per-activity-type rollup.
type TypeTotals struct {
	Count       int     `json:"count"`
	TotalCost   float64 `json:"totalCost"`
	TotalIncome float64 `json:"totalIncome"`
}

// TallyByType groups activities by type. Types with no activity are absent.
func TallyByType(activities []Activity) map[ActivityType]TypeTotals {
	out := make(map[ActivityType]TypeTotals)
	for _, a := range activities {
		tt := out[a.Type]
		tt.Count++
		tt.TotalCost += a.Cost
		tt.TotalIncome += a.Income
		out[a.Type] = tt
	}
	return out
}
