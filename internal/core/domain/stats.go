package domain

// StatsSnapshot is an aggregate view over all tickets, computed on demand.
type StatsSnapshot struct {
	TotalTickets      int64              `json:"total_tickets"`
	OpenTickets       int64              `json:"open_tickets"`
	AvgTicketsPerDay  float64            `json:"avg_tickets_per_day"`
	PriorityBreakdown map[Priority]int64 `json:"priority_breakdown"`
	CategoryBreakdown map[Category]int64 `json:"category_breakdown"`
}

// NewPriorityBreakdown returns a breakdown with every priority set to zero.
func NewPriorityBreakdown() map[Priority]int64 {
	breakdown := make(map[Priority]int64, len(AllPriorities()))
	for _, p := range AllPriorities() {
		breakdown[p] = 0
	}
	return breakdown
}

// NewCategoryBreakdown returns a breakdown with every category set to zero.
func NewCategoryBreakdown() map[Category]int64 {
	breakdown := make(map[Category]int64, len(AllCategories()))
	for _, c := range AllCategories() {
		breakdown[c] = 0
	}
	return breakdown
}
