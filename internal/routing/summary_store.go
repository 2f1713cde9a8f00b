package routing

import "sync"

// Last run summaries per planning date, for the admin stats endpoint.

var (
	mu        sync.Mutex
	summaries = map[string]RunRecord{}
)

type RunRecord struct {
	PlanDate       string `json:"planDate"`
	Routes         int    `json:"routes"`
	PlannedStops   int    `json:"plannedStops"`
	UncoveredPlans int    `json:"uncoveredPlans"`
	Persisted      bool   `json:"persisted"`
}

func RecordRun(rec RunRecord) {
	mu.Lock()
	summaries[rec.PlanDate] = rec
	mu.Unlock()
}

func GetRun(planDate string) (RunRecord, bool) {
	mu.Lock()
	defer mu.Unlock()
	rec, ok := summaries[planDate]
	return rec, ok
}
