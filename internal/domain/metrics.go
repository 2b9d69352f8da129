package domain

import "time"

// MetricSample is a system_metrics row (spec §3.4), extended with the
// rolling averages the original's collect_metrics/get_system_status
// compute (SPEC_FULL §3).
type MetricSample struct {
	ID        int64
	Timestamp time.Time

	Queued    int
	Running   int
	Completed int
	Failed    int

	WorkerStatus map[string]string // endpoint -> status string

	TotalJobsAllTime       int64
	AvgProcessingSeconds   float64
}
