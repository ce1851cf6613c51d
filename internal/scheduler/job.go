package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job once
	Run(ctx context.Context) error

	// Schedule returns the cron expression, e.g. "0 13 * * *"
	Schedule() string
}

// Result records one job execution
type Result struct {
	JobName   string        `json:"jobName"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// History keeps the most recent executions of one job
type History struct {
	Results []Result
}

const historyLimit = 100

// Add appends a result, keeping the newest 100
func (h *History) Add(r Result) {
	h.Results = append(h.Results, r)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// Latest returns the newest n results, oldest first
func (h *History) Latest(n int) []Result {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n == 0 {
		return []Result{}
	}
	return h.Results[len(h.Results)-n:]
}

// Failures returns every failed result on record
func (h *History) Failures() []Result {
	failed := make([]Result, 0)
	for _, r := range h.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// SuccessRate returns the fraction of recorded runs that succeeded
func (h *History) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}

	ok := 0
	for _, r := range h.Results {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(h.Results))
}
