package checks

import (
	"context"
	"strings"
	"time"

	"github.com/tuntasinaja/tuntasinaja/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// JobStatus is the last known outcome of one scheduled job.
type JobStatus struct {
	Job                 string
	LastRunAt           time.Time
	LastError           string
	TotalRuns           int
	ConsecutiveFailures int
}

// JobReporter exposes scheduled job state, implemented by the maintenance scheduler.
type JobReporter interface {
	JobStatuses() []JobStatus
}

// Maintenance verifies that background jobs run successfully within the expected interval.
// When maxAge is zero, a default window of 6h is used.
func Maintenance(reporter JobReporter, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if reporter == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "scheduler not running",
				Duration: time.Since(start),
			}
		}

		jobs := reporter.JobStatuses()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no maintenance jobs registered",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var failures []string
		current := now()

		for _, job := range jobs {
			if job.TotalRuns == 0 {
				failures = append(failures, job.Job+": pending first run")
				continue
			}

			if job.ConsecutiveFailures > 0 {
				status = monitoring.Worst(status, monitoring.StatusDown)
				failures = append(failures, job.Job+": "+job.LastError)
			}

			if !job.LastRunAt.IsZero() && current.Sub(job.LastRunAt) > maxAge {
				status = monitoring.Worst(status, monitoring.StatusDegraded)
				failures = append(failures, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(failures, "; "),
			Duration: time.Since(start),
		}
	})
}
