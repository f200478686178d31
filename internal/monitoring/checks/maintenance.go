package checks

import (
	"context"
	"strings"
	"time"

	"github.com/byterank/byterank/internal/app/maintenance"
	"github.com/byterank/byterank/internal/monitoring"
)

const defaultMaintenanceMaxAge = 26 * time.Hour

// JobReporter exposes the latest outcome of each scheduled job.
type JobReporter interface {
	JobStatuses() []maintenance.JobStatus
}

// Maintenance reports degraded when a job keeps failing or has not run
// within maxAge. Jobs that never ran yet are ignored.
func Maintenance(jobs JobReporter, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		if jobs == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var problems []string
		for _, job := range jobs.JobStatuses() {
			if job.LastRunAt.IsZero() {
				continue
			}
			if job.ConsecutiveFailures > 0 {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": "+job.LastError)
			}
			if now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": last run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
