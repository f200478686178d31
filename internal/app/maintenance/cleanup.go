package maintenance

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/byterank/byterank/internal/cache"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/logger"
	"github.com/byterank/byterank/pkg/metrics"
)

const (
	defaultAuditRetentionDays   = 90
	defaultRequestRetentionDays = 30
	defaultCommitSchedule       = "@every 15m"
	defaultAuditSchedule        = "@daily"
	defaultPruneSchedule        = "@daily"
	defaultCacheSchedule        = "@hourly"
)

// Job names used in logs and metrics.
const (
	JobCommitRefresh  = "commit_refresh"
	JobAuditRetention = "audit_retention"
	JobRequestPrune   = "request_prune"
	JobCachePurge     = "cache_purge"
)

// Dependencies lists the services maintenance jobs act on. A nil dependency
// skips the jobs that need it.
type Dependencies struct {
	Commits  *services.CommitStatsService
	Audit    *services.AuditService
	Requests *services.JoinRequestService
	Friends  *services.FriendService
	Cache    *cache.DatabaseStore
}

// Cleaner coordinates background jobs: raising commit counters from daily
// activity, enforcing audit retention, pruning resolved requests and purging
// expired cache rows.
type Cleaner struct {
	deps             Dependencies
	cron             *cron.Cron
	now              func() time.Time
	log              *zap.Logger
	auditRetention   int
	requestRetention int

	commitSchedule string
	auditSchedule  string
	pruneSchedule  string
	cacheSchedule  string

	mu       sync.Mutex
	statuses map[string]JobStatus
}

// JobStatus is the latest outcome of one job.
type JobStatus struct {
	Job                 string    `json:"job"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetention = days
		}
	}
}

// WithRequestRetentionDays adjusts how long resolved requests are kept.
func WithRequestRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.requestRetention = days
		}
	}
}

// WithCommitSchedule overrides the cron expression for the commit totals refresh.
func WithCommitSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.commitSchedule = expr
		}
	}
}

// WithAuditSchedule overrides the cron expression for audit retention enforcement.
func WithAuditSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.auditSchedule = expr
		}
	}
}

// WithPruneSchedule overrides the cron expression for request pruning.
func WithPruneSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.pruneSchedule = expr
		}
	}
}

// WithCacheSchedule overrides the cron expression for cache purging.
func WithCacheSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.cacheSchedule = expr
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(deps Dependencies, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		deps:             deps,
		now:              time.Now,
		auditRetention:   defaultAuditRetentionDays,
		requestRetention: defaultRequestRetentionDays,
		commitSchedule:   defaultCommitSchedule,
		auditSchedule:    defaultAuditSchedule,
		pruneSchedule:    defaultPruneSchedule,
		cacheSchedule:    defaultCacheSchedule,
		log:              logger.WithModule("maintenance"),
		statuses:         make(map[string]JobStatus),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

func (c *Cleaner) jobs() []job {
	var jobs []job

	if c.deps.Commits != nil {
		jobs = append(jobs, job{JobCommitRefresh, c.commitSchedule, func(ctx context.Context) error {
			raised, err := c.deps.Commits.RefreshAll(ctx)
			c.log.Debug("commit totals refreshed", zap.Int("raised", raised))
			return err
		}})
	}

	if c.deps.Audit != nil && c.auditRetention > 0 {
		jobs = append(jobs, job{JobAuditRetention, c.auditSchedule, func(ctx context.Context) error {
			_, err := c.deps.Audit.CleanupOlderThan(ctx, c.auditRetention)
			return err
		}})
	}

	if c.deps.Requests != nil || c.deps.Friends != nil {
		jobs = append(jobs, job{JobRequestPrune, c.pruneSchedule, c.pruneRequests})
	}

	if c.deps.Cache != nil {
		jobs = append(jobs, job{JobCachePurge, c.cacheSchedule, func(ctx context.Context) error {
			_, err := c.deps.Cache.PurgeExpired(ctx, c.now())
			return err
		}})
	}

	return jobs
}

func (c *Cleaner) pruneRequests(ctx context.Context) error {
	cutoff := c.now().UTC().AddDate(0, 0, -c.requestRetention)

	var errs error
	if c.deps.Requests != nil {
		if _, err := c.deps.Requests.PruneResolved(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.deps.Friends != nil {
		if _, err := c.deps.Friends.PruneResolved(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Start registers jobs with the cron scheduler and launches it when at least
// one job is configured.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.execute(context.Background(), j)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

// JobStatuses returns the latest outcome of every job that ran, by name.
func (c *Cleaner) JobStatuses() []JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]JobStatus, 0, len(c.statuses))
	for _, status := range c.statuses {
		out = append(out, status)
	}
	slices.SortFunc(out, func(a, b JobStatus) int { return strings.Compare(a.Job, b.Job) })
	return out
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	err := j.run(ctx)
	c.record(j.name, err)
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(j.name, "failure").Inc()
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		return err
	}
	metrics.MaintenanceRuns.WithLabelValues(j.name, "success").Inc()
	return nil
}

func (c *Cleaner) record(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.statuses[name]
	status.Job = name
	status.LastRunAt = c.now().UTC()
	if err != nil {
		status.LastError = err.Error()
		status.ConsecutiveFailures++
	} else {
		status.LastError = ""
		status.ConsecutiveFailures = 0
	}
	c.statuses[name] = status
}
