package maintenance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/internal/cache"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
	"github.com/tuntasinaja/tuntasinaja/internal/monitoring/checks"
	"github.com/tuntasinaja/tuntasinaja/internal/services"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

const (
	JobDeadlineReminders = "deadline_reminders"
	JobScheduleReminders = "schedule_reminders"
	JobCacheCleanup      = "cache_cleanup"

	defaultDeadlineSpec = "*/30 * * * *"
	defaultScheduleSpec = "0 18,21 * * *"
	defaultCleanupSpec  = "@hourly"
	defaultJobTimeout   = 5 * time.Minute

	// claimTTL outlives clock skew between instances but stays shorter than
	// the tightest reminder interval.
	claimTTL = 10 * time.Minute
)

// ReminderRunner is the part of services.ReminderService the scheduler drives.
type ReminderRunner interface {
	DeadlineReminders(ctx context.Context) (services.ReminderSummary, error)
	ScheduleReminders(ctx context.Context) (services.ReminderSummary, error)
}

// Scheduler runs the reminder jobs and cache sweeping on cron specifications
// evaluated in the school's timezone.
type Scheduler struct {
	reminders ReminderRunner
	sweeper   cache.Sweeper
	claims    cache.Claimer
	owner     string
	cron      *cron.Cron
	loc       *time.Location
	now       func() time.Time
	timeout   time.Duration
	log       *zap.Logger

	deadlineSchedule string
	scheduleSchedule string
	cleanupSchedule  string

	mu     sync.Mutex
	status map[string]*checks.JobStatus
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for job bookkeeping.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithClaims makes cron-fired reminder jobs claim their slot first, so only
// one instance sends when several share a database.
func WithClaims(claims cache.Claimer) Option {
	return func(s *Scheduler) {
		s.claims = claims
	}
}

// WithLocation sets the timezone cron specifications are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithDeadlineSchedule overrides the cron specification for deadline reminders.
func WithDeadlineSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.deadlineSchedule = spec
		}
	}
}

// WithScheduleSchedule overrides the cron specification for schedule reminders.
func WithScheduleSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.scheduleSchedule = spec
		}
	}
}

// WithCleanupSchedule overrides the cron specification for cache cleanup.
func WithCleanupSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.cleanupSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler. A nil dependency skips its jobs.
func NewScheduler(reminders ReminderRunner, sweeper cache.Sweeper, opts ...Option) *Scheduler {
	s := &Scheduler{
		reminders:        reminders,
		sweeper:          sweeper,
		loc:              time.UTC,
		now:              time.Now,
		timeout:          defaultJobTimeout,
		log:              logger.WithModule("maintenance"),
		deadlineSchedule: defaultDeadlineSpec,
		scheduleSchedule: defaultScheduleSpec,
		cleanupSchedule:  defaultCleanupSpec,
		status:           make(map[string]*checks.JobStatus),
		owner:            models.NewID(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLocation(s.loc), cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

func (s *Scheduler) jobs() []job {
	var jobs []job
	if s.reminders != nil {
		jobs = append(jobs,
			job{name: JobDeadlineReminders, spec: s.deadlineSchedule, exclusive: true, run: func(ctx context.Context) error {
				_, err := s.reminders.DeadlineReminders(ctx)
				return err
			}},
			job{name: JobScheduleReminders, spec: s.scheduleSchedule, exclusive: true, run: func(ctx context.Context) error {
				_, err := s.reminders.ScheduleReminders(ctx)
				return err
			}},
		)
	}
	if s.sweeper != nil {
		jobs = append(jobs, job{name: JobCacheCleanup, spec: s.cleanupSchedule, run: func(ctx context.Context) error {
			removed, err := s.sweeper.CleanupExpired(ctx)
			if err == nil && removed > 0 {
				s.log.Debug("expired cache entries removed", zap.Int64("count", removed))
			}
			return err
		}})
	}
	return jobs
}

type job struct {
	name      string
	spec      string
	exclusive bool
	run       func(ctx context.Context) error
}

// Start registers the jobs with the cron scheduler and launches it when at least one job exists.
func (s *Scheduler) Start() error {
	jobs := s.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if !s.claim(ctx, j) {
				return
			}
			if err := s.execute(ctx, j); err != nil {
				s.log.Warn("scheduled job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return err
		}
		s.track(j.name)
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(jobs)), zap.String("timezone", s.loc.String()))
	return nil
}

// Stop halts the underlying scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used by tests and the
// external cron trigger.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range s.jobs() {
		if err := s.execute(ctx, j); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// claim reports whether this instance owns the current slot of j. Store
// errors let the job run; a duplicate reminder beats a missed one.
func (s *Scheduler) claim(ctx context.Context, j job) bool {
	if !j.exclusive || s.claims == nil {
		return true
	}
	slot := s.now().In(s.loc).Truncate(time.Minute).Format("200601021504")
	ok, err := s.claims.Claim(ctx, "job:"+j.name+":"+slot, s.owner, claimTTL)
	if err != nil {
		s.log.Warn("job claim failed, running anyway", zap.String("job", j.name), zap.Error(err))
		return true
	}
	if !ok {
		s.log.Debug("job slot claimed by another instance", zap.String("job", j.name), zap.String("slot", slot))
	}
	return ok
}

func (s *Scheduler) execute(ctx context.Context, j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("job panicked")
			s.log.Error("scheduled job panicked", zap.String("job", j.name), zap.Any("panic", rec))
		}
		s.finish(j.name, err)
	}()
	return j.run(ctx)
}

func (s *Scheduler) track(name string) *checks.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	if !ok {
		st = &checks.JobStatus{Job: name}
		s.status[name] = st
	}
	return st
}

func (s *Scheduler) finish(name string, err error) {
	st := s.track(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	st.TotalRuns++
	st.LastRunAt = s.now()
	if err != nil {
		st.ConsecutiveFailures++
		st.LastError = err.Error()
		return
	}
	st.ConsecutiveFailures = 0
	st.LastError = ""
}

// JobStatuses reports the last outcome of each job, sorted by name.
func (s *Scheduler) JobStatuses() []checks.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]checks.JobStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
