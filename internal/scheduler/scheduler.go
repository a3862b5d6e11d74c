package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
)

// Job is a periodic task. Spec uses the robfig/cron syntax, including
// descriptors such as "@every 30m" and "@daily".
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context)
}

// EverySpec builds an "@every" spec for a fixed interval.
func EverySpec(interval time.Duration) string {
	return "@every " + interval.String()
}

// Scheduler runs jobs until stopped. Stopping prevents future runs only;
// a job that is already running finishes on its own.
type Scheduler struct {
	mu   sync.Mutex
	cron *cron.Cron
	jobs []Job
	log  *slog.Logger
}

func New(log *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		log:  log,
	}
}

// Start is a no-op when the scheduler is already running. Job contexts
// derive from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelWarn))
	c := cron.New(
		cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		cron.WithLogger(cronLog),
	)

	for _, job := range s.jobs {
		if _, err := c.AddFunc(job.Spec, func() { s.run(ctx, job) }); err != nil {
			return fmt.Errorf("add job %s (spec = %s): %w", job.Name, job.Spec, err)
		}
	}

	c.Start()
	s.cron = c

	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	s.cron.Stop()
	s.cron = nil
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cron != nil
}

// EntryCount is the number of scheduled jobs, zero when stopped.
func (s *Scheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return 0
	}

	return len(s.cron.Entries())
}

func (s *Scheduler) run(parent context.Context, job Job) {
	ctx := parent
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, job.Timeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err(),
			"job", job.Name)
		return
	default:
	}

	start := time.Now()
	job.Run(ctx)

	s.log.InfoContext(ctx, "Scheduled job is finished",
		"job", job.Name,
		"durationSeconds", time.Since(start).Seconds())
}

