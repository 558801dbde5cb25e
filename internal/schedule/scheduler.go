package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on six-field cron expressions (seconds first).
type Scheduler struct {
	cron *cron.Cron
	jobs []registered
}

type registered struct {
	spec string
	job  Job
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds())}
}

// Register validates spec and queues job to be scheduled by Start.
func (s *Scheduler) Register(spec string, job Job) error {
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec); err != nil {
		return fmt.Errorf("register %s: %w", job.Name(), err)
	}
	s.jobs = append(s.jobs, registered{spec: spec, job: job})
	return nil
}

// Start schedules every registered job. Each run receives ctx, and the
// scheduler stops once ctx is done, waiting for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, r := range s.jobs {
		job := r.job
		if _, err := s.cron.AddFunc(r.spec, func() { runJob(ctx, job) }); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
		log.WithFields(log.Fields{"job": job.Name(), "spec": r.spec}).Info("job scheduled")
	}
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Info("scheduler stopped")
	return nil
}

func runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	entry := log.WithField("job", job.Name())
	if err := job.Run(ctx); err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.WithField("took", time.Since(start).String()).Debug("job finished")
}
