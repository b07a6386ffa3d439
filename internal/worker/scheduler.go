package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work. Runs of the same job never overlap.
type Job func(ctx context.Context) error

// Scheduler runs periodic maintenance: the expiry sweep, backups and sync queue cleanup.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
	logger  *zerolog.Logger
}

// Parser accepts an optional seconds field and descriptors like "@every 1m".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func NewScheduler(logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(Parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{
		cron:    c,
		ctx:     context.Background(),
		timeout: 10 * time.Minute,
		logger:  logger,
	}
}

// Register adds a named job on a cron spec.
func (s *Scheduler) Register(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("scheduled job registered")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job failed")
		return
	}
	s.logger.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job finished")
}

// Start runs the scheduler until Stop; ctx is handed to the jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// ExpirySweep wraps a sweeper so it runs against the current time.
func ExpirySweep(expire func(ctx context.Context, now time.Time) (int, error)) Job {
	return func(ctx context.Context) error {
		_, err := expire(ctx, time.Now())
		return err
	}
}

// SyncQueuePurge removes completed sync tasks older than retention.
func SyncQueuePurge(purge func(ctx context.Context, cutoff time.Time) (int64, error), retention time.Duration) Job {
	return func(ctx context.Context) error {
		_, err := purge(ctx, time.Now().Add(-retention))
		return err
	}
}

// cronLogger routes robfig/cron logs into zerolog.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
