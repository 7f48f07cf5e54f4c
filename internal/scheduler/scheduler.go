// Package scheduler runs the periodic refresh jobs on cron schedules. Each
// job enforces its own non-overlap rule; the scheduler only provides the
// cadence, on-demand triggering, and a status surface for the API.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Status is the scheduler state exposed on /status. Intervals are seconds.
type Status struct {
	Running         bool       `json:"running"`
	LastUpdate      *time.Time `json:"last_update"`
	NextUpdate      *time.Time `json:"next_update"`
	Interval        int        `json:"interval"`
	ForexInterval   int        `json:"forex_interval"`
	LastForexUpdate *time.Time `json:"last_forex_update"`
}

// Scheduler owns the cron runner and the two refresh jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
	wg   sync.WaitGroup

	mu            sync.Mutex
	running       bool
	market        *MarketRefreshJob
	forex         *ForexRefreshJob
	marketEntry   cron.EntryID
	interval      time.Duration
	forexInterval time.Duration
}

// New creates a scheduler with no jobs registered.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterRefreshJobs wires the two refresh jobs onto their cadences.
func (s *Scheduler) RegisterRefreshJobs(market *MarketRefreshJob, forex *ForexRefreshJob, interval, forexInterval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddJob(everySpec(interval), s.adapt(market))
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", market.Name(), err)
	}
	if _, err := s.cron.AddJob(everySpec(forexInterval), s.adapt(forex)); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", forex.Name(), err)
	}

	s.market = market
	s.forex = forex
	s.marketEntry = entryID
	s.interval = interval
	s.forexInterval = forexInterval
	return nil
}

// Start begins scheduled execution.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info().
		Dur("interval", s.interval).
		Dur("forex_interval", s.forexInterval).
		Msg("Scheduler started")
}

// Stop halts scheduling and waits for in-flight ticks to finish, including
// on-demand ticks started through TriggerRefresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if wasRunning {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()

	if wasRunning {
		s.log.Info().Msg("Scheduler stopped")
	}
}

// Running reports whether scheduled execution is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerRefresh runs both refresh jobs immediately, off the cron cadence.
// Jobs already in flight drop the extra tick themselves.
func (s *Scheduler) TriggerRefresh() {
	s.mu.Lock()
	market, forex := s.market, s.forex
	s.mu.Unlock()

	var jobs []Job
	if market != nil {
		jobs = append(jobs, market)
	}
	if forex != nil {
		jobs = append(jobs, forex)
	}
	for _, job := range jobs {
		s.wg.Add(1)
		go func(j Job) {
			defer s.wg.Done()
			s.runJob(j)
		}(job)
	}
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:       s.running,
		Interval:      int(s.interval.Seconds()),
		ForexInterval: int(s.forexInterval.Seconds()),
	}
	if s.market != nil {
		status.LastUpdate = s.market.LastRun()
	}
	if s.forex != nil {
		status.LastForexUpdate = s.forex.LastRun()
	}
	if s.running {
		if next := s.cron.Entry(s.marketEntry).Next; !next.IsZero() {
			next = next.UTC()
			status.NextUpdate = &next
		}
	}
	return status
}

func (s *Scheduler) runJob(job Job) {
	if err := job.Run(); err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
	}
}

// adapt bridges our error-returning Job onto the cron runner.
func (s *Scheduler) adapt(job Job) cron.Job {
	return cron.FuncJob(func() { s.runJob(job) })
}

func everySpec(interval time.Duration) string {
	return fmt.Sprintf("@every %ds", int(interval.Seconds()))
}
