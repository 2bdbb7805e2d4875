// Package scheduler triggers full ingestion runs on cron schedules and once
// at startup.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/ingestion"
)

// Runner performs a full catalog walk.
type Runner interface {
	RunFull(ctx context.Context, pageSize int) (ingestion.Stats, error)
}

// Default schedules, with a leading seconds field.
const (
	DefaultAirQualitySpec = "0 */30 * * * *"
	DefaultWeatherSpec    = "0 0 * * * *"
)

// Job names.
const (
	JobAirQuality = "air_quality_ingestion"
	JobWeather    = "weather_ingestion"
	JobWarmUp     = "startup_warmup"
)

// Config configures a Scheduler.
type Config struct {
	Runner Runner

	// PageSize for every run. Default: ingestion.DefaultPageSize
	PageSize int

	// AirQualitySpec and WeatherSpec are six-field cron expressions or
	// descriptors such as "@every 15m". Each trigger walks the whole catalog.
	AirQualitySpec string
	WeatherSpec    string

	// RunTimeout bounds a single run. Zero means no bound.
	RunTimeout time.Duration

	Logger zerolog.Logger
}

// Entry describes a registered trigger.
type Entry struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

// Scheduler owns the cron triggers.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	pageSize int
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	entries map[string]registered
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun map[string]RunRecord
}

type registered struct {
	id   cron.EntryID
	spec string
}

// RunRecord is the outcome of the last run of a job.
type RunRecord struct {
	StartedAt time.Time       `json:"startedAt"`
	Stats     ingestion.Stats `json:"stats"`
	Err       string          `json:"error,omitempty"`
}

// New registers the air-quality and weather triggers.
func New(cfg Config) (*Scheduler, error) {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = ingestion.DefaultPageSize
	}
	aqSpec := cfg.AirQualitySpec
	if aqSpec == "" {
		aqSpec = DefaultAirQualitySpec
	}
	wxSpec := cfg.WeatherSpec
	if wxSpec == "" {
		wxSpec = DefaultWeatherSpec
	}

	cronLogger := cronLog{logger: cfg.Logger}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:   cfg.Runner,
		pageSize: pageSize,
		timeout:  cfg.RunTimeout,
		logger:   cfg.Logger,
		entries:  make(map[string]registered),
		ctx:      ctx,
		cancel:   cancel,
		lastRun:  make(map[string]RunRecord),
	}

	for _, job := range []struct{ name, spec string }{
		{JobAirQuality, aqSpec},
		{JobWeather, wxSpec},
	} {
		name := job.name
		id, err := s.cron.AddFunc(job.spec, func() { s.run(s.ctx, name) })
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s with %q: %w", name, job.spec, err)
		}
		s.entries[name] = registered{id: id, spec: job.spec}
	}

	return s, nil
}

// Start begins firing triggers in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("page_size", s.pageSize).Msg("ingestion scheduler started")
}

// Stop halts the triggers, cancels running jobs and waits for them to return
// or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info().Msg("ingestion scheduler stopped")
}

// WarmUp runs one full walk synchronously.
func (s *Scheduler) WarmUp(ctx context.Context) error {
	return s.run(ctx, JobWarmUp)
}

// Entries lists the cron triggers ordered by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, r := range s.entries {
		e := s.cron.Entry(r.id)
		out = append(out, Entry{Name: name, Spec: r.spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LastRun returns the outcome of the most recent run of name.
func (s *Scheduler) LastRun(name string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRun[name]
	return r, ok
}

func (s *Scheduler) run(ctx context.Context, name string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	s.logger.Info().Str("job", name).Msg("ingestion job started")

	stats, err := s.runner.RunFull(ctx, s.pageSize)

	record := RunRecord{StartedAt: started, Stats: stats}
	if err != nil {
		record.Err = err.Error()
		s.logger.Error().Err(err).Str("job", name).Msg("ingestion job failed")
	} else {
		s.logger.Info().
			Str("job", name).
			Int("locations", stats.Locations).
			Dur("elapsed", time.Since(started)).
			Msg("ingestion job finished")
	}

	s.mu.Lock()
	s.lastRun[name] = record
	s.mu.Unlock()
	return err
}

// cronLog adapts zerolog to cron.Logger.
type cronLog struct {
	logger zerolog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
