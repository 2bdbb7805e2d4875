// Package worker runs ingestion and refresh jobs delivered over Pub/Sub.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/ingestion"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/refresh"
)

// Job types understood by the dispatcher.
const (
	JobIngestFull      = "ingest_full"
	JobRefreshLocation = "refresh_location"
	JobHealthCheck     = "health_check"
)

var (
	// ErrInvalidMessage means the payload can never be processed.
	ErrInvalidMessage = errors.New("invalid job message")
	// ErrUnknownJob means the job type is not one of the known types.
	ErrUnknownJob = errors.New("unknown job type")
	// ErrProbeEmpty means the health probe location produced no readings.
	ErrProbeEmpty = errors.New("health probe returned no readings")
)

// Message is the JSON body of a job message.
type Message struct {
	JobType    string `json:"job_type"`
	LocationID string `json:"location_id,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
}

// ParseMessage decodes and validates a job message.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.JobType == "" {
		return Message{}, fmt.Errorf("%w: missing job_type", ErrInvalidMessage)
	}
	if msg.PageSize < 0 {
		return Message{}, fmt.Errorf("%w: negative page_size", ErrInvalidMessage)
	}
	return msg, nil
}

// Ingester runs a full catalog walk.
type Ingester interface {
	RunFull(ctx context.Context, pageSize int) (ingestion.Stats, error)
}

// Refresher refreshes one location.
type Refresher interface {
	Refresh(ctx context.Context, id location.ID) refresh.Result
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Ingester  Ingester
	Refresher Refresher

	// PageSize is used by ingest_full messages that carry none.
	// Default: ingestion.DefaultPageSize
	PageSize int

	// ProbeLocation is refreshed by health_check. Empty skips the probe.
	ProbeLocation location.ID

	// Timeout bounds a single job.
	// Default: 30 minutes
	Timeout time.Duration

	Logger zerolog.Logger
}

// Dispatcher executes job messages and keeps per-type counters.
type Dispatcher struct {
	ingester  Ingester
	refresher Refresher
	pageSize  int
	probe     location.ID
	timeout   time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// Metrics tracks dispatched jobs.
type Metrics struct {
	Total        int64            `json:"total"`
	Succeeded    int64            `json:"succeeded"`
	Failed       int64            `json:"failed"`
	ByType       map[string]int64 `json:"byType"`
	LastJobType  string           `json:"lastJobType,omitempty"`
	LastJobAt    time.Time        `json:"lastJobAt"`
	LastDuration time.Duration    `json:"lastDurationNs"`
	LastIngest   ingestion.Stats  `json:"lastIngest"`
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = ingestion.DefaultPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Dispatcher{
		ingester:  cfg.Ingester,
		refresher: cfg.Refresher,
		pageSize:  pageSize,
		probe:     cfg.ProbeLocation,
		timeout:   timeout,
		logger:    cfg.Logger,
		metrics:   Metrics{ByType: make(map[string]int64)},
	}
}

// Dispatch runs the job described by msg.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	var (
		err   error
		stats ingestion.Stats
	)
	switch msg.JobType {
	case JobIngestFull:
		stats, err = d.ingestFull(ctx, msg)
	case JobRefreshLocation:
		err = d.refreshLocation(ctx, msg)
	case JobHealthCheck:
		err = d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}

	d.record(msg.JobType, start, stats, err)
	return err
}

func (d *Dispatcher) ingestFull(ctx context.Context, msg Message) (ingestion.Stats, error) {
	size := msg.PageSize
	if size == 0 {
		size = d.pageSize
	}
	stats, err := d.ingester.RunFull(ctx, size)
	if err != nil {
		return stats, fmt.Errorf("ingest full: %w", err)
	}
	d.logger.Info().
		Int("pages", stats.Pages).
		Int("locations", stats.Locations).
		Int("empty", stats.Empty).
		Dur("duration", stats.Duration).
		Msg("ingestion run completed")
	return stats, nil
}

func (d *Dispatcher) refreshLocation(ctx context.Context, msg Message) error {
	id, err := location.ParseID(msg.LocationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	res := d.refresher.Refresh(ctx, id)
	d.logger.Info().
		Str("location_id", id.String()).
		Bool("air_quality", res.AirQuality != nil).
		Bool("weather", res.Weather != nil).
		Msg("location refreshed")
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	if d.probe == "" {
		d.logger.Debug().Msg("no probe location configured, skipping health probe")
		return nil
	}
	if d.refresher.Refresh(ctx, d.probe).Empty() {
		return fmt.Errorf("%w: %s", ErrProbeEmpty, d.probe)
	}
	return nil
}

func (d *Dispatcher) record(jobType string, start time.Time, stats ingestion.Stats, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.metrics.Total++
	if err != nil {
		d.metrics.Failed++
	} else {
		d.metrics.Succeeded++
	}
	d.metrics.ByType[jobType]++
	d.metrics.LastJobType = jobType
	d.metrics.LastJobAt = start
	d.metrics.LastDuration = time.Since(start)
	if jobType == JobIngestFull {
		d.metrics.LastIngest = stats
	}
}

// Metrics returns a copy of the current counters.
func (d *Dispatcher) Metrics() Metrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m := d.metrics
	m.ByType = make(map[string]int64, len(d.metrics.ByType))
	for k, v := range d.metrics.ByType {
		m.ByType[k] = v
	}
	return m
}

// Permanent reports whether err will fail again on redelivery.
func Permanent(err error) bool {
	return errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrUnknownJob)
}
