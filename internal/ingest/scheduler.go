// Package ingest drives ingestion: it pulls unprocessed capture rows,
// turns them into section records and persists them, one single-flight
// pass at a time.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/unlost/internal/memory"
	"github.com/nextlevelbuilder/unlost/internal/segment"
	"github.com/nextlevelbuilder/unlost/internal/state"
)

const (
	DefaultInterval    = time.Minute
	DefaultBatchSize   = 50
	DefaultMinBatch    = 5
	DefaultMaxChained  = 1000
	DefaultViewerGrace = time.Minute
)

// Config tunes the scheduler.
type Config struct {
	Interval time.Duration
	// Schedule is an optional cron expression; when set it replaces
	// Interval for timed passes.
	Schedule    string
	BatchSize   int
	MinBatch    int
	MaxChained  int
	ViewerGrace time.Duration
	// ContinuationGap is the minimum spacing between chained passes.
	// Zero chains immediately.
	ContinuationGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MinBatch <= 0 {
		c.MinBatch = DefaultMinBatch
	}
	if c.MaxChained <= 0 {
		c.MaxChained = DefaultMaxChained
	}
	if c.ViewerGrace <= 0 {
		c.ViewerGrace = DefaultViewerGrace
	}
	return c
}

// Validate checks the cron expression, if any.
func (c Config) Validate() error {
	if c.Schedule != "" && !gronx.New().IsValid(c.Schedule) {
		return fmt.Errorf("%w: %s", ErrInvalidSchedule, c.Schedule)
	}
	return nil
}

// Scheduler runs ingestion passes on a timer, on demand, and as
// continuations while unprocessed rows remain.
type Scheduler struct {
	app       *state.App
	memories  *memory.Service
	segmenter *segment.Segmenter
	tracer    trace.Tracer

	mu      sync.Mutex
	cfg     Config
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	kick  chan struct{}
	reset chan struct{}

	// pass is the single-flight guard. It is only ever acquired with
	// TryLock. inflight mirrors it so Trigger can drop requests that
	// arrive while a pass runs.
	pass     sync.Mutex
	inflight atomic.Bool
	passes   atomic.Int64
	batches  atomic.Int64
	limiter  *rate.Limiter
}

// New creates a scheduler. A nil segmenter uses the default rule-based one.
func New(app *state.App, memories *memory.Service, seg *segment.Segmenter, cfg Config) *Scheduler {
	if seg == nil {
		seg = segment.New(nil)
	}
	return &Scheduler{
		app:       app,
		memories:  memories,
		segmenter: seg,
		tracer:    otel.Tracer("github.com/nextlevelbuilder/unlost/internal/ingest"),
		cfg:       cfg.withDefaults(),
		kick:      make(chan struct{}, 1),
		reset:     make(chan struct{}, 1),
		limiter:   rate.NewLimiter(pacing(cfg.ContinuationGap), 1),
	}
}

func pacing(gap time.Duration) rate.Limit {
	if gap <= 0 {
		return rate.Inf
	}
	return rate.Every(gap)
}

func (s *Scheduler) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Update replaces the configuration. A running loop re-arms its timer.
func (s *Scheduler) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
	s.limiter.SetLimit(pacing(cfg.ContinuationGap))

	select {
	case s.reset <- struct{}{}:
	default:
	}
	slog.Info("ingest schedule updated", "interval", cfg.Interval, "schedule", cfg.Schedule)
	return nil
}

// Batches returns the number of batches persisted since creation.
func (s *Scheduler) Batches() int64 { return s.batches.Load() }

// Start begins the background loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	slog.Info("ingest scheduler started", "interval", s.cfg.Interval, "schedule", s.cfg.Schedule)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	slog.Info("ingest scheduler stopped")
}

// Trigger requests a pass from the running loop. A trigger that arrives
// while a pass is running is dropped, never queued; triggers that arrive
// while one is already pending coalesce.
func (s *Scheduler) Trigger() {
	if s.inflight.Load() {
		slog.Debug("ingest pass in flight, trigger dropped")
		return
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.nextDelay(time.Now()))
	defer timer.Stop()

	chained := 0
	continuation := false
	for {
		if !continuation {
			select {
			case <-ctx.Done():
				return
			case <-s.reset:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.nextDelay(time.Now()))
				continue
			case <-timer.C:
				chained = 0
				timer.Reset(s.nextDelay(time.Now()))
			case <-s.kick:
			}
		}
		continuation = false

		more, _ := s.RunOnce(ctx)
		if !more {
			chained = 0
			continue
		}
		if limit := s.config().MaxChained; chained >= limit {
			slog.Warn("ingest continuation limit reached, waiting for next tick", "limit", limit)
			chained = 0
			continue
		}
		chained++
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		continuation = true
	}
}

// nextDelay computes the wait until the next timed pass.
func (s *Scheduler) nextDelay(now time.Time) time.Duration {
	cfg := s.config()
	if cfg.Schedule == "" {
		return cfg.Interval
	}
	next, err := gronx.NextTickAfter(cfg.Schedule, now, false)
	if err != nil {
		slog.Error("ingest: failed to compute next run", "expr", cfg.Schedule, "error", err)
		return cfg.Interval
	}
	return next.Sub(now)
}

// Drain runs passes back to back until no rows remain or the
// continuation limit is hit, and returns the number of batches persisted.
func (s *Scheduler) Drain(ctx context.Context) (int, error) {
	before := s.batches.Load()
	limit := s.config().MaxChained
	for i := 0; i <= limit; i++ {
		more, err := s.RunOnce(ctx)
		if err != nil {
			return int(s.batches.Load() - before), err
		}
		if !more {
			break
		}
	}
	return int(s.batches.Load() - before), nil
}
