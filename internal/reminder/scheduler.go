package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"docnest/pkg/logger"
	"docnest/pkg/metrics"
	"docnest/pkg/otel"
	"docnest/pkg/trace"
	"docnest/pkg/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const DefaultScanInterval = 30 * time.Second

var (
	ErrInvalidInterval = errors.New("scheduler interval must be positive")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)

// Runner runs one reminder cycle. *Engine implements it.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (CycleResult, error)
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TickReport describes the most recent tick.
type TickReport struct {
	TraceID   string
	StartedAt time.Time
	Duration  time.Duration
	Result    CycleResult
	Err       error
}

// Scheduler drives a Runner on a fixed interval. Ticks never overlap, and a
// failing tick is logged and counted without stopping the loop.
type Scheduler struct {
	runner      Runner
	logger      *zap.Logger
	interval    time.Duration
	tickTimeout time.Duration
	runOnStart  bool
	now         func() time.Time

	state    atomic.Int32
	lastTick atomic.Pointer[TickReport]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(runner Runner, logger *zap.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithTickTimeout bounds a single tick. Zero means the scan interval.
func (s *Scheduler) WithTickTimeout(d time.Duration) *Scheduler {
	s.tickTimeout = d
	return s
}

func (s *Scheduler) WithRunOnStart(runOnStart bool) *Scheduler {
	s.runOnStart = runOnStart
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastTick returns the report of the latest finished tick, or nil.
func (s *Scheduler) LastTick() *TickReport {
	return s.lastTick.Load()
}

// Start launches the loop and returns. The loop ends when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state.Store(int32(StateIdle))

	go func() {
		defer close(s.done)
		s.loop(loopCtx)
	}()
	return nil
}

// Run starts the loop and blocks until it has stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-s.done
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.started = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		s.state.Store(int32(StateStopped))
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.state.Store(int32(StateStopped))

	timeout := s.effectiveTickTimeout()
	s.logger.Info("Reminder scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("tick_timeout", timeout),
		zap.Bool("run_on_start", s.runOnStart),
	)

	if s.runOnStart && ctx.Err() == nil {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) effectiveTickTimeout() time.Duration {
	if s.tickTimeout > 0 {
		return s.tickTimeout
	}
	return s.interval
}

// tick runs one cycle on a context that survives shutdown of parent but is
// bounded by the tick timeout.
func (s *Scheduler) tick(parent context.Context) {
	s.state.Store(int32(StateRunning))
	defer s.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.effectiveTickTimeout())
	defer cancel()

	traceID := trace.GenerateTraceID()
	ctx = trace.WithContext(ctx, traceID)
	ctx, span := otel.StartSpan(ctx, "reminder.tick")
	defer span.End()
	log := logger.WithTrace(ctx, s.logger)

	now := s.now()
	start := time.Now()
	res, err := s.runSafely(ctx, now)
	elapsed := time.Since(start)

	metrics.RecordTick(elapsed, err != nil)
	s.lastTick.Store(&TickReport{
		TraceID:   traceID,
		StartedAt: now,
		Duration:  elapsed,
		Result:    res,
		Err:       err,
	})

	span.SetAttributes(
		attribute.Int("reminders.dispatched", res.Dispatch.Dispatched),
		attribute.Int("reminders.notify_failed", res.Dispatch.Failed),
		attribute.Int("reminders.created", res.Materialize.Created),
	)

	if err != nil {
		retryable, errType := util.IsRetryableError(err)
		metrics.IncrementTickFailure(errType)
		span.RecordError(err)
		span.SetStatus(codes.Error, errType)
		log.Error("Reminder tick failed",
			zap.String("error_type", errType),
			zap.Bool("retryable", retryable),
			zap.Int("dispatched", res.Dispatch.Dispatched),
			zap.Int("created", res.Materialize.Created),
			zap.Duration("took", elapsed),
			zap.Error(err),
		)
		return
	}

	fields := []zap.Field{
		zap.Int("dispatched", res.Dispatch.Dispatched),
		zap.Int("notify_failed", res.Dispatch.Failed),
		zap.Int("created", res.Materialize.Created),
		zap.Int("skipped", res.Materialize.Skipped),
		zap.Duration("took", elapsed),
	}
	if res.Dispatch.Dispatched+res.Dispatch.Failed+res.Materialize.Created > 0 {
		log.Info("Reminder tick completed", fields...)
	} else {
		log.Debug("Reminder tick completed", fields...)
	}
}

func (s *Scheduler) runSafely(ctx context.Context, now time.Time) (res CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reminder tick panicked: %v", r)
		}
	}()
	return s.runner.RunOnce(ctx, now)
}
