package world

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"
)

// SystemSubmitter accepts system actions; *World implements it.
type SystemSubmitter interface {
	SubmitSystem(Action) error
}

// DecayScheduler submits a DecayTick on every tick of its source. The tick
// itself decides whether a decay is due, so polling faster than the decay
// interval is harmless.
type DecayScheduler struct {
	target SystemSubmitter
	period time.Duration
	logger *log.Logger

	// ticks overrides the internal ticker when set.
	ticks <-chan time.Time

	fired   atomic.Uint64
	skipped atomic.Uint64
}

func NewDecayScheduler(target SystemSubmitter, period time.Duration, logger *log.Logger) *DecayScheduler {
	if period <= 0 {
		period = time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DecayScheduler{target: target, period: period, logger: logger}
}

// WithTicks drives the scheduler from an external channel instead of a ticker.
func (s *DecayScheduler) WithTicks(ch <-chan time.Time) *DecayScheduler {
	s.ticks = ch
	return s
}

// Run fires until ctx is cancelled, the tick source closes, or the target
// stops. Cancelling does not retract ticks already submitted.
func (s *DecayScheduler) Run(ctx context.Context) error {
	ticks := s.ticks
	if ticks == nil {
		t := time.NewTicker(s.period)
		defer t.Stop()
		ticks = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := s.Fire(); errors.Is(err, ErrStopped) {
				return nil
			}
		}
	}
}

// Fire submits one DecayTick.
func (s *DecayScheduler) Fire() error {
	err := s.target.SubmitSystem(DecayTick{})
	switch {
	case err == nil:
		s.fired.Add(1)
	case errors.Is(err, ErrQueueFull):
		// The next tick retries.
		s.skipped.Add(1)
	default:
		s.logger.Printf("decay tick: %v", err)
	}
	return err
}

func (s *DecayScheduler) Fired() uint64   { return s.fired.Load() }
func (s *DecayScheduler) Skipped() uint64 { return s.skipped.Load() }
