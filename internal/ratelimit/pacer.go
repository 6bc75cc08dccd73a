package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MinScanDelay is the shortest pause allowed between listing fetches.
// The marketplace throttles per token below this.
const MinScanDelay = 400 * time.Millisecond

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer enforces a fixed pause after every upstream call, whether the call
// succeeded or not.
type Pacer struct {
	delay time.Duration
	sleep SleepFunc

	mu     sync.Mutex
	pauses int
	total  time.Duration
}

// NewPacer creates a pacer. Delays below MinScanDelay are raised to it.
func NewPacer(delay time.Duration) *Pacer {
	return NewPacerWithSleep(delay, Sleep)
}

// NewPacerWithSleep creates a pacer with a custom sleep, mainly for tests.
func NewPacerWithSleep(delay time.Duration, sleep SleepFunc) *Pacer {
	if delay < MinScanDelay {
		delay = MinScanDelay
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{delay: delay, sleep: sleep}
}

// Pause blocks for the configured delay. It returns early with the context
// error when ctx is cancelled.
func (p *Pacer) Pause(ctx context.Context) error {
	err := p.sleep(ctx, p.delay)

	p.mu.Lock()
	p.pauses++
	p.total += p.delay
	p.mu.Unlock()

	return err
}

// Delay returns the effective pause length.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Stats returns how many pauses were taken and their nominal total.
func (p *Pacer) Stats() (pauses int, total time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses, p.total
}

// Sleep is a context-aware time.Sleep.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
