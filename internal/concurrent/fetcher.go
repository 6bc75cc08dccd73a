package concurrent

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Result is the outcome of one item. Results keep the order of the input.
type Result[T, R any] struct {
	Item     T
	Value    R
	Err      error
	Attempts int
}

// RetryFunc decides whether a failed attempt should be retried. attempt
// starts at zero.
type RetryFunc func(err error, attempt int) bool

// Config tunes a fetch run. Zero values pick the defaults.
type Config struct {
	Workers    int           // concurrent workers, default NumCPU capped at 4
	Timeout    time.Duration // per attempt, default none beyond ctx
	MaxRetries int           // extra attempts after the first, default 2
	Backoff    time.Duration // base of the exponential backoff, default 1s
	Retry      RetryFunc     // nil never retries
}

// Metrics summarises a fetch run.
type Metrics struct {
	Total     int
	Succeeded int
	Failed    int
	Retries   int
	Elapsed   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
		if c.Workers > 4 {
			c.Workers = 4
		}
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	return c
}

// FetchAll runs fn over items on a bounded set of workers. Items not
// started before ctx is cancelled report the context error.
func FetchAll[T, R any](ctx context.Context, items []T, cfg Config, fn func(context.Context, T) (R, error)) ([]Result[T, R], Metrics) {
	cfg = cfg.withDefaults()
	start := time.Now()

	results := make([]Result[T, R], len(items))
	jobs := make(chan int)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		metrics = Metrics{Total: len(items)}
	)

	for w := 0; w < cfg.Workers && w < len(items); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := fetchWithRetry(ctx, items[i], cfg, fn)
				results[i] = res

				mu.Lock()
				if res.Err != nil {
					metrics.Failed++
				} else {
					metrics.Succeeded++
				}
				if res.Attempts > 1 {
					metrics.Retries += res.Attempts - 1
				}
				mu.Unlock()
			}
		}()
	}

	sent := 0
send:
	for ; sent < len(items); sent++ {
		select {
		case jobs <- sent:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()

	for i := sent; i < len(items); i++ {
		results[i] = Result[T, R]{Item: items[i], Err: ctx.Err()}
		metrics.Failed++
	}

	metrics.Elapsed = time.Since(start)
	return results, metrics
}

func fetchWithRetry[T, R any](ctx context.Context, item T, cfg Config, fn func(context.Context, T) (R, error)) Result[T, R] {
	res := Result[T, R]{Item: item}

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		val, err := fn(attemptCtx, item)
		cancel()

		if err == nil {
			res.Value = val
			res.Err = nil
			return res
		}
		res.Err = err

		if cfg.Retry == nil || attempt >= cfg.MaxRetries || !cfg.Retry(err, attempt) {
			if attempt > 0 {
				res.Err = fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
			}
			return res
		}

		backoff := cfg.Backoff * time.Duration(1<<uint(attempt))
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			return res
		}
	}
}
