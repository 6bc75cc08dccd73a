package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchAll_KeepsOrder(t *testing.T) {
	items := []int{5, 3, 8, 1, 9, 2}
	results, metrics := FetchAll(context.Background(), items, Config{Workers: 3}, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Item != items[i] || r.Value != items[i]*10 || r.Err != nil {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if metrics.Succeeded != 6 || metrics.Failed != 0 || metrics.Total != 6 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
}

func TestFetchAll_BoundsWorkers(t *testing.T) {
	var active, peak int32
	items := make([]int, 20)

	FetchAll(context.Background(), items, Config{Workers: 2}, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return struct{}{}, nil
	})

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak)
	}
}

var errTransient = errors.New("transient")

func TestFetchAll_Retries(t *testing.T) {
	var calls int32
	cfg := Config{
		Workers:    1,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Retry:      func(err error, _ int) bool { return errors.Is(err, errTransient) },
	}

	results, metrics := FetchAll(context.Background(), []string{"op01"}, cfg, func(_ context.Context, _ string) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, errTransient
		}
		return 7, nil
	})

	if results[0].Err != nil || results[0].Value != 7 || results[0].Attempts != 3 {
		t.Errorf("unexpected result %+v", results[0])
	}
	if metrics.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", metrics.Retries)
	}
}

func TestFetchAll_NoRetryForPermanentErrors(t *testing.T) {
	permanent := errors.New("unauthorized")
	cfg := Config{Workers: 1, Backoff: time.Millisecond, Retry: func(err error, _ int) bool { return errors.Is(err, errTransient) }}

	results, metrics := FetchAll(context.Background(), []int{1}, cfg, func(_ context.Context, _ int) (int, error) {
		return 0, permanent
	})

	if !errors.Is(results[0].Err, permanent) || results[0].Attempts != 1 {
		t.Errorf("unexpected result %+v", results[0])
	}
	if metrics.Failed != 1 {
		t.Errorf("expected 1 failure, got %+v", metrics)
	}
}

func TestFetchAll_GivesUpAfterMaxRetries(t *testing.T) {
	cfg := Config{Workers: 1, MaxRetries: 1, Backoff: time.Millisecond, Retry: func(error, int) bool { return true }}

	results, _ := FetchAll(context.Background(), []int{1}, cfg, func(_ context.Context, _ int) (int, error) {
		return 0, errTransient
	})

	if !errors.Is(results[0].Err, errTransient) || results[0].Attempts != 2 {
		t.Errorf("unexpected result %+v", results[0])
	}
}

func TestFetchAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, metrics := FetchAll(ctx, []int{1, 2, 3}, Config{Workers: 1}, func(ctx context.Context, _ int) (int, error) {
		return 0, ctx.Err()
	})

	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %d: expected context.Canceled, got %v", i, r.Err)
		}
	}
	if metrics.Failed != 3 {
		t.Errorf("expected 3 failures, got %+v", metrics)
	}
}

func TestFetchAll_PerAttemptTimeout(t *testing.T) {
	results, _ := FetchAll(context.Background(), []int{1}, Config{Timeout: 10 * time.Millisecond}, func(ctx context.Context, _ int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results[0].Err)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	results, metrics := FetchAll(context.Background(), []int(nil), Config{}, func(context.Context, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	if len(results) != 0 || metrics.Total != 0 {
		t.Errorf("unexpected output %v %+v", results, metrics)
	}
}
