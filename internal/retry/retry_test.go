package retry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func classify(err error) (bool, time.Duration) {
	return errors.Is(err, errTransient), 0
}

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	var delays []time.Duration
	calls := 0
	got, err := Do(context.Background(), Options{
		MaxAttempts: 3,
		Backoff:     Exponential(100 * time.Millisecond),
		Sleep:       recordingSleep(&delays),
	}, classify, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Do = %q, %v", got, err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
}

func TestDoStopsAtMaxAttemptsWithoutTrailingSleep(t *testing.T) {
	var delays []time.Duration
	calls := 0
	_, err := Do(context.Background(), Options{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second),
		Sleep:       recordingSleep(&delays),
	}, classify, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(delays))
	}
}

func TestDoDoesNotRetryFatalErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{MaxAttempts: 3, Sleep: recordingSleep(new([]time.Duration))}, classify,
		func(context.Context) (int, error) {
			calls++
			return 0, errFatal
		})
	if !errors.Is(err, errFatal) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestDoHonorsRetryAfterFloor(t *testing.T) {
	var delays []time.Duration
	floorClassify := func(error) (bool, time.Duration) { return true, 5 * time.Second }
	_, _ = Do(context.Background(), Options{
		MaxAttempts: 2,
		Backoff:     Exponential(time.Second),
		Sleep:       recordingSleep(&delays),
	}, floorClassify, func(context.Context) (int, error) {
		return 0, errTransient
	})
	if !reflect.DeepEqual(delays, []time.Duration{5 * time.Second}) {
		t.Fatalf("delays = %v", delays)
	}
}

func TestDoReportsRetries(t *testing.T) {
	var attempts []int
	_, _ = Do(context.Background(), Options{
		MaxAttempts: 3,
		Sleep:       recordingSleep(new([]time.Duration)),
		OnRetry:     func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
	}, classify, func(context.Context) (int, error) { return 0, errTransient })
	if !reflect.DeepEqual(attempts, []int{1, 2}) {
		t.Fatalf("attempts = %v", attempts)
	}
}

func TestDoCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, Options{MaxAttempts: 3, Backoff: Exponential(time.Hour)}, classify,
		func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v calls = %d", err, calls)
	}
}

func TestSleepZero(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("Sleep(0) = %v", err)
	}
}
