package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
}

func TestDo_TransientFailuresThenSuccess(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	errs := []error{
		errors.New("first failure"),
		errors.New("second failure"),
		errors.New("third failure"),
	}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		e := errs[calls]
		calls++
		return e
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, errs[2]) {
		t.Errorf("Do() error = %v, want the last error %v", err, errs[2])
	}
	if len(delays) != 2 {
		t.Errorf("slept %d times, want 2", len(delays))
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	var delays []time.Duration
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	fatal := errors.New("status 401")
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return Permanent(fatal)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("Do() error = %v, want %v", err, fatal)
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		return errors.New("transient")
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDo_ZeroConfigUsesDefaults(t *testing.T) {
	var delays []time.Duration
	cfg := Config{Sleep: fakeSleep(&delays)}

	calls := 0
	_ = Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("always fails")
	})

	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxAttempts)
	}
	if len(delays) > 0 && delays[0] != DefaultBaseDelay {
		t.Errorf("first delay = %v, want %v", delays[0], DefaultBaseDelay)
	}
}
