package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

var wib = time.FixedZone("WIB", 7*60*60)

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	s := New(wib, nil)
	noop := func(context.Context) {}

	if err := s.Register("poll", "*/2 6-20 * * *", noop); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := s.Register("poll", "0 7 * * 1-5", noop); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
	if err := s.Register("broken", "every two minutes", noop); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.Register("", "0 0 * * *", noop); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.Register("nil", "0 0 * * *", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}

	if got := s.Jobs(); len(got) != 1 || got[0] != "poll" {
		t.Fatalf("unexpected jobs: %v", got)
	}
}

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()

	s := New(wib, nil)
	noop := func(context.Context) {}
	for name, spec := range map[string]string{
		"poll":      "*/2 6-20 * * *",
		"morning":   "0 7 * * 1-5",
		"afternoon": "0 17 * * 1-5",
		"reset":     "0 0 * * *",
	} {
		if err := s.Register(name, spec, noop); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	// Friday 2026-10-16 20:59 WIB
	after := time.Date(2026, 10, 16, 13, 59, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"poll":      time.Date(2026, 10, 17, 6, 0, 0, 0, wib),
		"morning":   time.Date(2026, 10, 19, 7, 0, 0, 0, wib),
		"afternoon": time.Date(2026, 10, 19, 17, 0, 0, 0, wib),
		"reset":     time.Date(2026, 10, 17, 0, 0, 0, 0, wib),
	}
	for name, want := range cases {
		got, err := s.Next(name, after)
		if err != nil {
			t.Fatalf("Next %s: %v", name, err)
		}
		if !got.Equal(want) {
			t.Fatalf("Next %s: expected %v, got %v", name, want, got)
		}
	}

	if _, err := s.Next("missing", after); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestTriggerRunsHandler(t *testing.T) {
	t.Parallel()

	s := New(wib, nil)
	calls := 0
	if err := s.Register("reset", "0 0 * * *", func(ctx context.Context) {
		if ctx == nil {
			t.Error("handler received nil context")
		}
		calls++
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.Trigger("reset"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if err := s.Trigger("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := New(wib, nil)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
