package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "alarmbot/pkg/logx"
)

type countingReconciler struct {
	calls atomic.Int32
}

func (r *countingReconciler) Reconcile(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return 0, nil
}

type countingHousekeeper struct {
	calls atomic.Int32
}

func (h *countingHousekeeper) Maintain(ctx context.Context) error {
	h.calls.Add(1)
	return nil
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()
	cfg := withDefaults(Config{Enabled: true})
	if cfg.ReconcileSpec == "" || cfg.HousekeepSpec == "" {
		t.Fatalf("defaults not filled: %+v", cfg)
	}
	if cfg.JobTimeout <= 0 {
		t.Fatalf("JobTimeout = %v, want > 0", cfg.JobTimeout)
	}
}

func TestSpecVariantsParse(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &countingReconciler{}, nil, logx.Nop())
	for _, spec := range []string{"@every 10m", "@daily", "*/5 * * * *", "0 3 * * 1"} {
		if _, err := s.parser.Parse(spec); err != nil {
			t.Fatalf("Parse(%q) error: %v", spec, err)
		}
	}
	if _, err := s.parser.Parse("not-a-spec"); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, ReconcileSpec: "bogus"}, &countingReconciler{}, nil, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for bad reconcile spec")
	}
}

func TestStartStopSchedulesJobs(t *testing.T) {
	t.Parallel()
	rec := &countingReconciler{}
	hk := &countingHousekeeper{}
	s := New(Config{
		Enabled:       true,
		ReconcileSpec: "@every 1s",
		HousekeepSpec: "@every 1s",
		JobTimeout:    time.Second,
	}, rec, hk, logx.Nop())

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if rec.calls.Load() > 0 && hk.calls.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if rec.calls.Load() == 0 {
		t.Fatal("reconcile never ran")
	}
	if hk.calls.Load() == 0 {
		t.Fatal("housekeeping never ran")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestApplyRestartsOnSpecChange(t *testing.T) {
	t.Parallel()
	rec := &countingReconciler{}
	s := New(Config{Enabled: true, ReconcileSpec: "@every 10m"}, rec, nil, logx.Nop())

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(ctx)

	// Unchanged spec is a no-op.
	if err := s.Apply(ctx, Config{Enabled: true, ReconcileSpec: "@every 10m"}); err != nil {
		t.Fatalf("Apply (unchanged): %v", err)
	}
	// Disable tears the cron down.
	if err := s.Apply(ctx, Config{Enabled: false, ReconcileSpec: "@every 10m"}); err != nil {
		t.Fatalf("Apply (disable): %v", err)
	}
	if s.Enabled() {
		t.Fatal("service still enabled after disable")
	}
}
