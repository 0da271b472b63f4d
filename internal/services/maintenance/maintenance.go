// Package maintenance runs periodic background jobs: the schedule
// reconciler, which re-arms persisted alarms that lost their live task,
// and storage housekeeping.
package maintenance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "alarmbot/pkg/logx"
)

type Config struct {
	Enabled bool
	// ReconcileSpec is a cron spec or "@every" expression.
	ReconcileSpec string
	// HousekeepSpec schedules storage housekeeping (checkpoint, optimize).
	HousekeepSpec string
	JobTimeout    time.Duration
}

// Reconciler is the alarm service's reconcile entrypoint.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Housekeeper is implemented by stores that benefit from periodic upkeep.
type Housekeeper interface {
	Maintain(ctx context.Context) error
}

type Service struct {
	mu  sync.Mutex
	cfg Config

	log logx.Logger
	rec Reconciler
	hk  Housekeeper // may be nil

	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, rec Reconciler, hk Housekeeper, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    withDefaults(cfg),
		log:    log,
		rec:    rec,
		hk:     hk,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func withDefaults(cfg Config) Config {
	if strings.TrimSpace(cfg.ReconcileSpec) == "" {
		cfg.ReconcileSpec = "@every 10m"
	}
	if strings.TrimSpace(cfg.HousekeepSpec) == "" {
		cfg.HousekeepSpec = "@daily"
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	return cfg
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return nil
	}

	sched, err := s.parser.Parse(s.cfg.ReconcileSpec)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(s.parser))
	c.Schedule(sched, cron.FuncJob(func() { s.runReconcile(ctx) }))
	if s.hk != nil {
		hsched, err := s.parser.Parse(s.cfg.HousekeepSpec)
		if err != nil {
			return err
		}
		c.Schedule(hsched, cron.FuncJob(func() { s.runHousekeep(ctx) }))
	}
	c.Start()
	s.c = c
	s.log.Info("maintenance started",
		logx.String("reconcile", s.cfg.ReconcileSpec),
		logx.String("housekeep", s.cfg.HousekeepSpec))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	done := c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply restarts the cron schedule when the trigger expression changed.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	unchanged := s.cfg.Enabled == cfg.Enabled &&
		s.cfg.ReconcileSpec == cfg.ReconcileSpec &&
		s.cfg.HousekeepSpec == cfg.HousekeepSpec
	s.cfg.JobTimeout = cfg.JobTimeout
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := s.Stop(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return s.Start(ctx)
}

func (s *Service) runReconcile(ctx context.Context) {
	s.mu.Lock()
	timeout := s.cfg.JobTimeout
	s.mu.Unlock()

	jctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := s.rec.Reconcile(jctx)
	if err != nil {
		s.log.Warn("reconcile failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("reconcile done", logx.Int("rearmed", n))
	}
}

func (s *Service) runHousekeep(ctx context.Context) {
	s.mu.Lock()
	timeout := s.cfg.JobTimeout
	s.mu.Unlock()

	jctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.hk.Maintain(jctx); err != nil {
		s.log.Warn("housekeeping failed", logx.Err(err))
		return
	}
	s.log.Debug("housekeeping done")
}
