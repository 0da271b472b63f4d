// Package notify delivers outgoing bot messages through the transport
// adapter with a shared token-bucket rate limit and bounded retries.
//
// Alarm rings re-send identical text on a fixed cadence, so there is
// deliberately no dedup layer here.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"alarmbot/internal/eventbus"
	kit "alarmbot/internal/transport"
	logx "alarmbot/pkg/logx"
)

var ErrNoAdapter = errors.New("notifier has no adapter")

type Config struct {
	// RatePerSec caps outgoing sends across all chats. Telegram allows
	// roughly 30 msg/sec globally; stay well under it.
	RatePerSec int

	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

type NotificationEvent struct {
	ChatID int64
	At     time.Time
	Error  string
}

// Service is a synchronous rate-limited sender. Safe for concurrent use;
// many ring loops share one limiter.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Deliver sends text to the target chat, waiting on the shared rate limiter
// and retrying transient failures with exponential backoff. It returns the
// last error once attempts are exhausted.
func (s *Service) Deliver(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	s.mu.Unlock()

	if ad == nil {
		return ErrNoAdapter
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if text == "" {
		return nil
	}

	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}

		// Bound per-send call. Keep tight to avoid hanging ring loops.
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := ad.SendText(callCtx, to, text, opt)
		cancel()
		if err == nil {
			if s.bus != nil {
				now := time.Now()
				s.bus.Publish(eventbus.Event{Type: "notify.sent", Time: now, Data: NotificationEvent{ChatID: to.ChatID, At: now}})
			}
			return nil
		}
		lastErr = err
		s.log.Debug("send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}

		delay := retryDelay(cfg, attempt)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		}
	}

	if s.bus != nil {
		now := time.Now()
		s.bus.Publish(eventbus.Event{Type: "notify.failed", Time: now, Data: NotificationEvent{ChatID: to.ChatID, At: now, Error: lastErr.Error()}})
	}
	return lastErr
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			return cfg.RetryMaxDelay
		}
	}
	return d
}
