package alarms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"alarmbot/internal/alarm"
	"alarmbot/internal/eventbus"
	rtsup "alarmbot/internal/runtime/supervisor"
	"alarmbot/internal/storage"
	logx "alarmbot/pkg/logx"
)

var ErrNotStarted = errors.New("alarm service not started")

type Service struct {
	mu  sync.Mutex
	cfg Config

	log    logx.Logger
	store  storage.Store
	sender Deliverer
	bus    eventbus.Bus

	reg *registry
	sup *rtsup.Supervisor

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config, store storage.Store, sender Deliverer, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		log:    log,
		store:  store,
		sender: sender,
		bus:    bus,
		reg:    newRegistry(),
		now:    time.Now,
	}
}

// Apply updates runtime-tunable settings. RingInterval takes effect on
// the next cadence tick of any live ring cycle.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) ringInterval() time.Duration {
	s.mu.Lock()
	d := s.cfg.RingInterval
	s.mu.Unlock()
	return d
}

func (s *Service) defaultZone() string {
	s.mu.Lock()
	z := s.cfg.DefaultTimezone
	s.mu.Unlock()
	return z
}

// Start rehydrates schedules from storage. Per-alarm resolution
// failures are logged and skipped; they never block other owners.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sup != nil {
		s.mu.Unlock()
		return nil
	}
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "alarms"))),
		rtsup.WithCancelOnError(false),
	)
	s.mu.Unlock()

	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load alarms: %w", err)
	}

	byOwner := map[int64][]alarm.Alarm{}
	for _, a := range all {
		byOwner[a.Owner] = append(byOwner[a.Owner], a)
	}

	armed := 0
	for owner, list := range byOwner {
		loc := s.ownerLocation(ctx, owner)
		for _, a := range list {
			if _, err := s.spawn(owner, a, loc); err != nil {
				s.log.Error("skipping alarm", logx.Int64("owner", owner), logx.String("time", a.Time.String()), logx.Err(err))
				continue
			}
			armed++
		}
	}
	s.log.Info("schedules rehydrated", logx.Int("alarms", armed), logx.Int("owners", len(byOwner)))
	return nil
}

// Shutdown cancels every live task and waits for them to exit or ctx
// to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()

	if sup == nil {
		return nil
	}
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Set replaces the owner's one-shot alarm and returns its fire instant.
func (s *Service) Set(ctx context.Context, owner int64, tod alarm.TimeOfDay, message string) (time.Time, error) {
	a := alarm.Alarm{Owner: owner, Time: tod, Message: message, CreatedAt: s.now()}
	return s.replace(ctx, owner, a, func() error {
		return s.store.UpsertOneShot(ctx, owner, tod, message)
	})
}

// Repeat replaces the owner's recurring alarm at tod and returns its
// fire instant.
func (s *Service) Repeat(ctx context.Context, owner int64, tod alarm.TimeOfDay, days alarm.Weekdays, message string) (time.Time, error) {
	a := alarm.Alarm{Owner: owner, Time: tod, Message: message, Repeat: days, CreatedAt: s.now()}
	return s.replace(ctx, owner, a, func() error {
		return s.store.UpsertRecurring(ctx, owner, tod, days, message)
	})
}

// replace implements the shared command path: cancel existing tasks
// first, then persist, then arm the owner's resulting alarm set. A
// persistence failure is logged and the in-memory schedule still
// proceeds for this session.
func (s *Service) replace(ctx context.Context, owner int64, next alarm.Alarm, persist func() error) (time.Time, error) {
	s.reg.cancelAll(owner)

	existing, err := s.store.ListForOwner(ctx, owner)
	if err != nil {
		s.log.Warn("listing alarms failed, scheduling in memory only", logx.Int64("owner", owner), logx.Err(err))
		existing = nil
	}
	if err := persist(); err != nil {
		s.log.Warn("persisting alarm failed, schedule proceeds for this session", logx.Int64("owner", owner), logx.Err(err))
	}

	desired := applyReplacement(existing, next)
	loc := s.ownerLocation(ctx, owner)

	var fireAt time.Time
	for _, a := range desired {
		at, err := s.spawn(owner, a, loc)
		if err != nil {
			s.log.Error("arming alarm failed", logx.Int64("owner", owner), logx.String("time", a.Time.String()), logx.Err(err))
			continue
		}
		if sameSlot(a, next) {
			fireAt = at
		}
	}
	if fireAt.IsZero() {
		return time.Time{}, alarm.ErrNoOccurrence
	}

	if s.bus != nil {
		now := s.now()
		s.bus.Publish(eventbus.Event{Type: "alarm.set", Time: now, Data: AlarmEvent{Owner: owner, Time: next.Time.String(), Recurring: next.Recurring(), At: now}})
	}
	return fireAt, nil
}

// applyReplacement mirrors the storage replacement rule in memory: a
// one-shot supersedes all one-shots, a recurring alarm supersedes the
// recurring alarm at the same time-of-day.
func applyReplacement(existing []alarm.Alarm, next alarm.Alarm) []alarm.Alarm {
	out := make([]alarm.Alarm, 0, len(existing)+1)
	for _, a := range existing {
		if sameSlot(a, next) {
			continue
		}
		out = append(out, a)
	}
	return append(out, next)
}

func sameSlot(a, b alarm.Alarm) bool {
	if a.Recurring() != b.Recurring() {
		return false
	}
	return !a.Recurring() || a.Time == b.Time
}

// Stop silences any ringing, deletes the owner's one-shot alarms and
// re-arms the recurring ones.
func (s *Service) Stop(ctx context.Context, owner int64) (StopResult, error) {
	res := StopResult{WasRinging: s.reg.isRinging(owner)}
	res.Cancelled = s.reg.cancelAll(owner)

	if err := s.store.DeleteOneShot(ctx, owner); err != nil {
		s.log.Warn("deleting one-shot alarms failed", logx.Int64("owner", owner), logx.Err(err))
	}

	remaining, err := s.store.ListForOwner(ctx, owner)
	if err != nil {
		s.log.Warn("listing alarms failed, nothing re-armed", logx.Int64("owner", owner), logx.Err(err))
		remaining = nil
	}
	loc := s.ownerLocation(ctx, owner)
	for _, a := range remaining {
		if !a.Recurring() {
			continue
		}
		if _, err := s.spawn(owner, a, loc); err != nil {
			s.log.Error("re-arming alarm failed", logx.Int64("owner", owner), logx.String("time", a.Time.String()), logx.Err(err))
			continue
		}
		res.Rearmed++
	}

	if res.WasRinging && s.bus != nil {
		now := s.now()
		s.bus.Publish(eventbus.Event{Type: "ring.stopped", Time: now, Data: AlarmEvent{Owner: owner, At: now}})
	}
	return res, nil
}

// Status reports the owner's zone, ring state and scheduled alarms
// with their next fire instants. Read-only.
func (s *Service) Status(ctx context.Context, owner int64) (OwnerStatus, error) {
	zone, err := s.store.Timezone(ctx, owner)
	if err != nil {
		zone = s.defaultZone()
	}
	loc, err := alarm.ValidateZone(zone)
	if err != nil {
		loc, zone = time.UTC, "UTC"
	}

	list, err := s.store.ListForOwner(ctx, owner)
	if err != nil {
		return OwnerStatus{}, err
	}

	st := OwnerStatus{Zone: zone, Ringing: s.reg.isRinging(owner)}
	for _, a := range list {
		next, err := alarm.NextFire(a.Time, a.Repeat, s.now(), loc)
		if err != nil {
			s.log.Error("status resolution failed", logx.Int64("owner", owner), logx.String("time", a.Time.String()), logx.Err(err))
			continue
		}
		st.Entries = append(st.Entries, Entry{Alarm: a, Next: next})
	}
	return st, nil
}

// SetTimezone persists the owner's zone and re-arms all of their
// alarms under it. Returns the number of re-armed alarms.
func (s *Service) SetTimezone(ctx context.Context, owner int64, zone string) (int, error) {
	if err := s.store.SetTimezone(ctx, owner, zone); err != nil {
		return 0, err
	}

	s.reg.cancelAll(owner)
	list, err := s.store.ListForOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	loc := s.ownerLocation(ctx, owner)
	armed := 0
	for _, a := range list {
		if _, err := s.spawn(owner, a, loc); err != nil {
			s.log.Error("re-arming alarm failed", logx.Int64("owner", owner), logx.String("time", a.Time.String()), logx.Err(err))
			continue
		}
		armed++
	}
	return armed, nil
}

// Reconcile re-arms owners that have persisted alarms but no live
// tasks (e.g. after a task was dropped by a resolution failure). Run
// periodically by the maintenance service.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	byOwner := map[int64][]alarm.Alarm{}
	for _, a := range all {
		byOwner[a.Owner] = append(byOwner[a.Owner], a)
	}

	rearmed := 0
	for owner, list := range byOwner {
		if s.reg.taskCount(owner) > 0 || s.reg.isRinging(owner) {
			continue
		}
		loc := s.ownerLocation(ctx, owner)
		for _, a := range list {
			if _, err := s.spawn(owner, a, loc); err != nil {
				s.log.Error("reconcile arming failed", logx.Int64("owner", owner), logx.String("time", a.Time.String()), logx.Err(err))
				continue
			}
			rearmed++
		}
	}
	if rearmed > 0 {
		s.log.Info("reconcile re-armed schedules", logx.Int("alarms", rearmed))
	}
	return rearmed, nil
}

func (s *Service) ownerLocation(ctx context.Context, owner int64) *time.Location {
	zone, err := s.store.Timezone(ctx, owner)
	if err != nil {
		s.log.Warn("timezone lookup failed, using default", logx.Int64("owner", owner), logx.Err(err))
		zone = s.defaultZone()
	}
	loc, err := alarm.ValidateZone(zone)
	if err != nil {
		s.log.Warn("stored timezone invalid, using UTC", logx.Int64("owner", owner), logx.String("zone", zone))
		return time.UTC
	}
	return loc
}

// spawn resolves the alarm's next fire instant, registers a task and
// starts its scheduler goroutine.
func (s *Service) spawn(owner int64, a alarm.Alarm, loc *time.Location) (time.Time, error) {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return time.Time{}, ErrNotStarted
	}

	next, err := alarm.NextFire(a.Time, a.Repeat, s.now(), loc)
	if err != nil {
		return time.Time{}, err
	}

	taskCtx, cancel := context.WithCancel(sup.Context())
	t := &task{id: uuid.New(), alarm: a, cancel: cancel}
	s.reg.add(owner, t)

	name := fmt.Sprintf("alarm.%d.%s", owner, t.id.String()[:8])
	sup.Go0(name, func(context.Context) {
		s.runAlarm(taskCtx, owner, t, loc, next)
	})
	return next, nil
}

// runAlarm is the per-alarm state machine: wait until the fire
// instant, ring, then either re-arm (recurring) or finish (one-shot).
func (s *Service) runAlarm(ctx context.Context, owner int64, t *task, loc *time.Location, next time.Time) {
	defer t.cancel()
	defer s.reg.remove(owner, t.id)

	for {
		d := next.Sub(s.now())
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if s.bus != nil {
			now := s.now()
			s.bus.Publish(eventbus.Event{Type: "alarm.fired", Time: now, Data: AlarmEvent{Owner: owner, Time: t.alarm.Time.String(), Recurring: t.alarm.Recurring(), At: now}})
		}
		s.ring(ctx, owner, t.alarm, loc)

		if !t.alarm.Recurring() {
			return
		}
		var err error
		next, err = alarm.NextFire(t.alarm.Time, t.alarm.Repeat, s.now(), loc)
		if err != nil {
			s.log.Error("next occurrence resolution failed, dropping schedule", logx.Int64("owner", owner), logx.String("time", t.alarm.Time.String()), logx.Err(err))
			return
		}
	}
}
