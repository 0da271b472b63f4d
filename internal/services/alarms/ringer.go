package alarms

import (
	"context"
	"fmt"
	"time"

	"alarmbot/internal/alarm"
	"alarmbot/internal/eventbus"
	kit "alarmbot/internal/transport"
	logx "alarmbot/pkg/logx"
)

// ring delivers notifications on the configured cadence until the
// owner's ring flag is cleared, the task is cancelled or a delivery
// fails. The flag is shared across all of an owner's ring cycles, so
// one stop silences all of them. It always leaves the flag in a state
// consistent with why the cycle ended: cancellation and delivery
// errors clear it.
func (s *Service) ring(ctx context.Context, owner int64, a alarm.Alarm, loc *time.Location) {
	s.reg.setRinging(owner, true)
	if s.bus != nil {
		now := s.now()
		s.bus.Publish(eventbus.Event{Type: "ring.started", Time: now, Data: AlarmEvent{Owner: owner, Time: a.Time.String(), Recurring: a.Recurring(), At: now}})
	}

	target := kit.ChatTarget{ChatID: owner}
	for {
		if ctx.Err() != nil {
			s.reg.setRinging(owner, false)
			return
		}
		if !s.reg.isRinging(owner) {
			return
		}

		text := ringText(a, s.now().In(loc))
		if err := s.sender.Deliver(ctx, target, text, nil); err != nil {
			s.log.Warn("ring delivery failed, ending cycle", logx.Int64("owner", owner), logx.Err(err))
			s.reg.setRinging(owner, false)
			return
		}

		timer := time.NewTimer(s.ringInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.reg.setRinging(owner, false)
			return
		case <-timer.C:
		}
	}
}

func ringText(a alarm.Alarm, now time.Time) string {
	msg := a.Message
	if msg == "" {
		msg = "Alarm!"
	}
	return fmt.Sprintf("⏰ %s %s\nSend /stop (or just \"stop\") to silence.", now.Format("15:04"), msg)
}
