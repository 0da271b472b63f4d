package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alarmbot/internal/alarm"
	"alarmbot/internal/services/alarms"
	logx "alarmbot/pkg/logx"
)

// AlarmsPort is the slice of the alarm service the handlers need.
type AlarmsPort interface {
	Set(ctx context.Context, owner int64, tod alarm.TimeOfDay, message string) (time.Time, error)
	Repeat(ctx context.Context, owner int64, tod alarm.TimeOfDay, days alarm.Weekdays, message string) (time.Time, error)
	Stop(ctx context.Context, owner int64) (alarms.StopResult, error)
	Status(ctx context.Context, owner int64) (alarms.OwnerStatus, error)
	SetTimezone(ctx context.Context, owner int64, zone string) (int, error)
}

const welcomeText = `Hi! I am an alarm bot.

/set HH:MM [message] - one-shot alarm
/repeat HH:MM DAYS [message] - recurring alarm (DAYS: mon,wed or daily, weekdays, weekends)
/stop - silence ringing and remove one-shot alarms
/status - list your alarms
/timezone ZONE - set your IANA timezone, e.g. Europe/Moscow

When an alarm rings I will keep messaging you until you send /stop or just "stop".`

const (
	usageSet      = "Usage: /set HH:MM [message]\nExample: /set 07:30 Wake up"
	usageRepeat   = "Usage: /repeat HH:MM DAYS [message]\nExample: /repeat 07:30 mon,wed,fri Gym"
	usageTimezone = "Usage: /timezone ZONE\nExample: /timezone Europe/Moscow"
)

// Commands builds the bot command set bound to the alarm service.
func Commands(port AlarmsPort) []Command {
	cmds := []Command{
		{
			Name:        "start",
			Description: "what this bot does",
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, welcomeText)
			},
		},
		{
			Name:        "set",
			Description: "set a one-shot alarm",
			Usage:       usageSet,
			Handle:      handleSet(port),
		},
		{
			Name:        "repeat",
			Description: "set a recurring alarm",
			Usage:       usageRepeat,
			Handle:      handleRepeat(port),
		},
		{
			Name:        "stop",
			Description: "silence ringing, remove one-shot alarms",
			Handle:      handleStop(port),
		},
		{
			Name:        "status",
			Description: "list your alarms",
			Handle:      handleStatus(port),
		},
		{
			Name:        "timezone",
			Description: "set your timezone",
			Usage:       usageTimezone,
			Handle:      handleTimezone(port),
		},
	}
	cmds = append(cmds, Command{
		Name:        "help",
		Description: "show help",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, welcomeText)
		},
	})
	return cmds
}

func handleSet(port AlarmsPort) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) < 1 {
			return req.Reply(ctx, usageSet)
		}
		tod, err := alarm.ParseTimeOfDay(req.Args[0])
		if err != nil {
			return req.Reply(ctx, "I could not read that time.\n"+usageSet)
		}
		message := strings.Join(req.Args[1:], " ")

		next, err := port.Set(ctx, req.FromID, tod, message)
		if err != nil {
			req.Logger.Error("set failed", logx.Err(err))
			return req.Reply(ctx, "Something went wrong, the alarm was not set.")
		}
		return req.Reply(ctx, fmt.Sprintf("Alarm set for %s (in %s).", tod, alarm.FormatUntil(time.Until(next))))
	}
}

func handleRepeat(port AlarmsPort) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) < 2 {
			return req.Reply(ctx, usageRepeat)
		}
		tod, err := alarm.ParseTimeOfDay(req.Args[0])
		if err != nil {
			return req.Reply(ctx, "I could not read that time.\n"+usageRepeat)
		}
		days, err := alarm.ParseWeekdays(req.Args[1])
		if err != nil {
			return req.Reply(ctx, "I could not read those weekdays.\n"+usageRepeat)
		}
		message := strings.Join(req.Args[2:], " ")

		next, err := port.Repeat(ctx, req.FromID, tod, days, message)
		if err != nil {
			req.Logger.Error("repeat failed", logx.Err(err))
			return req.Reply(ctx, "Something went wrong, the alarm was not set.")
		}
		return req.Reply(ctx, fmt.Sprintf("Recurring alarm set for %s on %s (next in %s).", tod, days, alarm.FormatUntil(time.Until(next))))
	}
}

func handleStop(port AlarmsPort) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		res, err := port.Stop(ctx, req.FromID)
		if err != nil {
			req.Logger.Error("stop failed", logx.Err(err))
			return req.Reply(ctx, "Something went wrong.")
		}
		switch {
		case res.WasRinging && res.Rearmed > 0:
			return req.Reply(ctx, fmt.Sprintf("Silenced. %d recurring alarm(s) stay scheduled.", res.Rearmed))
		case res.WasRinging:
			return req.Reply(ctx, "Silenced.")
		case res.Cancelled > 0 && res.Rearmed > 0:
			return req.Reply(ctx, fmt.Sprintf("One-shot alarms removed. %d recurring alarm(s) stay scheduled.", res.Rearmed))
		case res.Cancelled > 0:
			return req.Reply(ctx, "Alarms stopped.")
		default:
			return req.Reply(ctx, "Nothing was ringing or scheduled.")
		}
	}
}

func handleStatus(port AlarmsPort) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		st, err := port.Status(ctx, req.FromID)
		if err != nil {
			req.Logger.Error("status failed", logx.Err(err))
			return req.Reply(ctx, "Something went wrong.")
		}
		return req.Reply(ctx, formatStatus(st))
	}
}

func formatStatus(st alarms.OwnerStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timezone: %s\n", st.Zone)
	if st.Ringing {
		b.WriteString("🔔 Ringing now! Send /stop to silence.\n")
	}
	if len(st.Entries) == 0 {
		b.WriteString("No alarms scheduled.")
		return b.String()
	}
	for _, e := range st.Entries {
		msg := ""
		if e.Alarm.Message != "" {
			msg = " " + e.Alarm.Message
		}
		fmt.Fprintf(&b, "%s %s (in %s)%s\n", e.Alarm.Time, e.Alarm.Repeat, alarm.FormatUntil(time.Until(e.Next)), msg)
	}
	return strings.TrimRight(b.String(), "\n")
}

func handleTimezone(port AlarmsPort) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) < 1 {
			return req.Reply(ctx, usageTimezone)
		}
		zone := req.Args[0]
		n, err := port.SetTimezone(ctx, req.FromID, zone)
		if err != nil {
			if errors.Is(err, alarm.ErrInvalidTimezone) {
				return req.Reply(ctx, "Unknown timezone.\n"+usageTimezone)
			}
			req.Logger.Error("timezone failed", logx.Err(err))
			return req.Reply(ctx, "Something went wrong.")
		}
		if n > 0 {
			return req.Reply(ctx, fmt.Sprintf("Timezone set to %s, %d alarm(s) rescheduled.", zone, n))
		}
		return req.Reply(ctx, "Timezone set to "+zone+".")
	}
}
