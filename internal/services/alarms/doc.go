// Package alarms is the scheduling core: it owns the per-owner task
// registry, the wait-then-ring state machine for every live alarm, and
// the shared per-owner ring flag.
//
// Each live alarm runs as one goroutine under the service supervisor:
// it sleeps until the resolved fire instant, rings on a fixed cadence
// until the owner's ring flag is cleared, and for recurring alarms
// recomputes the next occurrence and loops. Commands (Set, Repeat,
// Stop, SetTimezone) always cancel the owner's existing tasks before
// touching storage or starting replacements, so an owner never has two
// live schedules for the same slot.
package alarms
