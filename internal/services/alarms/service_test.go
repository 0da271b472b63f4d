package alarms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarmbot/internal/alarm"
	"alarmbot/internal/eventbus"
	kit "alarmbot/internal/transport"
	logx "alarmbot/pkg/logx"
)

// testBase is a Monday. Alarms set for 09:00 fire 100ms after start
// because the service clock is frozen at testBase.
var testBase = time.Date(2025, 5, 5, 8, 59, 59, 900_000_000, time.UTC)

var nineAM = alarm.TimeOfDay{Hour: 9, Minute: 0}

type fakeStore struct {
	mu     sync.Mutex
	alarms []alarm.Alarm
	zones  map[int64]string

	failList   bool
	failUpsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{zones: map[int64]string{}}
}

func (f *fakeStore) LoadAll(context.Context) ([]alarm.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alarm.Alarm(nil), f.alarms...), nil
}

func (f *fakeStore) ListForOwner(_ context.Context, owner int64) ([]alarm.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errors.New("list failed")
	}
	var out []alarm.Alarm
	for _, a := range f.alarms {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertOneShot(_ context.Context, owner int64, tod alarm.TimeOfDay, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errors.New("upsert failed")
	}
	kept := f.alarms[:0]
	for _, a := range f.alarms {
		if a.Owner == owner && !a.Recurring() {
			continue
		}
		kept = append(kept, a)
	}
	f.alarms = append(kept, alarm.Alarm{Owner: owner, Time: tod, Message: message, CreatedAt: testBase})
	return nil
}

func (f *fakeStore) UpsertRecurring(_ context.Context, owner int64, tod alarm.TimeOfDay, repeat alarm.Weekdays, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errors.New("upsert failed")
	}
	kept := f.alarms[:0]
	for _, a := range f.alarms {
		if a.Owner == owner && a.Recurring() && a.Time == tod {
			continue
		}
		kept = append(kept, a)
	}
	f.alarms = append(kept, alarm.Alarm{Owner: owner, Time: tod, Message: message, Repeat: repeat, CreatedAt: testBase})
	return nil
}

func (f *fakeStore) DeleteOneShot(_ context.Context, owner int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.alarms[:0]
	for _, a := range f.alarms {
		if a.Owner == owner && !a.Recurring() {
			continue
		}
		kept = append(kept, a)
	}
	f.alarms = kept
	return nil
}

func (f *fakeStore) DeleteAll(_ context.Context, owner int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.alarms[:0]
	for _, a := range f.alarms {
		if a.Owner != owner {
			kept = append(kept, a)
		}
	}
	f.alarms = kept
	return nil
}

func (f *fakeStore) Timezone(_ context.Context, owner int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if z, ok := f.zones[owner]; ok {
		return z, nil
	}
	return "UTC", nil
}

func (f *fakeStore) SetTimezone(_ context.Context, owner int64, zone string) error {
	if _, err := alarm.ValidateZone(zone); err != nil {
		return err
	}
	f.mu.Lock()
	f.zones[owner] = zone
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) count(owner int64, recurring bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.alarms {
		if a.Owner == owner && a.Recurring() == recurring {
			n++
		}
	}
	return n
}

type fakeSender struct {
	mu    sync.Mutex
	fail  int // number of upcoming sends to fail
	sends chan string
}

func newFakeSender() *fakeSender {
	return &fakeSender{sends: make(chan string, 256)}
}

func (f *fakeSender) Deliver(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) error {
	f.mu.Lock()
	shouldFail := f.fail > 0
	if shouldFail {
		f.fail--
	}
	f.mu.Unlock()
	if shouldFail {
		return errors.New("delivery failed")
	}
	select {
	case f.sends <- text:
	default:
	}
	return nil
}

func (f *fakeSender) failNext(n int) {
	f.mu.Lock()
	f.fail = n
	f.mu.Unlock()
}

func waitSend(t *testing.T, ch <-chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case text := <-ch:
		return text
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a ring notification")
		return ""
	}
}

func drain(ch <-chan string) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

func startTestService(t *testing.T, st *fakeStore, sender *fakeSender) *Service {
	t.Helper()
	svc := New(Config{RingInterval: 30 * time.Millisecond}, st, sender, logx.Nop(), eventbus.New())
	svc.now = func() time.Time { return testBase }
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func TestSetFiresAndRingsUntilStopped(t *testing.T) {
	st := newFakeStore()
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	ctx := context.Background()

	next, err := svc.Set(ctx, 1, nineAM, "wake up")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC), next)

	first := waitSend(t, sender.sends, 2*time.Second)
	assert.Contains(t, first, "wake up")
	assert.Contains(t, first, "09:00")
	// The ring repeats on its cadence until stopped.
	waitSend(t, sender.sends, 2*time.Second)
	assert.True(t, svc.reg.isRinging(1))

	res, err := svc.Stop(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.WasRinging)
	assert.Equal(t, 0, res.Rearmed)
	assert.False(t, svc.reg.isRinging(1))
	assert.Equal(t, 0, st.count(1, false), "stop deletes one-shot alarms")

	// Let any in-flight send finish, then verify silence.
	time.Sleep(100 * time.Millisecond)
	drain(sender.sends)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, drain(sender.sends), "no notification after stop was processed")
}

func TestSetReplacesExistingSchedule(t *testing.T) {
	st := newFakeStore()
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	ctx := context.Background()

	_, err := svc.Set(ctx, 1, nineAM, "old")
	require.NoError(t, err)
	_, err = svc.Set(ctx, 1, nineAM, "new")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.reg.taskCount(1), "replacement leaves a single live task")
	assert.Equal(t, 1, st.count(1, false))

	text := waitSend(t, sender.sends, 2*time.Second)
	assert.Contains(t, text, "new")

	// No cycle from the replaced alarm may ever ring.
	time.Sleep(150 * time.Millisecond)
	for {
		select {
		case text := <-sender.sends:
			assert.NotContains(t, text, "old")
		default:
			return
		}
	}
}

func TestStopPreservesRecurring(t *testing.T) {
	st := newFakeStore()
	require.NoError(t, st.UpsertRecurring(context.Background(), 1, alarm.TimeOfDay{Hour: 7, Minute: 0}, alarm.Weekdays{0, 1, 2, 3, 4}, "gym"))
	require.NoError(t, st.UpsertOneShot(context.Background(), 1, alarm.TimeOfDay{Hour: 23, Minute: 0}, "call"))
	sender := newFakeSender()
	svc := startTestService(t, st, sender)

	assert.Equal(t, 2, svc.reg.taskCount(1), "startup rehydrates persisted alarms")

	res, err := svc.Stop(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, res.WasRinging)
	assert.Equal(t, 2, res.Cancelled)
	assert.Equal(t, 1, res.Rearmed, "recurring alarm is re-armed")
	assert.Equal(t, 1, svc.reg.taskCount(1))
	assert.Equal(t, 0, st.count(1, false))
	assert.Equal(t, 1, st.count(1, true))
}

func TestDeliveryErrorEndsCycleAndRecurringRearms(t *testing.T) {
	st := newFakeStore()
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	ctx := context.Background()

	// Monday is in the set, so with the frozen clock every re-arm
	// resolves to the same 09:00 instant 100ms ahead.
	_, err := svc.Repeat(ctx, 1, nineAM, alarm.Weekdays{0}, "standup")
	require.NoError(t, err)

	sender.failNext(1)

	// First cycle dies on the failed send, the schedule survives and
	// the next cycle delivers.
	text := waitSend(t, sender.sends, 2*time.Second)
	assert.Contains(t, text, "standup")
	assert.Equal(t, 1, svc.reg.taskCount(1))
}

func TestDeliveryErrorEndsOneShotTask(t *testing.T) {
	st := newFakeStore()
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	ctx := context.Background()

	_, err := svc.Set(ctx, 1, nineAM, "")
	require.NoError(t, err)
	sender.failNext(1)

	assert.Eventually(t, func() bool {
		return svc.reg.taskCount(1) == 0 && !svc.reg.isRinging(1)
	}, 2*time.Second, 10*time.Millisecond, "failed one-shot cycle removes its task and clears the flag")
}

func TestStartSkipsUnresolvableAlarms(t *testing.T) {
	st := newFakeStore()
	st.alarms = []alarm.Alarm{
		{Owner: 1, Time: nineAM, Repeat: alarm.Weekdays{42}},
		{Owner: 2, Time: nineAM},
	}
	sender := newFakeSender()
	svc := startTestService(t, st, sender)

	assert.Equal(t, 0, svc.reg.taskCount(1), "unresolvable alarm is skipped")
	assert.Equal(t, 1, svc.reg.taskCount(2), "other owners are unaffected")
}

func TestStatusReportsEntriesAndZone(t *testing.T) {
	st := newFakeStore()
	st.zones[1] = "Europe/Moscow"
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	ctx := context.Background()

	_, err := svc.Repeat(ctx, 1, alarm.TimeOfDay{Hour: 23, Minute: 30}, alarm.Weekdays{5, 6}, "weekend")
	require.NoError(t, err)

	got, err := svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", got.Zone)
	assert.False(t, got.Ringing)
	require.Len(t, got.Entries, 1)
	assert.True(t, got.Entries[0].Next.After(testBase))
	assert.Equal(t, time.Saturday, got.Entries[0].Next.Weekday())
}

func TestSetTimezoneRearmsUnderNewZone(t *testing.T) {
	st := newFakeStore()
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	ctx := context.Background()

	// 12:00 UTC today is hours away; in Asia/Jakarta (UTC+7) it is
	// already 15:59, so the same wall-clock alarm moves to tomorrow.
	next, err := svc.Set(ctx, 1, alarm.TimeOfDay{Hour: 12, Minute: 0}, "")
	require.NoError(t, err)
	assert.Equal(t, 5, next.Day())

	n, err := svc.SetTimezone(ctx, 1, "Asia/Jakarta")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, svc.reg.taskCount(1))

	got, err := svc.Status(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	loc, _ := time.LoadLocation("Asia/Jakarta")
	assert.Equal(t, 6, got.Entries[0].Next.In(loc).Day())

	_, err = svc.SetTimezone(ctx, 1, "Mars/Olympus")
	require.ErrorIs(t, err, alarm.ErrInvalidTimezone)
}

func TestPersistenceFailureStillSchedules(t *testing.T) {
	st := newFakeStore()
	st.failUpsert = true
	st.failList = true
	sender := newFakeSender()
	svc := startTestService(t, st, sender)

	next, err := svc.Set(context.Background(), 1, nineAM, "best effort")
	require.NoError(t, err)
	assert.False(t, next.IsZero())
	assert.Equal(t, 1, svc.reg.taskCount(1), "in-memory schedule proceeds without the store")

	text := waitSend(t, sender.sends, 2*time.Second)
	assert.Contains(t, text, "best effort")
}

func TestReconcileRearmsOrphanedOwners(t *testing.T) {
	st := newFakeStore()
	require.NoError(t, st.UpsertRecurring(context.Background(), 1, nineAM, alarm.Weekdays{0}, ""))
	sender := newFakeSender()
	svc := startTestService(t, st, sender)
	require.Equal(t, 1, svc.reg.taskCount(1))

	// A live owner is left alone.
	n, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Simulate a dropped task, reconcile restores it.
	svc.reg.cancelAll(1)
	n, err = svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, svc.reg.taskCount(1))
}

func TestRingTextHasStopHint(t *testing.T) {
	now := time.Date(2025, 5, 5, 7, 0, 0, 0, time.UTC)
	text := ringText(alarm.Alarm{Time: alarm.TimeOfDay{Hour: 7, Minute: 0}}, now)
	assert.True(t, strings.Contains(text, "07:00"))
	assert.True(t, strings.Contains(text, "/stop"))
}
