package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarmbot/internal/alarm"
	logx "alarmbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "alarms.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertOneShotReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	require.NoError(t, st.UpsertOneShot(ctx, 1, alarm.TimeOfDay{Hour: 8, Minute: 30}, "wake up"))
	require.NoError(t, st.UpsertOneShot(ctx, 1, alarm.TimeOfDay{Hour: 9, Minute: 0}, "later"))

	got, err := st.ListForOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1, "second one-shot must replace the first")
	assert.Equal(t, alarm.TimeOfDay{Hour: 9, Minute: 0}, got[0].Time)
	assert.Equal(t, "later", got[0].Message)
	assert.False(t, got[0].Recurring())
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestUpsertRecurringReplacesSameSlotOnly(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	seven := alarm.TimeOfDay{Hour: 7, Minute: 0}
	nine := alarm.TimeOfDay{Hour: 9, Minute: 0}
	require.NoError(t, st.UpsertRecurring(ctx, 1, seven, alarm.Weekdays{0, 2, 4}, "gym"))
	require.NoError(t, st.UpsertRecurring(ctx, 1, nine, alarm.Weekdays{5, 6}, "sleep in"))
	// Same slot, new weekday set: replaces, does not duplicate.
	require.NoError(t, st.UpsertRecurring(ctx, 1, seven, alarm.Weekdays{0, 1, 2, 3, 4}, "gym"))

	got, err := st.ListForOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, alarm.Weekdays{0, 1, 2, 3, 4}, got[0].Repeat)
	assert.Equal(t, alarm.Weekdays{5, 6}, got[1].Repeat)
}

func TestOneShotAndRecurringCoexist(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	tod := alarm.TimeOfDay{Hour: 7, Minute: 0}
	require.NoError(t, st.UpsertRecurring(ctx, 1, tod, alarm.Weekdays{0, 1, 2, 3, 4}, ""))
	require.NoError(t, st.UpsertOneShot(ctx, 1, tod, ""))

	got, err := st.ListForOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2, "one-shot and recurring at the same time-of-day are independent")

	// Deleting one-shots keeps the recurring alarm.
	require.NoError(t, st.DeleteOneShot(ctx, 1))
	got, err = st.ListForOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Recurring())
}

func TestLoadAllSpansOwners(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	require.NoError(t, st.UpsertOneShot(ctx, 1, alarm.TimeOfDay{Hour: 8, Minute: 0}, ""))
	require.NoError(t, st.UpsertRecurring(ctx, 2, alarm.TimeOfDay{Hour: 6, Minute: 45}, alarm.Weekdays{0}, "monday"))

	got, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Owner)
	assert.Equal(t, int64(2), got[1].Owner)

	require.NoError(t, st.DeleteAll(ctx, 2))
	got, err = st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestListStableOrder(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	require.NoError(t, st.UpsertRecurring(ctx, 1, alarm.TimeOfDay{Hour: 9, Minute: 0}, alarm.Weekdays{0}, ""))
	require.NoError(t, st.UpsertRecurring(ctx, 1, alarm.TimeOfDay{Hour: 7, Minute: 0}, alarm.Weekdays{0}, ""))

	first, err := st.ListForOwner(ctx, 1)
	require.NoError(t, err)
	second, err := st.ListForOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second, "listing twice with no writes must be identical")
	assert.Equal(t, 7, first[0].Time.Hour)
}

func TestTimezoneDefaultAndValidation(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	zone, err := st.Timezone(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "UTC", zone, "absent row defaults to UTC")

	require.NoError(t, st.SetTimezone(ctx, 1, "Europe/Moscow"))
	zone, err = st.Timezone(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", zone)

	// Invalid zones are rejected before any write.
	err = st.SetTimezone(ctx, 1, "Mars/Olympus")
	require.ErrorIs(t, err, alarm.ErrInvalidTimezone)
	zone, err = st.Timezone(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", zone)

	// Updates overwrite in place.
	require.NoError(t, st.SetTimezone(ctx, 1, "Asia/Jakarta"))
	zone, err = st.Timezone(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", zone)
}
