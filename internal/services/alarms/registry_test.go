package alarms

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTask() (*task, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &task{id: uuid.New(), cancel: cancel}, ctx
}

func TestRegistryAddRemove(t *testing.T) {
	r := newRegistry()
	t1, _ := newTask()
	t2, _ := newTask()

	r.add(1, t1)
	r.add(1, t2)
	assert.Equal(t, 2, r.taskCount(1))
	assert.Equal(t, 0, r.taskCount(2))

	r.remove(1, t1.id)
	assert.Equal(t, 1, r.taskCount(1))

	// Removing twice is a no-op.
	r.remove(1, t1.id)
	assert.Equal(t, 1, r.taskCount(1))
}

func TestRegistryCancelAllCancelsAndClearsFlag(t *testing.T) {
	r := newRegistry()
	t1, ctx1 := newTask()
	t2, ctx2 := newTask()
	r.add(7, t1)
	r.add(7, t2)
	r.setRinging(7, true)

	n := r.cancelAll(7)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, r.taskCount(7))
	assert.False(t, r.isRinging(7), "cancel must never leave a stale ring flag")
	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
}

func TestRegistryCancelAllIsPerOwner(t *testing.T) {
	r := newRegistry()
	t1, _ := newTask()
	t2, ctx2 := newTask()
	r.add(1, t1)
	r.add(2, t2)
	r.setRinging(2, true)

	r.cancelAll(1)
	assert.Equal(t, 1, r.taskCount(2))
	assert.True(t, r.isRinging(2))
	assert.NoError(t, ctx2.Err())
}

func TestRegistryRingFlag(t *testing.T) {
	r := newRegistry()
	assert.False(t, r.isRinging(1))
	r.setRinging(1, true)
	assert.True(t, r.isRinging(1))
	r.setRinging(1, false)
	assert.False(t, r.isRinging(1))
}
