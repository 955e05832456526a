package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeJobOrdersByPriority(t *testing.T) {
	p := New(8, nil)
	cat := utils.NewID()
	p.AddJob("low-1", cat, Low, func() {})
	p.AddJob("high-1", cat, High, func() {})
	p.AddJob("medium-1", cat, Medium, func() {})

	j, ok := p.takeAny()
	require.True(t, ok)
	assert.Equal(t, "high-1", j.Name)

	j, ok = p.takeAny()
	require.True(t, ok)
	assert.Equal(t, "medium-1", j.Name)

	j, ok = p.takeAny()
	require.True(t, ok)
	assert.Equal(t, "low-1", j.Name)
}

func TestHasPendingClearsOnCompletion(t *testing.T) {
	p := New(8, nil)
	cat := utils.NewID()
	p.AddJob("a", cat, High, func() {})

	require.True(t, p.HasPending(cat))
	p.ExecuteAll()
	require.False(t, p.HasPending(cat))
}

func TestPanicStillDecrementsCounter(t *testing.T) {
	p := New(8, nil)
	cat := utils.NewID()
	p.AddJob("boom", cat, High, func() { panic("boom") })

	p.ExecuteAll()
	assert.False(t, p.HasPending(cat))
}

func TestWorkerPoolDrainsJobs(t *testing.T) {
	p := New(64, nil)
	p.StartWorkers(4)
	defer p.Stop()

	cat := utils.NewID()
	var done atomic.Int64
	for i := 0; i < 20; i++ {
		p.AddJob("w", cat, Medium, func() { done.Add(1) })
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.HasPending(cat) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.False(t, p.HasPending(cat))
	assert.EqualValues(t, 20, done.Load())
}

func TestClearPendingZeroesCounters(t *testing.T) {
	p := New(8, nil)
	cat := utils.NewID()
	p.AddJob("a", cat, Low, func() {})
	p.AddJob("b", cat, Low, func() {})

	p.ClearPending()
	assert.False(t, p.HasPending(cat))
}
