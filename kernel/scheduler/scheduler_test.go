package scheduler

import (
	"sync"
	"testing"
	"time"

	kctx "github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/jobs"
	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/shareddata"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSystem struct {
	BaseSystem
	fn func()
}

func (r *recordingSystem) Run(*kctx.Context) bool {
	if r.fn != nil {
		r.fn()
	}
	return true
}

func newCtx() *kctx.Context {
	pool := jobs.New(64, nil)
	pool.StartWorkers(4)
	return &kctx.Context{
		SharedData: shareddata.New(nil),
		Messenger:  messenger.New(64, nil),
		Jobs:       pool,
	}
}

func TestDependenciesRunBeforeDependents(t *testing.T) {
	ctx := newCtx()
	defer ctx.Jobs.Stop()
	sched := New(ctx.Jobs, messenger.New(64, nil), nil)

	var mu sync.Mutex
	var order []string

	a := &recordingSystem{BaseSystem: BaseSystem{SystemID: utils.NewID(), SystemName: "a", RunUnfocused: true}}
	a.fn = func() { mu.Lock(); order = append(order, "a"); mu.Unlock() }
	require.NoError(t, sched.AddSystem(Update, a))

	b := &recordingSystem{BaseSystem: BaseSystem{SystemID: utils.NewID(), SystemName: "b", RunUnfocused: true}}
	b.fn = func() { mu.Lock(); order = append(order, "b"); mu.Unlock() }
	require.NoError(t, sched.AddSystemWithDependencies(Update, b, []utils.ID{a.SystemID}))

	sched.RunOnce(ctx, true)

	require.Equal(t, []string{"a", "b"}, order)
}

func TestCyclicDependencyRejected(t *testing.T) {
	sched := New(jobs.New(64, nil), messenger.New(64, nil), nil)

	a := &recordingSystem{BaseSystem: BaseSystem{SystemID: utils.NewID(), SystemName: "a", RunUnfocused: true}}
	b := &recordingSystem{BaseSystem: BaseSystem{SystemID: utils.NewID(), SystemName: "b", RunUnfocused: true}}

	require.NoError(t, sched.AddSystemWithDependencies(Update, a, []utils.ID{b.SystemID}))
	err := sched.AddSystemWithDependencies(Update, b, []utils.ID{a.SystemID})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.KindCyclicDependency)
}

func TestPanicIsIsolatedAndPublishesEvent(t *testing.T) {
	ctx := newCtx()
	defer ctx.Jobs.Stop()
	sched := New(ctx.Jobs, messenger.New(64, nil), nil)

	l := messenger.NewListener[SystemFailed](4)
	messenger.RegisterListener(sched.msgr, l)

	boom := &recordingSystem{BaseSystem: BaseSystem{SystemID: utils.NewID(), SystemName: "boom", RunUnfocused: true}}
	boom.fn = func() { panic("system boom") }
	require.NoError(t, sched.AddSystem(Update, boom))

	keepGoing := sched.RunOnce(ctx, true)
	assert.False(t, keepGoing)

	select {
	case ev := <-l.Recv():
		assert.Equal(t, "boom", ev.Name)
	case <-time.After(time.Second):
		t.Fatal("expected SystemFailed event")
	}
}

func TestUnfocusedSystemSkipped(t *testing.T) {
	sched := New(jobs.New(64, nil), messenger.New(64, nil), nil)
	ctx := newCtx()
	defer ctx.Jobs.Stop()

	ran := false
	skip := &recordingSystem{BaseSystem: BaseSystem{SystemID: utils.NewID(), SystemName: "skip", RunUnfocused: false}}
	skip.fn = func() { ran = true }
	require.NoError(t, sched.AddSystem(Update, skip))

	sched.RunOnce(ctx, false)
	assert.False(t, ran)
}
