package engine

import (
	"context"
	"testing"

	kctx "github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/plugin"
	"github.com/kestrelrt/kestrel/kernel/scheduler"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSystem struct {
	scheduler.BaseSystem
	runs int
}

func (c *countingSystem) Run(*kctx.Context) bool {
	c.runs++
	return c.runs < 3
}

type staticPlugin struct {
	id utils.ID
}

func (p *staticPlugin) ID() utils.ID                        { return p.id }
func (p *staticPlugin) Name() string                        { return "static" }
func (p *staticPlugin) Prepare(*kctx.Context) error          { return nil }
func (p *staticPlugin) Unprepare(*kctx.Context) error        { return nil }

func TestRunStopsWhenSystemRequests(t *testing.T) {
	a := New(Config{WorkerCount: 2})
	defer a.Shutdown(context.Background())

	sys := &countingSystem{BaseSystem: scheduler.BaseSystem{SystemID: utils.NewID(), SystemName: "counter", RunUnfocused: true}}
	require.NoError(t, a.Scheduler().AddSystem(scheduler.Update, sys))

	for a.RunOnce() {
	}
	assert.Equal(t, 3, sys.runs)
}

func TestAddStaticPluginThroughApp(t *testing.T) {
	a := New(Config{WorkerCount: 1})
	defer a.Shutdown(context.Background())

	id, err := a.AddStaticPlugin(func() plugin.PluginObject { return &staticPlugin{id: utils.NewID()} })
	require.NoError(t, err)
	assert.NotEqual(t, utils.NilID, id)
}
