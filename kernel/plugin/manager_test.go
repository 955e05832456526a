package plugin

import (
	"testing"

	"github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/jobs"
	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/shareddata"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	id       utils.ID
	name     string
	prepared bool
}

func (f *fakePlugin) ID() utils.ID   { return f.id }
func (f *fakePlugin) Name() string   { return f.name }
func (f *fakePlugin) Prepare(*context.Context) error {
	f.prepared = true
	return nil
}
func (f *fakePlugin) Unprepare(*context.Context) error {
	f.prepared = false
	return nil
}

func newTestManager() *Manager {
	ctx := &context.Context{
		SharedData: shareddata.New(nil),
		Messenger:  messenger.New(64, nil),
		Jobs:       jobs.New(8, nil),
	}
	return New(ctx, nil, nil)
}

func TestAddStaticPluginPreparesAndRegisters(t *testing.T) {
	m := newTestManager()
	fp := &fakePlugin{id: utils.NewID(), name: "static-one"}

	id, err := m.AddStaticPlugin(func() PluginObject { return fp })
	require.NoError(t, err)
	assert.True(t, fp.prepared)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, fp, got)
}

func TestDuplicatePluginIDIsAlreadyExists(t *testing.T) {
	m := newTestManager()
	id := utils.NewID()

	_, err := m.AddStaticPlugin(func() PluginObject { return &fakePlugin{id: id, name: "a"} })
	require.NoError(t, err)

	_, err = m.AddStaticPlugin(func() PluginObject { return &fakePlugin{id: id, name: "b"} })
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.KindAlreadyExists)
}

func TestRemovePluginUnprepares(t *testing.T) {
	m := newTestManager()
	fp := &fakePlugin{id: utils.NewID(), name: "static-one"}
	id, err := m.AddStaticPlugin(func() PluginObject { return fp })
	require.NoError(t, err)

	require.NoError(t, m.RemovePlugin(id))
	assert.False(t, fp.prepared)
	assert.Equal(t, 0, m.Count())

	_, ok := m.Get(id)
	assert.False(t, ok)
}
