package registry

import (
	"testing"

	"github.com/kestrelrt/kestrel/kernel/shareddata"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name string `json:"name"`
	HP   int    `json:"hp"`
}

func TestSaveLoadRoundtrip(t *testing.T) {
	tr := New(nil)
	Register(tr, func() profile { return profile{} })

	data, err := tr.Save(profile{Name: "hero", HP: 10})
	require.NoError(t, err)

	got, err := Load[profile](tr, data)
	require.NoError(t, err)
	assert.Equal(t, "hero", got.Name)
	assert.Equal(t, 10, got.HP)
}

func TestLoadUnregisteredTypeIsNotFound(t *testing.T) {
	tr := New(nil)
	_, err := Load[profile](tr, []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.KindNotFound)
}

func TestRestoreInsertsIntoSharedData(t *testing.T) {
	tr := New(nil)
	Register(tr, func() profile { return profile{} })
	sd := shareddata.New(nil)
	id := utils.NewID()

	data, err := tr.Save(profile{Name: "restored", HP: 5})
	require.NoError(t, err)

	_, err = Restore[profile](tr, sd, id, data)
	require.NoError(t, err)

	r, ok := shareddata.Get[profile](sd, id)
	require.True(t, ok)
	defer r.Release()
	val, release, err := r.Borrow()
	require.NoError(t, err)
	defer release()
	assert.Equal(t, "restored", val.Name)
}
