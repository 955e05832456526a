package shareddata

import (
	"testing"

	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ Count int }

func TestAddGetRoundtrip(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	_, err := Add(sd, id, widget{Count: 1})
	require.NoError(t, err)

	r, ok := Get[widget](sd, id)
	require.True(t, ok)
	defer r.Release()
	val, release, err := r.Borrow()
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 1, val.Count)
}

func TestAddDuplicateIsAlreadyExists(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	_, err := Add(sd, id, widget{})
	require.NoError(t, err)

	_, err = Add(sd, id, widget{})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.KindAlreadyExists)
}

func TestBorrowMutExcludesReaders(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	r, _ := Add(sd, id, widget{})
	defer r.Release()

	_, releaseW, err := r.BorrowMut()
	require.NoError(t, err)

	_, _, err = r.Borrow()
	assert.ErrorIs(t, err, utils.KindContended)

	releaseW()
	_, releaseR, err := r.Borrow()
	require.NoError(t, err)
	releaseR()
}

func TestDestroyQueuesEvent(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	Add(sd, id, widget{})
	ok := Destroy[widget](sd, id)
	require.True(t, ok)

	m := messenger.New(8, nil)
	l := messenger.NewListener[Destroyed[widget]](4)
	messenger.RegisterListener(m, l)
	sd.FlushPendingEvents(m)
	m.Process(nil)

	require.Len(t, l.Recv(), 1)
	got := <-l.Recv()
	assert.Equal(t, id, got.ID)
}

func TestGetOrCreateOnlyCreatesOnce(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	calls := 0
	factory := func() widget { calls++; return widget{Count: 42} }

	h1, created := GetOrCreate(sd, id, factory)
	assert.True(t, created)
	defer h1.Release()
	h2, created := GetOrCreate(sd, id, factory)
	assert.False(t, created)
	defer h2.Release()
	assert.Equal(t, 1, calls)
}

func TestMatchFiltersByPredicate(t *testing.T) {
	sd := New(nil)
	Add(sd, utils.NewID(), widget{Count: 1})
	Add(sd, utils.NewID(), widget{Count: 2})

	matches := Match(sd, func(w widget) bool { return w.Count > 1 })
	require.Len(t, matches, 1)
	matches[0].Release()
}

func TestLastHandleDropDestroys(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	h1, err := Add(sd, id, widget{Count: 1})
	require.NoError(t, err)

	h2, ok := Get[widget](sd, id)
	require.True(t, ok)

	h1.Release()
	assert.Equal(t, 1, Count[widget](sd))

	h2.Release()
	assert.Equal(t, 0, Count[widget](sd))

	m := messenger.New(8, nil)
	l := messenger.NewListener[Destroyed[widget]](4)
	messenger.RegisterListener(m, l)
	sd.FlushPendingEvents(m)
	m.Process(nil)

	require.Len(t, l.Recv(), 1)
	got := <-l.Recv()
	assert.Equal(t, id, got.ID)
}

func TestAcquireClonesHandle(t *testing.T) {
	sd := New(nil)
	id := utils.NewID()
	h1, err := Add(sd, id, widget{Count: 1})
	require.NoError(t, err)

	h2 := h1.Acquire()
	h1.Release()
	assert.Equal(t, 1, Count[widget](sd))

	h2.Release()
	assert.Equal(t, 0, Count[widget](sd))
}

func TestUnregisterTypeDestroysAll(t *testing.T) {
	sd := New(nil)
	Add(sd, utils.NewID(), widget{Count: 1})
	Add(sd, utils.NewID(), widget{Count: 2})

	UnregisterType[widget](sd)
	assert.Equal(t, 0, Count[widget](sd))
}
