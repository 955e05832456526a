package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGracefulShutdownRunsHooksInLIFOOrder(t *testing.T) {
	g := NewGracefulShutdown(time.Second, nil)
	var order []int

	g.Register(func() error { order = append(order, 1); return nil })
	g.Register(func() error { order = append(order, 2); return nil })
	g.Register(func() error { order = append(order, 3); return nil })

	require.NoError(t, g.Shutdown(context.Background()))
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestGracefulShutdownAggregatesErrors(t *testing.T) {
	g := NewGracefulShutdown(time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	g.Register(func() error { return errA })
	g.Register(func() error { return errB })
	g.Register(func() error { return nil })

	err := g.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestGracefulShutdownTimesOut(t *testing.T) {
	g := NewGracefulShutdown(10*time.Millisecond, nil)
	g.Register(func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	err := g.Shutdown(context.Background())
	require.Error(t, err)
}
