package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerPhaseOrder(t *testing.T) {
	var order []string
	rec := func(name string, p Phase) System {
		return Func{P: p, Fn: func(time.Duration) { order = append(order, name) }}
	}

	r := NewRunner()
	r.Register(rec("cleanup", PhaseCleanup))
	r.Register(rec("output", PhaseOutput))
	r.Register(rec("input-a", PhaseInput))
	r.Register(rec("preupdate", PhasePreUpdate))
	r.Register(rec("input-b", PhaseInput))

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input-a", "input-b", "preupdate", "output", "cleanup"}, order)
	assert.Equal(t, uint64(1), r.Ticks())
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	ticks := 0
	r := NewRunner()
	r.Register(Func{P: PhaseUpdate, Fn: func(time.Duration) { ticks++ }})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx, 5*time.Millisecond))
	assert.Positive(t, ticks)
	assert.Equal(t, uint64(ticks), r.Ticks())
}
