package actorutil

import (
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type openGate struct{}

type collectRequest struct{}

// gateActor stashes numbers until the gate opens, then replays them.
type gateActor struct {
	behavior actor.Behavior
	stash    *Stash
	mu       sync.Mutex
	received []int
	kept     []bool
}

func newGateActor(limit int) *gateActor {
	act := &gateActor{
		behavior: actor.NewBehavior(),
		stash:    NewStash(limit),
	}
	act.behavior.Become(act.closed)
	return act
}

func (a *gateActor) Receive(ctx actor.Context) {
	a.behavior.Receive(ctx)
}

func (a *gateActor) closed(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case int:
		a.mu.Lock()
		a.kept = append(a.kept, a.stash.Stash(ctx, msg))
		a.mu.Unlock()
	case openGate:
		a.behavior.Become(a.open)
		a.stash.UnstashAll(ctx)
	}
}

func (a *gateActor) open(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case int:
		a.mu.Lock()
		a.received = append(a.received, msg)
		a.mu.Unlock()
	case collectRequest:
		a.mu.Lock()
		ctx.Respond(append([]int(nil), a.received...))
		a.mu.Unlock()
	}
}

func TestStashKeepsNewestWhenFull(t *testing.T) {

	assert := assert.New(t)

	as := NewActorSystemWithZapLogger(zap.NewNop())
	context := as.Root

	gate := newGateActor(3)
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return gate
	}))

	for i := 1; i <= 5; i++ {
		context.Send(pid, i)
	}
	context.Send(pid, openGate{})

	assert.Eventually(func() bool {
		res, err := context.RequestFuture(pid, collectRequest{}, time.Second).Result()
		return err == nil && len(res.([]int)) == 3
	}, 2*time.Second, 50*time.Millisecond)

	res, err := context.RequestFuture(pid, collectRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.Equal([]int{3, 4, 5}, res)

	gate.mu.Lock()
	defer gate.mu.Unlock()
	assert.Equal([]bool{true, true, true, false, false}, gate.kept)
	assert.Equal(uint64(2), gate.stash.Dropped())
	assert.Zero(gate.stash.Len())
}

func TestStashUnbounded(t *testing.T) {

	assert := assert.New(t)

	as := NewActorSystemWithZapLogger(zap.NewNop())
	context := as.Root

	gate := newGateActor(0)
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return gate
	}))

	for i := 0; i < 2*STASH_LIMIT; i++ {
		context.Send(pid, i)
	}

	assert.Eventually(func() bool {
		gate.mu.Lock()
		defer gate.mu.Unlock()
		return len(gate.kept) == 2*STASH_LIMIT
	}, 2*time.Second, 20*time.Millisecond)

	gate.mu.Lock()
	defer gate.mu.Unlock()
	assert.NotContains(gate.kept, false)
	assert.Equal(2*STASH_LIMIT, gate.stash.Len())
}
