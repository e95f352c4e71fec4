package actorutil

import (
	"testing"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
)

type namedState string

func (s namedState) Name() string {
	return string(s)
}

func (s namedState) Receive(actor.Context) {
}

func TestActorWithStatesTracksActiveState(t *testing.T) {

	assert := assert.New(t)

	s := ActorWithStates{Behavior: actor.NewBehavior()}
	assert.Empty(s.StateName())

	s.Become(namedState("idle"))
	assert.Equal("idle", s.StateName())

	s.BecomeStacked(namedState("waitingReadings"))
	assert.Equal("waitingReadings", s.StateName())

	s.UnbecomeStacked()
	s.BecomeStacked(namedState("waitingPublish"))
	assert.Equal("waitingPublish", s.StateName())

	s.UnbecomeStacked()
	assert.Equal("idle", s.StateName())

	s.BecomeStacked(namedState("waitingReadings"))
	s.Become(namedState("starting"))
	assert.Equal("starting", s.StateName())
	s.UnbecomeStacked()
	assert.Empty(s.StateName())
}
