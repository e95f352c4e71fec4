package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// STASH_LIMIT bounds the messages an actor keeps while busy.
const STASH_LIMIT = 64

// Stash keeps messages, with their original sender, that the current state
// of an actor does not handle. A zero limit means unbounded.
type Stash struct {
	elems   []stashElem
	limit   int
	dropped uint64
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func NewStash(limit int) *Stash {
	return &Stash{limit: limit}
}

// Stash stores msg. When the stash is full the oldest message is discarded
// and false is returned.
func (stash *Stash) Stash(ctx actor.Context, msg any) bool {
	kept := true
	if stash.limit > 0 && len(stash.elems) >= stash.limit {
		stash.elems = stash.elems[1:]
		stash.dropped++
		kept = false
	}
	stash.elems = append(stash.elems, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
	return kept
}

func (stash *Stash) Len() int {
	return len(stash.elems)
}

// Dropped counts the messages discarded because the stash was full.
func (stash *Stash) Dropped() uint64 {
	return stash.dropped
}

// UnstashAll resends every stashed message to self in arrival order.
func (stash *Stash) UnstashAll(ctx actor.Context) {
	for _, elem := range stash.elems {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
	stash.elems = nil
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.elems) > 0 {
		first := stash.elems[0]
		ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
		stash.elems = stash.elems[1:]
	}
}
