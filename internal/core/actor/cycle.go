package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	. "github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	PUBLISH_TIMEOUT = 5 * time.Second
)

// CycleActor drives the decision cycles: on every tick it reads all units
// from the BMU actor, evaluates them and hands the decision to every
// publisher. Ticks received while a cycle is in flight are dropped.
type CycleActor struct {
	ActorWithStates
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc
	stash      *Stash

	bmuActor     *actor.PID
	publishers   []*actor.PID
	engine       port.DecisionEngine
	pollInterval time.Duration
	readTimeout  time.Duration

	cycle  uint64
	status domain.CycleStatusResponse

	logger *zap.Logger
}

type cycleTick struct {
}

// publishAck is a publisher answer tagged with the cycle it belongs to.
type publishAck struct {
	cycle    uint64
	response domain.PublishDecisionResponse
}

func NewCycleActor(engine port.DecisionEngine, bmuActor *actor.PID, publishers []*actor.PID,
	pollInterval time.Duration, readTimeout time.Duration, logger *zap.Logger) *CycleActor {
	act := &CycleActor{
		engine:       engine,
		bmuActor:     bmuActor,
		publishers:   publishers,
		pollInterval: pollInterval,
		readTimeout:  readTimeout,
		stash:        NewStash(STASH_LIMIT),
		logger:       ActorLogger(domain.ACTOR_ID_CYCLE, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CycleStartingState{
		actor: act,
	})
	return act
}

func (state *CycleActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CycleStartingState struct {
	ActorState
	actor *CycleActor
}

func (state CycleStartingState) Name() string {
	return "starting"
}

func (state CycleStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("cycle@starting started", zap.Duration("interval", state.actor.pollInterval))
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.cancelTick = state.actor.scheduler.RequestRepeatedly(state.actor.pollInterval,
			state.actor.pollInterval, ctx.Self(), cycleTick{})
		state.actor.Become(CycleIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.actor.stopTicks()
	default:
		state.actor.logger.Debug("cycle@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type CycleIdleState struct {
	ActorState
	actor *CycleActor
}

func (state CycleIdleState) Name() string {
	return "idle"
}

func (state CycleIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("cycle@idle ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CYCLE,
			Healthy: true,
			State:   state.Name(),
		})
	case domain.CycleStatusRequest:
		ForRequest(msg).Respond(ctx, state.actor.status)
	case cycleTick:
		state.actor.cycle++
		state.actor.logger.Debug("cycle@idle tick", zap.Uint64("cycle", state.actor.cycle))
		state.actor.BecomeStacked(CycleWaitingReadingsState{
			actor: state.actor,
		}.OnEnter(ctx))
	case *actor.Restarting, *actor.Stopping:
		state.actor.stopTicks()
	default:
		state.actor.logger.Debug("cycle@idle recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Waiting readings state

type CycleWaitingReadingsState struct {
	ActorState
	actor *CycleActor
}

func (state CycleWaitingReadingsState) Name() string {
	return "waitingReadings"
}

func (state CycleWaitingReadingsState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ReadUnitsResponse:
		if msg.HasResponseError() {
			state.actor.abandon(ctx, msg.GetResponseError())
			return
		}
		state.actor.logger.Debug("cycle@waitingReadings ReadUnitsResponse", zap.Int("readings", len(msg.Readings)))
		decision, err := state.actor.evaluate(msg.Readings)
		if err != nil {
			state.actor.abandon(ctx, err)
			return
		}
		state.actor.UnbecomeStacked()
		state.actor.BecomeStacked(CycleWaitingPublishState{
			actor:    state.actor,
			decision: decision,
		}.OnEnter(ctx))
	default:
		state.actor.busyReceive(ctx)
	}
}

func (state CycleWaitingReadingsState) OnEnter(ctx actor.Context) CycleWaitingReadingsState {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.bmuActor, domain.ReadUnitsRequest{},
		state.actor.readTimeout+time.Second), func(err error) any {
		return domain.ReadUnitsResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	return state
}

// Waiting publish state

type CycleWaitingPublishState struct {
	ActorState
	actor    *CycleActor
	decision domain.Decision
	received *int
	errs     *[]error
}

func (state CycleWaitingPublishState) Name() string {
	return "waitingPublish"
}

func (state CycleWaitingPublishState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishAck:
		if msg.cycle != state.actor.cycle {
			state.actor.logger.Debug("cycle@waitingPublish late answer ignored", zap.Uint64("cycle", msg.cycle))
			return
		}
		*state.received++
		if msg.response.HasResponseError() {
			state.actor.logger.Error("cycle@waitingPublish publisher failed", zap.String("publisher", msg.response.Publisher),
				zap.Error(msg.response.GetResponseError()))
			*state.errs = append(*state.errs, msg.response.GetResponseError())
		}
		if *state.received >= len(state.actor.publishers) {
			state.complete(ctx)
		}
	case *actor.ReceiveTimeout:
		if len(state.actor.publishers) > 0 {
			state.actor.logger.Error("cycle@waitingPublish publishers did not answer",
				zap.Int("received", *state.received), zap.Int("publishers", len(state.actor.publishers)))
		}
		state.complete(ctx)
	default:
		state.actor.busyReceive(ctx)
	}
}

func (state CycleWaitingPublishState) OnEnter(ctx actor.Context) CycleWaitingPublishState {
	received := 0
	var errs []error
	state.received = &received
	state.errs = &errs
	if len(state.actor.publishers) == 0 {
		ctx.Send(ctx.Self(), &actor.ReceiveTimeout{})
		return state
	}
	cycle := state.actor.cycle
	for _, pid := range state.actor.publishers {
		future := ctx.RequestFuture(pid, domain.PublishDecisionRequest{Decision: state.decision}, PUBLISH_TIMEOUT)
		publisher := pid.Id
		ctx.ReenterAfter(future, func(res any, err error) {
			resp, ok := res.(domain.PublishDecisionResponse)
			if err != nil || !ok {
				if err == nil {
					err = fmt.Errorf("unexpected response %T", res)
				}
				resp = domain.PublishDecisionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Publisher: publisher,
				}
			}
			ctx.Send(ctx.Self(), publishAck{cycle: cycle, response: resp})
		})
	}
	ctx.SetReceiveTimeout(PUBLISH_TIMEOUT + time.Second)
	return state
}

func (state CycleWaitingPublishState) complete(ctx actor.Context) {
	ctx.CancelReceiveTimeout()
	d := state.decision
	state.actor.status.CompletedCycles++
	state.actor.status.LastDecision = &d
	state.actor.status.LastCompletedAt = time.Now()
	state.actor.status.LastPublishErr = errors.Join(*state.errs...)
	state.actor.logger.Debug("cycle@waitingPublish cycle completed",
		zap.Uint64("cycles", state.actor.status.CompletedCycles),
		zap.Stringer("level", d.Assessment.AlarmLevel),
		zap.Float64("limit", d.Assessment.ChargeCurrentLimit))
	state.actor.UnbecomeStacked()
	state.actor.stash.UnstashAll(ctx)
}

// Other actor function helpers

// busyReceive handles messages received while a cycle is in flight.
func (state *CycleActor) busyReceive(ctx actor.Context) {
	stateName := state.StateName()
	switch msg := ctx.Message().(type) {
	case publishAck:
		state.logger.Debug("cycle@"+stateName+" late answer ignored", zap.Uint64("cycle", msg.cycle))
	case cycleTick:
		state.status.DroppedTicks++
		state.logger.Debug("cycle@" + stateName + " tick dropped, cycle in flight")
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CYCLE,
			Healthy: true,
			State:   stateName,
		})
	case *actor.Restarting, *actor.Stopping:
		state.stopTicks()
	default:
		state.logger.Debug("cycle@"+stateName+" stash", zap.String("type", fmt.Sprintf("%T", msg)))
		if !state.stash.Stash(ctx, msg) {
			state.logger.Warn("cycle@"+stateName+" stash full, oldest message dropped",
				zap.Uint64("dropped", state.stash.Dropped()))
		}
	}
}

// abandon drops the current cycle. The previous publication stands.
func (state *CycleActor) abandon(ctx actor.Context, err error) {
	state.status.AbandonedCycles++
	state.logger.Error("cycle@"+state.StateName()+" cycle abandoned", zap.Error(err))
	state.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *CycleActor) evaluate(readings []domain.UnitReading) (decision domain.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decision engine: %v", r)
		}
	}()
	return state.engine.Evaluate(readings), nil
}

func (state *CycleActor) stopTicks() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}
