package actor

import (
	"fmt"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/events"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const PUBLISHER_VEDBUS = "vedbus"

// VirtualBattery is the D-Bus battery service updated on every decision.
type VirtualBattery interface {
	Register() error
	Apply(items []domain.BusItemUpdate) error
	Close() error
}

type VEDBusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	battery  VirtualBattery
	limits   domain.BatteryLimits
	logger   *zap.Logger
}

func NewVEDBusActor(battery VirtualBattery, limits domain.BatteryLimits, logger *zap.Logger) *VEDBusActor {
	act := &VEDBusActor{
		battery:  battery,
		limits:   limits,
		behavior: actor.NewBehavior(),
		stash:    actorutil.NewStash(actorutil.STASH_LIMIT),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_VEDBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *VEDBusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *VEDBusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("vedbus@starting started")
		if err := state.battery.Register(); err != nil {
			state.logger.Error("vedbus@starting could not register service", zap.Error(err))
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("vedbus@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *VEDBusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("vedbus@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_VEDBUS,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishDecisionRequest:
		state.logger.Debug("vedbus@default PublishDecisionRequest")
		err := state.battery.Apply(events.DecisionToBusItems(msg.Decision, state.limits))
		if err != nil {
			state.logger.Error("vedbus@default could not update service", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDecisionResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Publisher:          PUBLISHER_VEDBUS,
		})
	case *actor.Restarting:
		state.close()
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("vedbus@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *VEDBusActor) close() {
	if err := state.battery.Close(); err != nil {
		state.logger.Warn("vedbus close", zap.Error(err))
	}
}
