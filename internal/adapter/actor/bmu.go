package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// BMUActor reads every configured unit. Reads run in a background task bound
// by readTimeout; requests received meanwhile are stashed.
type BMUActor struct {
	behavior    actor.Behavior
	stash       *actorutil.Stash
	readers     []port.UnitReader
	readTimeout time.Duration
	logger      *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewBMUActor(readers []port.UnitReader, readTimeout time.Duration, logger *zap.Logger) *BMUActor {
	act := &BMUActor{
		readers:     readers,
		readTimeout: readTimeout,
		behavior:    actor.NewBehavior(),
		stash:       actorutil.NewStash(actorutil.STASH_LIMIT),
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_BMU, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *BMUActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BMUActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("bmu@starting started", zap.Int("units", len(state.readers)))
		for _, r := range state.readers {
			// unreachable units are retried by the reader on every read
			if err := r.Open(); err != nil {
				state.logger.Warn("bmu@starting could not open unit", zap.Uint("unit", r.UnitId()), zap.Error(err))
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.closeReaders()
	default:
		state.logger.Debug("bmu@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BMUActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("bmu@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BMU,
			Healthy: true,
			State:   "idle",
		})
	case domain.ReadUnitsRequest:
		state.logger.Debug("bmu@default ReadUnitsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, state.readUnits),
			mapTaskResult[domain.ReadUnitsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			state.logger.Error("bmu@default read failed", zap.Error(err))
			return backgroundTaskResult{
				message: domain.ReadUnitsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: fmt.Errorf("read units: %w", err),
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.readTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingRead)
	case *actor.Stopping:
		state.closeReaders()
	default:
		state.logger.Debug("bmu@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *BMUActor) WaitingRead(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("bmu@waitingRead backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BMU,
			Healthy: true,
			State:   "reading",
		})
	case *actor.Stopping:
		state.closeReaders()
	default:
		state.logger.Debug("bmu@waitingRead stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// readUnits returns one reading per unit. A failing unit yields an all
// absent reading.
func (state *BMUActor) readUnits() *domain.ReadUnitsResponse {
	readings := make([]domain.UnitReading, 0, len(state.readers))
	for _, r := range state.readers {
		reading, err := r.Read()
		if err != nil {
			state.logger.Warn("bmu@waitingRead unit unreadable", zap.Uint("unit", r.UnitId()), zap.Error(err))
			reading = domain.UnreadableUnit(r.UnitId())
		}
		readings = append(readings, reading)
	}
	return &domain.ReadUnitsResponse{Readings: readings}
}

func (state *BMUActor) closeReaders() {
	for _, r := range state.readers {
		if err := r.Close(); err != nil {
			state.logger.Debug("bmu close unit", zap.Uint("unit", r.UnitId()), zap.Error(err))
		}
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
