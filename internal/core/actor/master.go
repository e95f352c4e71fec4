package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	. "github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type ActorProvider func() actor.Actor

// ActorProviders builds the adapter actors. A nil publisher provider
// disables that publisher.
type ActorProviders struct {
	BMU    ActorProvider
	MQTT   ActorProvider
	VEDBus ActorProvider
}

type MasterOfPuppetsActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *Stash
	engine    port.DecisionEngine
	providers ActorProviders

	currentHealthCheck healthCheckResult
	bmuActor           *actor.PID
	publishers         []*actor.PID
	cycleActor         *actor.PID
	children           map[string]*actor.PID
	logger             *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config *config.Config, engine port.DecisionEngine, providers ActorProviders, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:    config,
		engine:    engine,
		providers: providers,
		behavior:  actor.NewBehavior(),
		stash:     NewStash(STASH_LIMIT),
		children:  map[string]*actor.PID{},
		logger:    ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start BMU child
		bmuActorPID, err := state.startBackoffActor(ctx, domain.ACTOR_ID_BMU, state.providers.BMU)
		if err != nil {
			panic(err)
		}
		state.bmuActor = bmuActorPID

		// start publishers
		state.publishers = nil
		if state.config.MQTT.Enable && state.providers.MQTT != nil {
			mqttActorPID, err := state.startBackoffActor(ctx, domain.ACTOR_ID_MQTT, state.providers.MQTT)
			if err != nil {
				panic(err)
			}
			state.publishers = append(state.publishers, mqttActorPID)
		}
		if state.config.VEDBus.Publish && state.providers.VEDBus != nil {
			vedbusActorPID, err := state.startBackoffActor(ctx, domain.ACTOR_ID_VEDBUS, state.providers.VEDBus)
			if err != nil {
				panic(err)
			}
			state.publishers = append(state.publishers, vedbusActorPID)
		}
		if len(state.publishers) == 0 {
			panic(errors.New("no publisher available"))
		}

		// start cycle child
		cycleActorPID, err := state.startCycleActor(ctx)
		if err != nil {
			panic(err)
		}
		state.cycleActor = cycleActorPID

		// start HA Discovery
		if mqttPID, ok := state.children[domain.ACTOR_ID_MQTT]; ok && state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx, mqttPID)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.checkedChildren())
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.children {
			if id == domain.ACTOR_ID_HA_DISCOVERY {
				continue
			}
			childId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      childId,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.CycleStatusRequest:
		ctx.Forward(state.cycleActor)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_BMU) {
			state.logger.Error("master@default bmu terminated")
			panic(errors.New("bmu terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if _, ok := state.currentHealthCheck.healthy[msg.Id]; ok && msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// startBackoffActor spawns an adapter actor restarted with exponential backoff.
func (state *MasterOfPuppetsActor) startBackoffActor(ctx actor.Context, id string, provider ActorProvider) (*actor.PID, error) {

	if provider == nil {
		return nil, fmt.Errorf("no provider for actor %s", id)
	}
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return provider()
	}, actor.WithSupervisor(supervisor))
	pid, err := ctx.SpawnNamed(props, id)
	if err != nil {
		return nil, err
	}
	state.children[id] = pid

	return pid, nil
}

func (state *MasterOfPuppetsActor) startCycleActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Error("master handling failure for child", zap.String("child", domain.ACTOR_ID_CYCLE), zap.Any("reason", reason))
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	pollInterval := time.Duration(state.config.Monitor.PollIntervalMillis) * time.Millisecond
	readTimeout := time.Duration(state.config.Monitor.ReadTimeoutMillis) * time.Millisecond
	cycleProps := actor.PropsFromProducer(func() actor.Actor {
		return NewCycleActor(state.engine, state.bmuActor, state.publishers, pollInterval, readTimeout, state.logger)
	}, actor.WithSupervisor(supervisor))
	cyclePID, err := ctx.SpawnNamed(cycleProps, domain.ACTOR_ID_CYCLE)
	if err != nil {
		return nil, err
	}
	state.children[domain.ACTOR_ID_CYCLE] = cyclePID

	return cyclePID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context, mqttActor *actor.PID) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Error("master handling failure for child", zap.String("child", domain.ACTOR_ID_HA_DISCOVERY), zap.Any("reason", reason))
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(state.config, mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}
	state.children[domain.ACTOR_ID_HA_DISCOVERY] = haDiscPID

	return haDiscPID, nil
}

// checkedChildren lists the actors the health check waits for. Discovery is
// a one-shot helper and is left out.
func (state *MasterOfPuppetsActor) checkedChildren() []string {
	var ids []string
	for id := range state.children {
		if id != domain.ACTOR_ID_HA_DISCOVERY {
			ids = append(ids, id)
		}
	}
	return ids
}

func (state *healthCheckResult) reset(ids []string) {
	state.healthy = make(map[string]bool, len(ids))
	for _, id := range ids {
		state.healthy[id] = false
	}
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.healthy)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, h := range state.healthy {
		if !h {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
