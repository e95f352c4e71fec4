package actor

import (
	"errors"
	"testing"
	"time"

	adactor "github.com/berfenger/bmsaggregator/internal/adapter/actor"
	"github.com/berfenger/bmsaggregator/internal/adapter/telemetry"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	"github.com/berfenger/bmsaggregator/internal/core/service"
	"github.com/berfenger/bmsaggregator/internal/util"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type unhealthyActor struct{}

func (unhealthyActor) Receive(ctx actor.Context) {
	// never answers health checks
}

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.VEDBus.Publish = true
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	readers := []port.UnitReader{
		telemetry.NewStaticUnitReader(domain.UnitReading{UnitId: 1, StateOfCharge: f(70)}),
		telemetry.NewStaticUnitReader(domain.UnitReading{UnitId: 2, StateOfCharge: f(72)}),
	}
	mqttPublisher := adactor.NewTestPublisherActor(domain.ACTOR_ID_MQTT, logger)
	vedbusPublisher := adactor.NewTestPublisherActor(domain.ACTOR_ID_VEDBUS, logger)

	engine := service.NewDecisionEngine(cfg.Policy(), logger)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(&cfg, engine, ActorProviders{
			BMU: func() actor.Actor {
				return adactor.NewBMUActor(readers, 300*time.Millisecond, logger)
			},
			MQTT:   func() actor.Actor { return mqttPublisher },
			VEDBus: func() actor.Actor { return vedbusPublisher },
		}, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	require.NoError(t, err)
	assert.True(t, hcr.Healthy, "healthy is true")

	res, err := context.RequestFuture(pid, domain.CycleStatusRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	status := res.(domain.CycleStatusResponse)
	assert.GreaterOrEqual(t, status.CompletedCycles, uint64(1))
	assert.NotEmpty(t, mqttPublisher.Decisions())
	assert.NotEmpty(t, vedbusPublisher.Decisions())

	context.Stop(pid)
	as.Shutdown()
}

func TestMasterActorUnhealthyChild(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	engine := service.NewDecisionEngine(cfg.Policy(), logger)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(&cfg, engine, ActorProviders{
			BMU: func() actor.Actor {
				return adactor.NewBMUActor(nil, 300*time.Millisecond, logger)
			},
			MQTT: func() actor.Actor { return unhealthyActor{} },
		}, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	require.NoError(t, err)
	assert.False(t, hcr.Healthy, "silent child makes master unhealthy")

	context.Stop(pid)
	as.Shutdown()
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}
