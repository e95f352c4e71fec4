package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/bmsaggregator/internal/adapter/telemetry"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type slowReader struct {
	telemetry.StaticUnitReader
	delay time.Duration
}

func (r *slowReader) Read() (domain.UnitReading, error) {
	time.Sleep(r.delay)
	return r.StaticUnitReader.Read()
}

func f(v float64) *float64 {
	return &v
}

func TestReadUnitsBMUActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	unit1 := telemetry.NewStaticUnitReader(domain.UnitReading{UnitId: 1, Voltage: f(13.2), StateOfCharge: f(80)})
	unit2 := telemetry.NewStaticUnitReader(domain.UnitReading{UnitId: 2, Voltage: f(13.3), StateOfCharge: f(84)})
	unit3 := telemetry.NewStaticUnitReader(domain.UnitReading{UnitId: 3, HighCellAlarm: true})
	unit3.Set(domain.UnitReading{UnitId: 3, HighCellAlarm: true}, errors.New("connection refused"))

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBMUActor([]port.UnitReader{unit1, unit2, unit3}, time.Second, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ReadUnitsRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.ReadUnitsResponse)

	require.NoError(t, resp.ResponseError)
	require.Len(t, resp.Readings, 3)
	assert.Equal(uint(1), resp.Readings[0].UnitId)
	assert.Equal(80.0, *resp.Readings[0].StateOfCharge)
	assert.Equal(uint(3), resp.Readings[2].UnitId)
	assert.True(resp.Readings[2].IsEmpty(), "unreadable unit is all absent")
	assert.False(resp.Readings[2].AnyCellAlarm(), "unreadable unit reports no alarms")

	context.Stop(pid)
	as.Shutdown()
}

func TestReadUnitsTimeoutBMUActor(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	slow := &slowReader{delay: 2 * time.Second}
	slow.Set(domain.UnitReading{UnitId: 1, StateOfCharge: f(50)}, nil)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBMUActor([]port.UnitReader{slow}, 300*time.Millisecond, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ReadUnitsRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.ReadUnitsResponse)
	assert.Error(t, resp.ResponseError, "read timeout is reported as a response error")
	assert.Empty(t, resp.Readings)

	// the actor is idle again after the timeout
	hcr, err := healthCheck(context, pid)
	require.NoError(t, err)
	assert.True(t, hcr.Healthy)
	assert.Equal(t, "idle", hcr.State)

	context.Stop(pid)
	as.Shutdown()
}

func TestStashWhileReadingBMUActor(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	slow := &slowReader{delay: 300 * time.Millisecond}
	slow.Set(domain.UnitReading{UnitId: 1, StateOfCharge: f(50)}, nil)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBMUActor([]port.UnitReader{slow}, time.Second, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	first := context.RequestFuture(pid, domain.ReadUnitsRequest{}, 5*time.Second)
	second := context.RequestFuture(pid, domain.ReadUnitsRequest{}, 5*time.Second)

	for _, fut := range []*actor.Future{first, second} {
		result, err := fut.Result()
		require.NoError(t, err)
		resp := result.(domain.ReadUnitsResponse)
		require.NoError(t, resp.ResponseError)
		require.Len(t, resp.Readings, 1)
	}
	assert.Equal(t, 2, slow.Reads(), "reads never overlap")

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
