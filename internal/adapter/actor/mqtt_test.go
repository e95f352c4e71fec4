package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/mqtt"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func offlineMQTTActor() *MQTTActor {
	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Enable:           true,
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "bmsagg",
			HADiscoveryTopic: "homeassistant",
		},
	}
	act := NewMQTTActor(cfg, zap.NewNop())
	act.client = mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg), nil, nil)
	return act
}

func TestEvent2MQTTMessage(t *testing.T) {

	assert := assert.New(t)
	act := offlineMQTTActor()

	msg := act.event2MQTTMessage(domain.StateDocumentUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.STATE_ID_VIRTUAL_BATTERY},
		Payload:                []byte(`{"soc":80}`),
	})
	require.NotNil(t, msg)
	assert.Equal("bmsagg/virtual_battery/state", msg.topic)
	assert.Equal([]byte(`{"soc":80}`), msg.message)
	assert.True(msg.retain, "state document is retained")

	msg = act.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: false})
	require.NotNil(t, msg)
	assert.Equal("bmsagg/bridge/state", msg.topic)
	assert.Equal([]byte(mqtt.MQTT_PAYLOAD_OFFLINE), msg.message)

	assert.Nil(act.event2MQTTMessage("unknown"))
}

func TestDecisionResponse(t *testing.T) {
	resp := decisionResponse(errors.New("timeout"))
	assert.Equal(t, PUBLISHER_MQTT, resp.Publisher)
	assert.True(t, resp.HasResponseError())
}

func TestTestPublisherActor(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	publisher := NewTestPublisherActor(domain.ACTOR_ID_MQTT, logger)
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return publisher }))

	soc := 75.0
	decision := domain.Decision{
		Aggregate:  domain.AggregateReading{StateOfCharge: &soc},
		Assessment: domain.ImbalanceAssessment{ChargeCurrentLimit: 150},
	}
	result, err := context.RequestFuture(pid, domain.PublishDecisionRequest{Decision: decision}, 2*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.PublishDecisionResponse)
	assert.NoError(t, resp.ResponseError)
	assert.Equal(t, domain.ACTOR_ID_MQTT, resp.Publisher)

	publisher.Fail(errors.New("broker down"))
	result, err = context.RequestFuture(pid, domain.PublishDecisionRequest{Decision: decision}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.Error(t, result.(domain.PublishDecisionResponse).ResponseError)

	decisions := publisher.Decisions()
	require.Len(t, decisions, 2)
	assert.Equal(t, 75.0, *decisions[0].Aggregate.StateOfCharge)

	context.Stop(pid)
	as.Shutdown()
}
