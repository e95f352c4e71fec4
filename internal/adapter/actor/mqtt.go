package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/events"
	"github.com/berfenger/bmsaggregator/internal/mqtt"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const PUBLISHER_MQTT = "mqtt"

type MQTTActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.MQTTClient
	logger   *zap.Logger

	// discovery sensors, republished when Home Assistant comes online
	sensors []domain.GenericSensor

	// in-flight decision publication
	pending    int
	publishErr []error
	replyTo    *actor.PID
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type HAStatusReceived struct {
	Payload string
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type rawMessage struct {
	topic   string
	message []byte
	retain  bool
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    actorutil.NewStash(actorutil.STASH_LIMIT),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		if !state.config.MQTT.HADiscoveryEnable {
			ctx.Send(ctx.Self(), MQTTSubscribed{})
			return
		}
		// Home Assistant birth message triggers a discovery refresh
		state.client.Subscribe(state.client.HAStatusTopic(), 0, func(c pahomqtt.Client, m pahomqtt.Message) {
			ctx.Send(ctx.Self(), HAStatusReceived{Payload: string(m.Payload())})
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishDecisionRequest:
		state.logger.Debug("mqtt@default PublishDecisionRequest")
		state.publishDecision(ctx, msg.Decision, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery", zap.Int("sensors", len(msg.Sensors)))
		state.sensors = msg.Sensors
		err := state.PublishHomeAssistantDiscovery(state.sensors)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
		}
	case HAStatusReceived:
		state.logger.Debug("mqtt@default HAStatusReceived", zap.String("payload", msg.Payload))
		if msg.Payload == mqtt.MQTT_PAYLOAD_ONLINE && len(state.sensors) > 0 {
			if err := state.PublishHomeAssistantDiscovery(state.sensors); err != nil {
				state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
			}
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.StateDocumentUpdateEvent:
		return &rawMessage{
			topic:   state.client.StateTopic(msg.Id),
			message: msg.Payload,
			retain:  true,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: []byte(stringMessage),
			retain:  true,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) publishDecision(ctx actor.Context, decision domain.Decision, replyTo *actor.PID) {
	evs, err := events.DecisionToUpdateEvents(decision)
	if err != nil {
		state.logger.Error("mqtt@default could not encode decision", zap.Error(err))
		if replyTo != nil {
			ctx.Send(replyTo, decisionResponse(err))
		}
		return
	}
	var msgs []*rawMessage
	for _, ev := range evs {
		if m := state.event2MQTTMessage(ev); m != nil {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		if replyTo != nil {
			ctx.Send(replyTo, decisionResponse(nil))
		}
		return
	}
	state.pending = len(msgs)
	state.publishErr = nil
	state.replyTo = replyTo
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	for _, m := range msgs {
		state.logger.Sugar().Debugf("mqtt@publish: state publish %s => %s", m.topic, m.message)
		state.client.Publish(m.topic, m.message, 1, m.retain, func(err error) {
			root.Send(self, publishResult{Error: err})
		}, 5*time.Second)
	}
	state.behavior.BecomeStacked(state.DecisionPublishResultReceive)
}

func (state *MQTTActor) DecisionPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish the state document", zap.Error(msg.Error))
			state.publishErr = append(state.publishErr, msg.Error)
		}
		state.pending--
		if state.pending > 0 {
			return
		}
		if state.replyTo != nil {
			ctx.Send(state.replyTo, decisionResponse(errors.Join(state.publishErr...)))
		}
		state.replyTo = nil
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor) error {
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySensorTopic(state.client, sensors[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func decisionResponse(err error) domain.PublishDecisionResponse {
	return domain.PublishDecisionResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: err,
		},
		Publisher: PUBLISHER_MQTT,
	}
}

// TestPublisherActor answers publish requests without a broker and records
// the decisions it received.
type TestPublisherActor struct {
	id        string
	logger    *zap.Logger
	mu        sync.Mutex
	decisions []domain.Decision
	err       error
}

func NewTestPublisherActor(id string, logger *zap.Logger) *TestPublisherActor {
	return &TestPublisherActor{
		id:     id,
		logger: actorutil.ActorLogger(id, logger),
	}
}

// Fail makes every following publication answer with err.
func (state *TestPublisherActor) Fail(err error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.err = err
}

func (state *TestPublisherActor) Decisions() []domain.Decision {
	state.mu.Lock()
	defer state.mu.Unlock()
	return append([]domain.Decision(nil), state.decisions...)
}

func (state *TestPublisherActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      state.id,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishDecisionRequest:
		state.logger.Debug(state.id + "@dummy PublishDecisionRequest")
		state.mu.Lock()
		state.decisions = append(state.decisions, msg.Decision)
		err := state.err
		state.mu.Unlock()
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDecisionResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Publisher:          state.id,
		})
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishMessageResponse{})
		}
	case domain.PublishDiscoveryRequest:
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{})
		}
	}
}
