package mqtt

import (
	"testing"

	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "bmsagg",
			HADiscoveryTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestOptsFromConfig(t *testing.T) {

	assert := assert.New(t)

	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:      "broker",
			Port:      1884,
			Username:  "user",
			Password:  "secret",
			BaseTopic: "bmsagg",
		},
	}
	opts := OptsFromConfig(&cfg)

	assert.Len(opts.Servers, 1)
	assert.Equal("broker:1884", opts.Servers[0].Host)
	assert.Equal("user", opts.Username)
	assert.True(opts.WillEnabled)
	assert.True(opts.WillRetained)
	assert.Equal("bmsagg/bridge/state", opts.WillTopic)
	assert.Equal([]byte(MQTT_PAYLOAD_OFFLINE), opts.WillPayload)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("bmsagg/bridge/state", c.BridgeStateTopic())
	assert.Equal("bmsagg/virtual_battery/state", c.StateTopic(domain.STATE_ID_VIRTUAL_BATTERY))
	assert.Equal("homeassistant/status", c.HAStatusTopic())
}

func TestVirtualBatteryDiscovery(t *testing.T) {

	require := require.New(t)

	c := testClient()
	dev := domain.VirtualBatteryDevice("bmsagg", 3, 450)
	sensors := domain.VirtualBatterySensors(dev)
	require.NotEmpty(sensors)

	for _, s := range sensors {
		msg := GenericSensorToHADiscoveryMessage(c, s)
		require.Equal("bmsagg/virtual_battery/state", msg.StateTopic, s.Id)
		require.NotEmpty(msg.ValueTemplate, s.Id)
		require.Equal("bmsagg/bridge/state", msg.AvTopic)
		require.Equal([]string{dev.Id}, msg.Device.Id)
		require.Equal("mqtt", msg.Platform)
		require.Contains(HADiscoverySensorTopic(c, s), "homeassistant/"+s.SensorType+"/"+dev.Id+"/")
		if s.Id == domain.SENSOR_ID_BATTERY_VOLTAGE {
			require.Equal("{{ value_json.voltage }}", msg.ValueTemplate)
			require.Equal("V", msg.UnitOfMeasurement)
		}
		if s.Id == domain.SENSOR_ID_BATTERY_CELL_ALARM {
			require.Equal(MQTT_PAYLOAD_ON, msg.PayloadOn)
			require.Equal(MQTT_PAYLOAD_OFF, msg.PayloadOff)
		}
	}
}

func TestBridgeDiscovery(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	bridge := domain.BridgeSensors(domain.BridgeDevice("bmsagg"))
	assert.Len(bridge, 1)

	msg := GenericSensorToHADiscoveryMessage(c, bridge[0])
	assert.Equal(c.BridgeStateTopic(), msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
	assert.Empty(msg.ValueTemplate)
}
