package actor

import (
	"testing"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHADiscoverySensors(t *testing.T) {

	cfg := util.LoadTestConfig()
	act := NewHADiscoveryActor(&cfg, nil, zap.NewNop())

	sensors := act.sensors()
	require.NotEmpty(t, sensors)

	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, sensors[0].Id)

	battery := sensors[len(domain.BridgeSensors(domain.BridgeDevice(cfg.MQTT.BaseTopic))):]
	require.NotEmpty(t, battery)
	assert.NotEmpty(t, battery[0].Device.Model, "first battery sensor carries the full device")
	for _, s := range battery {
		assert.Equal(t, domain.STATE_ID_VIRTUAL_BATTERY, s.StateId)
	}
	for _, s := range battery[1:] {
		assert.Empty(t, s.Device.Model, "other sensors reference the device by id")
	}
}
