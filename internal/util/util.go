package util

import (
	"github.com/berfenger/bmsaggregator/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig returns a valid configuration with three vedbus units, MQTT
// publishing and a short poll interval.
func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Source:   config.SOURCE_VEDBUS,
		Units: []config.UnitConfig{
			{Id: 1, Name: "node1", Service: "com.victronenergy.battery.canopen_bms_node1"},
			{Id: 2, Name: "node2", Service: "com.victronenergy.battery.canopen_bms_node2"},
			{Id: 3, Name: "node3", Service: "com.victronenergy.battery.canopen_bms_node3"},
		},
		MQTT: config.MQTTConfig{
			Enable:           true,
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "bmsaggregator",
			HADiscoveryTopic: "homeassistant",
		},
		VEDBus: config.VEDBusConfig{
			ServiceName:    "com.victronenergy.battery.aggregator",
			DeviceInstance: 280,
			ProductName:    "BMS Aggregator",
		},
		Battery: config.BatteryConfig{
			CapacityAh:           450,
			MaxChargeVoltage:     14.2,
			MaxDischargeCurrent:  150,
			LowVoltage:           11.5,
			NominalChargeCurrent: 150,
			ReducedChargeCurrent: 50,
		},
		Imbalance: config.ImbalanceConfig{
			OkThreshold:       5,
			WarningThreshold:  10,
			AlarmThreshold:    15,
			OkMultiplier:      0.85,
			WarningMultiplier: 0.66,
		},
		Monitor: config.MonitorConfig{
			PollIntervalMillis: 500,
			ReadTimeoutMillis:  300,
		},
		Port: 8080,
	}
}
