package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ENV_PREFIX = "bmsagg"

// Load reads the configuration from defaults, environment and the optional
// yaml file, then validates it.
func Load(v *viper.Viper, configFile string) (*Config, error) {

	// alias PORT => BMSAGG_PORT
	if port := os.Getenv("PORT"); port != "" && os.Getenv("BMSAGG_PORT") == "" {
		v.SetDefault("port", port)
	}

	SetDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.AutomaticEnv()

	// if defined, load config from yaml file
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace":
		return zap.DebugLevel
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("source", SOURCE_VEDBUS)
	v.SetDefault("units", []map[string]any{
		{"id": 1, "name": "node1", "service": "com.victronenergy.battery.canopen_bms_node1"},
		{"id": 2, "name": "node2", "service": "com.victronenergy.battery.canopen_bms_node2"},
		{"id": 3, "name": "node3", "service": "com.victronenergy.battery.canopen_bms_node3"},
	})
	v.SetDefault("mqtt.enable", true)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.base_topic", "bmsaggregator")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("vedbus.publish", false)
	v.SetDefault("vedbus.service_name", "com.victronenergy.battery.aggregator")
	v.SetDefault("vedbus.device_instance", 280)
	v.SetDefault("vedbus.product_name", "BMS Aggregator")
	v.SetDefault("battery.capacity_ah", 450.0)
	v.SetDefault("battery.max_charge_voltage", 14.2)
	v.SetDefault("battery.max_discharge_current", 150.0)
	v.SetDefault("battery.low_voltage", 11.5)
	v.SetDefault("battery.nominal_charge_current", 150.0)
	v.SetDefault("battery.reduced_charge_current", 50.0)
	v.SetDefault("imbalance.ok_threshold", 5.0)
	v.SetDefault("imbalance.warning_threshold", 10.0)
	v.SetDefault("imbalance.alarm_threshold", 15.0)
	v.SetDefault("imbalance.ok_multiplier", 0.85)
	v.SetDefault("imbalance.warning_multiplier", 0.66)
	v.SetDefault("monitor.poll_interval_millis", 2000)
	v.SetDefault("monitor.read_timeout_millis", 1500)
	v.SetDefault("port", 8080)
}
