package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/bmsaggregator/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

const (
	SOURCE_MODBUS = "modbus"
	SOURCE_VEDBUS = "vedbus"
)

type Config struct {
	LogLevel  zapcore.Level
	Source    string          `mapstructure:"source"`
	Units     []UnitConfig    `mapstructure:"units"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	VEDBus    VEDBusConfig    `mapstructure:"vedbus"`
	Battery   BatteryConfig   `mapstructure:"battery"`
	Imbalance ImbalanceConfig `mapstructure:"imbalance"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

// UnitConfig addresses one BMU. Service is used by the vedbus source,
// Host, Port, SlaveId and RegisterBase by the modbus source.
type UnitConfig struct {
	Id           uint
	Name         string
	Service      string
	Host         string
	Port         uint
	SlaveId      uint   `mapstructure:"slave_id"`
	RegisterBase uint16 `mapstructure:"register_base"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	ReadTimeoutMillis  uint32 `mapstructure:"read_timeout_millis"`
}

type BatteryConfig struct {
	CapacityAh           float64 `mapstructure:"capacity_ah"`
	MaxChargeVoltage     float64 `mapstructure:"max_charge_voltage"`
	MaxDischargeCurrent  float64 `mapstructure:"max_discharge_current"`
	LowVoltage           float64 `mapstructure:"low_voltage"`
	NominalChargeCurrent float64 `mapstructure:"nominal_charge_current"`
	ReducedChargeCurrent float64 `mapstructure:"reduced_charge_current"`
}

type ImbalanceConfig struct {
	OkThreshold       float64 `mapstructure:"ok_threshold"`
	WarningThreshold  float64 `mapstructure:"warning_threshold"`
	AlarmThreshold    float64 `mapstructure:"alarm_threshold"`
	OkMultiplier      float64 `mapstructure:"ok_multiplier"`
	WarningMultiplier float64 `mapstructure:"warning_multiplier"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type VEDBusConfig struct {
	Publish        bool
	ServiceName    string `mapstructure:"service_name"`
	DeviceInstance uint32 `mapstructure:"device_instance"`
	ProductName    string `mapstructure:"product_name"`
}

// Policy builds the imbalance tier table.
func (cfg *Config) Policy() domain.ImbalancePolicy {
	return domain.NewImbalancePolicy(domain.ImbalanceThresholds{
		Ok:      cfg.Imbalance.OkThreshold,
		Warning: cfg.Imbalance.WarningThreshold,
		Alarm:   cfg.Imbalance.AlarmThreshold,
	}, cfg.Imbalance.OkMultiplier, cfg.Imbalance.WarningMultiplier,
		cfg.Battery.NominalChargeCurrent, cfg.Battery.ReducedChargeCurrent)
}

func (cfg *Config) Limits() domain.BatteryLimits {
	return domain.BatteryLimits{
		CapacityAh:          cfg.Battery.CapacityAh,
		MaxChargeVoltage:    cfg.Battery.MaxChargeVoltage,
		MaxDischargeCurrent: cfg.Battery.MaxDischargeCurrent,
		LowVoltage:          cfg.Battery.LowVoltage,
	}
}

// Validate checks the configuration and normalizes MQTT topics.
func (cfg *Config) Validate() error {

	var errs []error

	switch cfg.Source {
	case SOURCE_MODBUS, SOURCE_VEDBUS:
	default:
		errs = append(errs, fmt.Errorf("config param source must be %q or %q", SOURCE_MODBUS, SOURCE_VEDBUS))
	}

	if len(cfg.Units) == 0 {
		errs = append(errs, errors.New("config param units must define at least one unit"))
	}
	ids := map[uint]bool{}
	for i, u := range cfg.Units {
		if u.Id == 0 {
			errs = append(errs, fmt.Errorf("config param units[%d].id must be > 0", i))
		} else if ids[u.Id] {
			errs = append(errs, fmt.Errorf("config param units[%d].id %d is duplicated", i, u.Id))
		}
		ids[u.Id] = true
		switch cfg.Source {
		case SOURCE_VEDBUS:
			if u.Service == "" {
				errs = append(errs, fmt.Errorf("config param units[%d].service is required", i))
			}
		case SOURCE_MODBUS:
			if u.Host == "" {
				errs = append(errs, fmt.Errorf("config param units[%d].host is required", i))
			}
			if u.SlaveId > 255 {
				errs = append(errs, fmt.Errorf("config param units[%d].slave_id must be <= 255", i))
			}
		}
	}

	imb := cfg.Imbalance
	if !(imb.OkThreshold < imb.WarningThreshold && imb.WarningThreshold < imb.AlarmThreshold) {
		errs = append(errs, errors.New("config params imbalance thresholds must satisfy ok_threshold < warning_threshold < alarm_threshold"))
	}
	if imb.OkThreshold < 0 {
		errs = append(errs, errors.New("config param imbalance.ok_threshold should be >= 0"))
	}
	if imb.OkMultiplier <= 0 || imb.OkMultiplier > 1 {
		errs = append(errs, errors.New("config param imbalance.ok_multiplier must be in (0, 1]"))
	}
	if imb.WarningMultiplier <= 0 || imb.WarningMultiplier > imb.OkMultiplier {
		errs = append(errs, errors.New("config param imbalance.warning_multiplier must be in (0, ok_multiplier]"))
	}

	bat := cfg.Battery
	if bat.NominalChargeCurrent <= 0 {
		errs = append(errs, errors.New("config param battery.nominal_charge_current should be > 0"))
	}
	if bat.ReducedChargeCurrent < 0 || bat.ReducedChargeCurrent > bat.NominalChargeCurrent*imb.WarningMultiplier {
		errs = append(errs, errors.New("config param battery.reduced_charge_current must be in [0, nominal_charge_current * warning_multiplier]"))
	}
	if bat.CapacityAh <= 0 {
		errs = append(errs, errors.New("config param battery.capacity_ah should be > 0"))
	}

	if cfg.Monitor.PollIntervalMillis < 500 {
		errs = append(errs, errors.New("config param monitor.poll_interval_millis should be >= 500"))
	}
	if cfg.Monitor.ReadTimeoutMillis == 0 || cfg.Monitor.ReadTimeoutMillis >= cfg.Monitor.PollIntervalMillis {
		errs = append(errs, errors.New("config param monitor.read_timeout_millis must be > 0 and < monitor.poll_interval_millis"))
	}

	if !cfg.MQTT.Enable && !cfg.VEDBus.Publish {
		errs = append(errs, errors.New("no publisher enabled. enable mqtt.enable or vedbus.publish"))
	}
	if cfg.MQTT.Enable {
		// check and fix base topic
		baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			errs = append(errs, errors.New("invalid base topic. can only contain letters, numbers and underscores"))
		}
		cfg.MQTT.BaseTopic = baseTopic

		// check and fix homeassistant discovery topic
		hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			errs = append(errs, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores"))
		}
		cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	}
	if cfg.VEDBus.Publish && !strings.HasPrefix(cfg.VEDBus.ServiceName, "com.victronenergy.battery.") {
		errs = append(errs, errors.New("config param vedbus.service_name must start with com.victronenergy.battery."))
	}

	return errors.Join(errs...)
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
