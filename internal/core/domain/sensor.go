package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE                 = "bridge"
	SENSOR_ID_BATTERY_VOLTAGE              = "battery_voltage"
	SENSOR_ID_BATTERY_CURRENT              = "battery_current"
	SENSOR_ID_BATTERY_POWER                = "battery_power"
	SENSOR_ID_BATTERY_TEMPERATURE          = "battery_temperature"
	SENSOR_ID_BATTERY_SOC                  = "battery_soc"
	SENSOR_ID_BATTERY_SOC_SPREAD           = "battery_soc_spread"
	SENSOR_ID_BATTERY_IMBALANCE_STATE      = "battery_imbalance_state"
	SENSOR_ID_BATTERY_CHARGE_CURRENT_LIMIT = "battery_charge_current_limit"
	SENSOR_ID_BATTERY_CELL_ALARM           = "battery_cell_alarm"
	SENSOR_ID_BATTERY_UNITS_REPORTING      = "battery_units_reporting"
	STATE_ID_VIRTUAL_BATTERY               = "virtual_battery"
	STATE_CLASS_MEASUREMENT                = "measurement"
	DEVICE_CLASS_BATTERY                   = "battery"
	DEVICE_CLASS_CURRENT                   = "current"
	DEVICE_CLASS_POWER                     = "power"
	DEVICE_CLASS_TEMPERATURE               = "temperature"
	DEVICE_CLASS_VOLTAGE                   = "voltage"
	DEVICE_CLASS_CONNECTIVITY              = "connectivity"
	DEVICE_CLASS_PROBLEM                   = "problem"
	ENTITY_CLASS_DIAGNOSTIC                = "diagnostic"
	SENSOR_TYPE_SENSOR                     = "sensor"
	SENSOR_TYPE_BINARY                     = "binary_sensor"
)

// state document keys, see events.StatePayload
const (
	STATE_KEY_VOLTAGE              = "voltage"
	STATE_KEY_CURRENT              = "current"
	STATE_KEY_POWER                = "power"
	STATE_KEY_TEMPERATURE          = "temperature"
	STATE_KEY_SOC                  = "soc"
	STATE_KEY_SOC_SPREAD           = "soc_spread"
	STATE_KEY_ALARM_STATE          = "alarm_state"
	STATE_KEY_CHARGE_CURRENT_LIMIT = "charge_current_limit"
	STATE_KEY_CELL_ALARM           = "cell_alarm"
	STATE_KEY_UNITS_REPORTING      = "units_reporting"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("bmsagg_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "bmsaggregator",
		Model:        "BMS Aggregator",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("BMS Aggregator %s", md5HashShort(baseTopic)),
	}
}

func VirtualBatteryDevice(baseTopic string, unitCount int, capacityAh float64) Device {
	return Device{
		Id:           fmt.Sprintf("bmsagg_battery_%s", md5HashShort(baseTopic)),
		Manufacturer: "bmsaggregator",
		Model:        fmt.Sprintf("%dx BMU %.0f Ah", unitCount, capacityAh),
		Version:      versioninfo.Short(),
		Name:         "Virtual battery",
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func VirtualBatterySensors(batteryDevice Device) []GenericSensor {

	var sensors []GenericSensor

	measurement := func(id, name, deviceClass, unit, key string) GenericSensor {
		return GenericSensor{
			Device:            batteryDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: unit,
			UniqueId:          uniqueId(batteryDevice.Id, id),
			StateId:           STATE_ID_VIRTUAL_BATTERY,
			ValueTemplate:     jsonValueTemplate(key),
		}
	}

	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_VOLTAGE, "Voltage", DEVICE_CLASS_VOLTAGE, "V", STATE_KEY_VOLTAGE))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_CURRENT, "Current", DEVICE_CLASS_CURRENT, "A", STATE_KEY_CURRENT))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_POWER, "Power", DEVICE_CLASS_POWER, "W", STATE_KEY_POWER))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_TEMPERATURE, "Temperature", DEVICE_CLASS_TEMPERATURE, "°C", STATE_KEY_TEMPERATURE))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_SOC, "State of charge", DEVICE_CLASS_BATTERY, "%", STATE_KEY_SOC))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_CHARGE_CURRENT_LIMIT, "Max charge current", DEVICE_CLASS_CURRENT, "A", STATE_KEY_CHARGE_CURRENT_LIMIT))

	spread := measurement(SENSOR_ID_BATTERY_SOC_SPREAD, "SoC spread", "", "%", STATE_KEY_SOC_SPREAD)
	spread.Icon = "mdi:scale-unbalanced"
	spread.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
	sensors = append(sensors, spread)

	reporting := measurement(SENSOR_ID_BATTERY_UNITS_REPORTING, "Units reporting", "", "", STATE_KEY_UNITS_REPORTING)
	reporting.Icon = "mdi:battery-sync"
	reporting.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
	reporting.EnabledByDefault = optionalBool(false)
	sensors = append(sensors, reporting)

	// Imbalance state (ok, warning, alarm)
	sensors = append(sensors, GenericSensor{
		Device:        batteryDevice,
		Id:            SENSOR_ID_BATTERY_IMBALANCE_STATE,
		SensorType:    SENSOR_TYPE_SENSOR,
		Name:          "Imbalance state",
		Icon:          "mdi:alert",
		UniqueId:      uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_IMBALANCE_STATE),
		StateId:       STATE_ID_VIRTUAL_BATTERY,
		ValueTemplate: jsonValueTemplate(STATE_KEY_ALARM_STATE),
	})

	// Cell alarm reported by any unit
	sensors = append(sensors, GenericSensor{
		Device:        batteryDevice,
		Id:            SENSOR_ID_BATTERY_CELL_ALARM,
		SensorType:    SENSOR_TYPE_BINARY,
		Name:          "Cell alarm",
		DeviceClass:   DEVICE_CLASS_PROBLEM,
		UniqueId:      uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_CELL_ALARM),
		StateId:       STATE_ID_VIRTUAL_BATTERY,
		ValueTemplate: fmt.Sprintf("{{ 'on' if value_json.%s else 'off' }}", STATE_KEY_CELL_ALARM),
		PayloadOn:     "on",
		PayloadOff:    "off",
	})

	return sensors
}

func jsonValueTemplate(key string) string {
	return fmt.Sprintf("{{ value_json.%s }}", key)
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
