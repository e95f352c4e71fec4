package vedbus

import (
	"errors"
	"fmt"
)

const (
	PATH_DC_VOLTAGE       = "/Dc/0/Voltage"
	PATH_DC_CURRENT       = "/Dc/0/Current"
	PATH_DC_TEMPERATURE   = "/Dc/0/Temperature"
	PATH_SOC              = "/Soc"
	PATH_ALARM_IMBALANCE  = "/Alarms/CellImbalance"
	PATH_ALARM_HIGH_CELL  = "/Alarms/HighCellVoltage"
	PATH_ALARM_LOW_CELL   = "/Alarms/LowCellVoltage"
	PATH_CONNECTED        = "/Connected"
	PATH_DEVICE_INSTANCE  = "/DeviceInstance"
	PATH_PRODUCT_ID       = "/ProductId"
	PATH_PRODUCT_NAME     = "/ProductName"
	PATH_FIRMWARE_VERSION = "/FirmwareVersion"
	PATH_HARDWARE_VERSION = "/HardwareVersion"
	PATH_CUSTOM_NAME      = "/CustomName"
	PATH_MGMT_PROCESSNAME = "/Mgmt/ProcessName"
	PATH_MGMT_VERSION     = "/Mgmt/ProcessVersion"
	PATH_MGMT_CONNECTION  = "/Mgmt/Connection"
)

// BatteryState is a snapshot of a Venus battery service. Nil values were
// invalid or could not be read. Alarms are 0 ok, 1 warning, 2 alarm.
type BatteryState struct {
	Voltage            *float64
	Current            *float64
	Temperature        *float64
	StateOfCharge      *float64
	CellImbalanceAlarm float64
	HighCellAlarm      float64
	LowCellAlarm       float64
}

type BatteryServiceReader struct {
	caller  ItemCaller
	service string
}

func NewBatteryServiceReader(caller ItemCaller, service string) *BatteryServiceReader {
	return &BatteryServiceReader{
		caller:  caller,
		service: service,
	}
}

func (r *BatteryServiceReader) Service() string {
	return r.service
}

func (r *BatteryServiceReader) GetValue(path string) (any, error) {
	v, err := r.caller.GetValue(r.service, path)
	if err != nil {
		return nil, fmt.Errorf("vedbus: %s%s: %w", r.service, path, err)
	}
	return v.Value(), nil
}

func (r *BatteryServiceReader) getFloat(path string) (*float64, error) {
	value, err := r.GetValue(path)
	if err != nil {
		return nil, err
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// GetState reads every battery path. A path that fails is left absent, an
// error is returned only when no path could be read.
func (r *BatteryServiceReader) GetState() (*BatteryState, error) {
	state := &BatteryState{}
	var errs []error

	numeric := []struct {
		path   string
		target **float64
	}{
		{PATH_DC_VOLTAGE, &state.Voltage},
		{PATH_DC_CURRENT, &state.Current},
		{PATH_DC_TEMPERATURE, &state.Temperature},
		{PATH_SOC, &state.StateOfCharge},
	}
	for _, n := range numeric {
		v, err := r.getFloat(n.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*n.target = v
	}

	alarms := []struct {
		path   string
		target *float64
	}{
		{PATH_ALARM_IMBALANCE, &state.CellImbalanceAlarm},
		{PATH_ALARM_HIGH_CELL, &state.HighCellAlarm},
		{PATH_ALARM_LOW_CELL, &state.LowCellAlarm},
	}
	for _, a := range alarms {
		v, err := r.getFloat(a.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if v != nil {
			*a.target = *v
		}
	}

	if len(errs) == len(numeric)+len(alarms) {
		return nil, errors.Join(errs...)
	}
	return state, nil
}
