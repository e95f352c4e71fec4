package bmu_modbus

import "fmt"

// Holding register layout of a BMU, relative to its register base.
const (
	RegVoltage     uint16 = 0 // uint16, 0.01 V
	RegCurrent     uint16 = 1 // int16, 0.1 A, positive when charging
	RegTemperature uint16 = 2 // int16, 0.1 C
	RegSoC         uint16 = 3 // uint16, 0.1 %
	RegAlarms      uint16 = 4 // bit field, see Alarm*
	RegBlockSize   uint16 = 5
)

const (
	AlarmCellImbalance uint16 = 1 << 0
	AlarmHighCell      uint16 = 1 << 1
	AlarmLowCell       uint16 = 1 << 2
)

// not implemented markers
const (
	notImplementedUint16 uint16 = 0xFFFF
	notImplementedInt16  uint16 = 0x8000
)

// BMUState is one snapshot of a BMU. Nil values were not reported.
type BMUState struct {
	Voltage       *float64
	Current       *float64
	Temperature   *float64
	StateOfCharge *float64
	Alarms        uint16
}

func (s BMUState) CellImbalanceAlarm() bool {
	return s.Alarms&AlarmCellImbalance != 0
}

func (s BMUState) HighCellAlarm() bool {
	return s.Alarms&AlarmHighCell != 0
}

func (s BMUState) LowCellAlarm() bool {
	return s.Alarms&AlarmLowCell != 0
}

type BMUModbusReader interface {
	Open() error
	Close() error
	GetState() (*BMUState, error)
}

func decodeUint16(raw uint16, scale float64) *float64 {
	if raw == notImplementedUint16 {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func decodeInt16(raw uint16, scale float64) *float64 {
	if raw == notImplementedInt16 {
		return nil
	}
	v := float64(int16(raw)) * scale
	return &v
}

func decodeAlarms(raw uint16) uint16 {
	if raw == notImplementedUint16 {
		return 0
	}
	return raw & (AlarmCellImbalance | AlarmHighCell | AlarmLowCell)
}

func decodeRegister(offset uint16, raw uint16, state *BMUState) {
	switch offset {
	case RegVoltage:
		state.Voltage = decodeUint16(raw, 0.01)
	case RegCurrent:
		state.Current = decodeInt16(raw, 0.1)
	case RegTemperature:
		state.Temperature = decodeInt16(raw, 0.1)
	case RegSoC:
		state.StateOfCharge = decodeUint16(raw, 0.1)
		if state.StateOfCharge != nil && *state.StateOfCharge > 100 {
			state.StateOfCharge = nil
		}
	case RegAlarms:
		state.Alarms = decodeAlarms(raw)
	}
}

func (s BMUState) String() string {
	f := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	return fmt.Sprintf("V=%s I=%s T=%s SoC=%s alarms=%03b", f(s.Voltage), f(s.Current), f(s.Temperature), f(s.StateOfCharge), s.Alarms)
}
