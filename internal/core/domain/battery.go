package domain

// BatteryLimits are the static values advertised for the virtual battery.
type BatteryLimits struct {
	CapacityAh          float64
	MaxChargeVoltage    float64
	MaxDischargeCurrent float64
	LowVoltage          float64
}

// BusItemUpdate is a new value for one path of the virtual battery service.
// A nil Value marks the path as invalid.
type BusItemUpdate struct {
	Path  string
	Value any
	Text  string
}

const (
	BUS_PATH_DC_VOLTAGE            = "/Dc/0/Voltage"
	BUS_PATH_DC_CURRENT            = "/Dc/0/Current"
	BUS_PATH_DC_POWER              = "/Dc/0/Power"
	BUS_PATH_DC_TEMPERATURE        = "/Dc/0/Temperature"
	BUS_PATH_SOC                   = "/Soc"
	BUS_PATH_CAPACITY              = "/Capacity"
	BUS_PATH_MAX_CHARGE_VOLTAGE    = "/Info/MaxChargeVoltage"
	BUS_PATH_MAX_CHARGE_CURRENT    = "/Info/MaxChargeCurrent"
	BUS_PATH_MAX_DISCHARGE_CURRENT = "/Info/MaxDischargeCurrent"
	BUS_PATH_BATTERY_LOW_VOLTAGE   = "/Info/BatteryLowVoltage"
	BUS_PATH_ALARM_CELL_IMBALANCE  = "/Alarms/CellImbalance"
	BUS_PATH_ALARM_HIGH_CELL       = "/Alarms/HighCellVoltage"
	BUS_PATH_ALARM_LOW_CELL        = "/Alarms/LowCellVoltage"
)
