package domain

import "fmt"

// UnitReading is one BMU snapshot for a single cycle. Nil values are absent
// (unit unreachable or field unsupported).
type UnitReading struct {
	UnitId        uint
	Voltage       *float64
	Current       *float64
	Temperature   *float64
	StateOfCharge *float64

	CellImbalanceAlarm bool
	HighCellAlarm      bool
	LowCellAlarm       bool
}

// AggregateReading is the virtual battery state derived from one cycle.
type AggregateReading struct {
	Voltage       *float64
	Current       *float64
	Temperature   *float64
	StateOfCharge *float64
	Power         *float64
}

// UnreadableUnit is the reading of a unit that could not be read at all.
func UnreadableUnit(unitId uint) UnitReading {
	return UnitReading{UnitId: unitId}
}

func (r UnitReading) AnyCellAlarm() bool {
	return r.CellImbalanceAlarm || r.HighCellAlarm || r.LowCellAlarm
}

func (r UnitReading) IsEmpty() bool {
	return r.Voltage == nil && r.Current == nil && r.Temperature == nil && r.StateOfCharge == nil
}

func (r UnitReading) String() string {
	return fmt.Sprintf("unit%d{V:%s I:%s T:%s SoC:%s imb:%t high:%t low:%t}", r.UnitId,
		FormatOptional(r.Voltage, 2), FormatOptional(r.Current, 1), FormatOptional(r.Temperature, 1),
		FormatOptional(r.StateOfCharge, 0), r.CellImbalanceAlarm, r.HighCellAlarm, r.LowCellAlarm)
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}

// AlarmFlag collapses the tri-state BMU alarm (0 ok, 1 warning, 2 alarm) to a flag.
func AlarmFlag(v float64) bool {
	return v != 0
}

func FormatOptional(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}
