package events

import (
	"encoding/json"
	"fmt"
	"math"

	. "github.com/berfenger/bmsaggregator/internal/core/domain"
)

// StatePayload is the JSON state document of the virtual battery. Absent
// values are encoded as null.
type StatePayload struct {
	Voltage            *float64 `json:"voltage"`
	Current            *float64 `json:"current"`
	Power              *float64 `json:"power"`
	Temperature        *float64 `json:"temperature"`
	StateOfCharge      *float64 `json:"soc"`
	Spread             float64  `json:"soc_spread"`
	AlarmLevel         uint8    `json:"alarm_level"`
	AlarmState         string   `json:"alarm_state"`
	ChargeCurrentLimit float64  `json:"charge_current_limit"`
	CellAlarm          bool     `json:"cell_alarm"`
	UnitsReporting     int      `json:"units_reporting"`
}

func DecisionToStatePayload(d Decision) StatePayload {
	return StatePayload{
		Voltage:            roundOptional(d.Aggregate.Voltage, 3),
		Current:            roundOptional(d.Aggregate.Current, 2),
		Power:              roundOptional(d.Aggregate.Power, 1),
		Temperature:        roundOptional(d.Aggregate.Temperature, 1),
		StateOfCharge:      roundOptional(d.Aggregate.StateOfCharge, 1),
		Spread:             round(d.Assessment.Spread, 1),
		AlarmLevel:         uint8(d.Assessment.AlarmLevel),
		AlarmState:         d.Assessment.AlarmLevel.String(),
		ChargeCurrentLimit: round(d.Assessment.ChargeCurrentLimit, 2),
		CellAlarm:          d.Assessment.CellAlarm,
		UnitsReporting:     d.Assessment.ReportingUnits,
	}
}

func DecisionToUpdateEvents(d Decision) ([]any, error) {
	payload, err := json.Marshal(DecisionToStatePayload(d))
	if err != nil {
		return nil, fmt.Errorf("encode state document: %w", err)
	}
	var events []any
	events = append(events, StateDocumentUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: STATE_ID_VIRTUAL_BATTERY,
		},
		Payload: payload,
	})
	return events, nil
}

// DecisionToBusItems maps a decision to the virtual battery service paths.
func DecisionToBusItems(d Decision, limits BatteryLimits) []BusItemUpdate {
	var items []BusItemUpdate

	optional := func(path string, v *float64, decimals int, format string) {
		r := roundOptional(v, decimals)
		if r == nil {
			items = append(items, BusItemUpdate{Path: path})
		} else {
			items = append(items, BusItemUpdate{Path: path, Value: *r, Text: fmt.Sprintf(format, *r)})
		}
	}

	optional(BUS_PATH_DC_VOLTAGE, d.Aggregate.Voltage, 3, "%.2fV")
	optional(BUS_PATH_DC_CURRENT, d.Aggregate.Current, 2, "%.1fA")
	optional(BUS_PATH_DC_POWER, d.Aggregate.Power, 1, "%.0fW")
	optional(BUS_PATH_DC_TEMPERATURE, d.Aggregate.Temperature, 1, "%.1fC")
	optional(BUS_PATH_SOC, d.Aggregate.StateOfCharge, 1, "%.0f%%")

	limit := round(d.Assessment.ChargeCurrentLimit, 2)
	items = append(items,
		BusItemUpdate{Path: BUS_PATH_CAPACITY, Value: limits.CapacityAh, Text: fmt.Sprintf("%.0fAh", limits.CapacityAh)},
		BusItemUpdate{Path: BUS_PATH_MAX_CHARGE_VOLTAGE, Value: limits.MaxChargeVoltage, Text: fmt.Sprintf("%.2fV", limits.MaxChargeVoltage)},
		BusItemUpdate{Path: BUS_PATH_MAX_CHARGE_CURRENT, Value: limit, Text: fmt.Sprintf("%.1fA", limit)},
		BusItemUpdate{Path: BUS_PATH_MAX_DISCHARGE_CURRENT, Value: limits.MaxDischargeCurrent, Text: fmt.Sprintf("%.1fA", limits.MaxDischargeCurrent)},
		BusItemUpdate{Path: BUS_PATH_BATTERY_LOW_VOLTAGE, Value: limits.LowVoltage, Text: fmt.Sprintf("%.2fV", limits.LowVoltage)},
		BusItemUpdate{Path: BUS_PATH_ALARM_CELL_IMBALANCE, Value: int32(d.Assessment.AlarmLevel), Text: d.Assessment.AlarmLevel.String()},
	)
	return items
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// roundOptional drops non finite values, they have no JSON encoding.
func roundOptional(v *float64, decimals int) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return Float(round(*v, decimals))
}
