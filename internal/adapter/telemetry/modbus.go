package telemetry

import (
	"fmt"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	"github.com/berfenger/bmsaggregator/pkg/bmu_modbus"
)

// ModbusUnitReader reads a BMU over Modbus TCP.
type ModbusUnitReader struct {
	unitId uint
	reader bmu_modbus.BMUModbusReader
}

func NewModbusUnitReader(unitId uint, reader bmu_modbus.BMUModbusReader) *ModbusUnitReader {
	return &ModbusUnitReader{
		unitId: unitId,
		reader: reader,
	}
}

func (r *ModbusUnitReader) UnitId() uint {
	return r.unitId
}

func (r *ModbusUnitReader) Open() error {
	return r.reader.Open()
}

func (r *ModbusUnitReader) Close() error {
	return r.reader.Close()
}

func (r *ModbusUnitReader) Read() (domain.UnitReading, error) {
	state, err := r.reader.GetState()
	if err != nil {
		return domain.UnreadableUnit(r.unitId), fmt.Errorf("unit %d: %w", r.unitId, err)
	}
	return domain.UnitReading{
		UnitId:             r.unitId,
		Voltage:            state.Voltage,
		Current:            state.Current,
		Temperature:        state.Temperature,
		StateOfCharge:      state.StateOfCharge,
		CellImbalanceAlarm: state.CellImbalanceAlarm(),
		HighCellAlarm:      state.HighCellAlarm(),
		LowCellAlarm:       state.LowCellAlarm(),
	}, nil
}

// ensure interface compliance
var _ port.UnitReader = (*ModbusUnitReader)(nil)
