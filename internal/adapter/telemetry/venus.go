package telemetry

import (
	"fmt"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	"github.com/berfenger/bmsaggregator/pkg/vedbus"
)

type BatteryStateReader interface {
	GetState() (*vedbus.BatteryState, error)
}

// VenusUnitReader reads a battery service published on the Venus OS D-Bus.
type VenusUnitReader struct {
	unitId uint
	reader BatteryStateReader
}

func NewVenusUnitReader(unitId uint, reader BatteryStateReader) *VenusUnitReader {
	return &VenusUnitReader{
		unitId: unitId,
		reader: reader,
	}
}

func (r *VenusUnitReader) UnitId() uint {
	return r.unitId
}

func (r *VenusUnitReader) Open() error {
	return nil
}

func (r *VenusUnitReader) Close() error {
	return nil
}

func (r *VenusUnitReader) Read() (domain.UnitReading, error) {
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
		CellImbalanceAlarm: domain.AlarmFlag(state.CellImbalanceAlarm),
		HighCellAlarm:      domain.AlarmFlag(state.HighCellAlarm),
		LowCellAlarm:       domain.AlarmFlag(state.LowCellAlarm),
	}, nil
}

// ensure interface compliance
var _ port.UnitReader = (*VenusUnitReader)(nil)
