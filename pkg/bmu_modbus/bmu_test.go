package bmu_modbus

import (
	"errors"
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegisterClient struct {
	registers    map[uint16]uint16
	blockErr     error
	registerErrs map[uint16]error
	opens        int
	closes       int
}

func (c *fakeRegisterClient) Open() error {
	c.opens++
	return nil
}

func (c *fakeRegisterClient) Close() error {
	c.closes++
	return nil
}

func (c *fakeRegisterClient) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	if quantity > 1 && c.blockErr != nil {
		return nil, c.blockErr
	}
	regs := make([]uint16, 0, quantity)
	for i := uint16(0); i < quantity; i++ {
		if err, ok := c.registerErrs[addr+i]; ok {
			return nil, err
		}
		regs = append(regs, c.registers[addr+i])
	}
	return regs, nil
}

func regs(base uint16, values ...uint16) map[uint16]uint16 {
	m := map[uint16]uint16{}
	for i, v := range values {
		m[base+uint16(i)] = v
	}
	return m
}

func TestGetStateDecodesBlock(t *testing.T) {

	require := require.New(t)

	current := int16(-125)
	client := &fakeRegisterClient{registers: regs(100, 1325, uint16(current), 215, 795, AlarmHighCell)}
	bmu := NewBMUClient(client, 100, zap.NewNop(), nil)

	state, err := bmu.GetState()
	require.NoError(err)
	require.InDelta(13.25, *state.Voltage, 1e-9)
	require.InDelta(-12.5, *state.Current, 1e-9)
	require.InDelta(21.5, *state.Temperature, 1e-9)
	require.InDelta(79.5, *state.StateOfCharge, 1e-9)
	require.False(state.CellImbalanceAlarm())
	require.True(state.HighCellAlarm())
	require.False(state.LowCellAlarm())
	require.Equal(1, client.opens)
}

func TestGetStateNotImplementedValues(t *testing.T) {

	assert := assert.New(t)

	client := &fakeRegisterClient{registers: regs(0, 0xFFFF, 0x8000, 0x8000, 0xFFFF, 0xFFFF)}
	bmu := NewBMUClient(client, 0, zap.NewNop(), nil)

	state, err := bmu.GetState()
	if assert.NoError(err) {
		assert.Nil(state.Voltage)
		assert.Nil(state.Current)
		assert.Nil(state.Temperature)
		assert.Nil(state.StateOfCharge)
		assert.Zero(state.Alarms)
	}
}

func TestGetStateOutOfRangeSoC(t *testing.T) {

	client := &fakeRegisterClient{registers: regs(0, 1300, 0, 200, 1200, 0)}
	bmu := NewBMUClient(client, 0, zap.NewNop(), nil)

	state, err := bmu.GetState()
	require.NoError(t, err)
	assert.Nil(t, state.StateOfCharge)
}

func TestGetStateFallsBackToSingleRegisters(t *testing.T) {

	require := require.New(t)

	client := &fakeRegisterClient{
		registers:    regs(0, 1310, 40, 0, 650, AlarmCellImbalance|AlarmLowCell),
		blockErr:     modbus.ErrIllegalDataAddress,
		registerErrs: map[uint16]error{RegTemperature: modbus.ErrIllegalDataAddress},
	}
	bmu := NewBMUClient(client, 0, zap.NewNop(), nil)

	state, err := bmu.GetState()
	require.NoError(err)
	require.InDelta(13.1, *state.Voltage, 1e-9)
	require.InDelta(4, *state.Current, 1e-9)
	require.Nil(state.Temperature, "unsupported register is absent")
	require.InDelta(65, *state.StateOfCharge, 1e-9)
	require.True(state.CellImbalanceAlarm())
	require.True(state.LowCellAlarm())
	require.Zero(client.closes)
}

func TestGetStateTransportErrorReconnects(t *testing.T) {

	require := require.New(t)

	client := &fakeRegisterClient{
		registers: regs(0, 1300, 0, 200, 500, 0),
		blockErr:  errors.New("connection reset"),
	}
	bmu := NewBMUClient(client, 0, zap.NewNop(), nil)

	_, err := bmu.GetState()
	require.Error(err)
	require.Equal(1, client.closes)

	client.blockErr = nil
	state, err := bmu.GetState()
	require.NoError(err)
	require.InDelta(50, *state.StateOfCharge, 1e-9)
	require.Equal(2, client.opens)
}

func TestInstrumentation(t *testing.T) {

	calls := map[string]int{}
	inst := &ModbusInstrument{
		RecordTime: func(fnName string, _ time.Duration) {
			calls[fnName]++
		},
	}
	client := &fakeRegisterClient{registers: regs(0, 1300, 0, 200, 500, 0)}
	bmu := NewBMUClient(client, 0, zap.NewNop(), inst)

	_, err := bmu.GetState()
	require.NoError(t, err)
	assert.Equal(t, 1, calls["ReadRegisters"])
}
