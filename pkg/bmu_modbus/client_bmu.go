package bmu_modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type BMUClient struct {
	ModbusClient
	registerBase uint16
	logger       *zap.Logger

	mu     sync.Mutex
	opened bool
}

func CreateBMUModbusReader(host string, port uint, slaveId uint8, registerBase uint16, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (BMUModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	// set BMU address
	if slaveId > 0 {
		err = client.SetUnitId(slaveId)
		if err != nil {
			return nil, err
		}
	}

	return NewBMUClient(client, registerBase, logger.With(zap.String("target", "bmu"), zap.Uint8("slave", slaveId)), instrumentation), nil
}

func NewBMUClient(client RegisterClient, registerBase uint16, logger *zap.Logger, instrumentation *ModbusInstrument) *BMUClient {
	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger)
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &BMUClient{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		registerBase: registerBase,
		logger:       logger,
	}
}

func (bmu *BMUClient) Open() error {
	bmu.mu.Lock()
	defer bmu.mu.Unlock()
	return bmu.open()
}

func (bmu *BMUClient) open() error {
	if bmu.opened {
		return nil
	}
	if err := bmu.client.Open(); err != nil {
		return err
	}
	bmu.opened = true
	return nil
}

func (bmu *BMUClient) Close() error {
	bmu.mu.Lock()
	defer bmu.mu.Unlock()
	if !bmu.opened {
		return nil
	}
	bmu.opened = false
	return bmu.client.Close()
}

// GetState reads the whole register block. When the BMU rejects the block
// read, registers are read one by one and those that fail are left absent.
// Transport errors close the connection, it is reopened on the next call.
func (bmu *BMUClient) GetState() (*BMUState, error) {
	bmu.mu.Lock()
	defer bmu.mu.Unlock()

	if err := bmu.open(); err != nil {
		return nil, fmt.Errorf("bmu: open: %w", err)
	}

	regs, err := bmu.readRegisters(bmu.registerBase, RegBlockSize, modbus.HOLDING_REGISTER)
	if err == nil {
		state := &BMUState{}
		for offset, raw := range regs {
			decodeRegister(uint16(offset), raw, state)
		}
		return state, nil
	}
	if !isProtocolError(err) {
		bmu.reset()
		return nil, fmt.Errorf("bmu: read block: %w", err)
	}

	bmu.logger.Debug("block read rejected, reading registers one by one", zap.Error(err))
	state := &BMUState{}
	read := 0
	for offset := uint16(0); offset < RegBlockSize; offset++ {
		raw, err := bmu.readRegister(bmu.registerBase+offset, modbus.HOLDING_REGISTER)
		if err != nil {
			if !isProtocolError(err) {
				bmu.reset()
				return nil, fmt.Errorf("bmu: read register %d: %w", offset, err)
			}
			continue
		}
		decodeRegister(offset, raw, state)
		read++
	}
	if read == 0 {
		return nil, errors.New("bmu: no readable register")
	}
	return state, nil
}

func (bmu *BMUClient) reset() {
	if !bmu.opened {
		return
	}
	bmu.opened = false
	if err := bmu.client.Close(); err != nil {
		bmu.logger.Debug("close failed", zap.Error(err))
	}
}

// isProtocolError reports exceptions returned by the device, as opposed to
// transport failures.
func isProtocolError(err error) bool {
	return errors.Is(err, modbus.ErrIllegalFunction) ||
		errors.Is(err, modbus.ErrIllegalDataAddress) ||
		errors.Is(err, modbus.ErrIllegalDataValue) ||
		errors.Is(err, modbus.ErrServerDeviceFailure)
}
