package bmu_modbus

type TestBMUModbusReader struct {
	State BMUState
}

func CreateTestBMUModbusReader(state BMUState) BMUModbusReader {
	return &TestBMUModbusReader{State: state}
}

func (reader *TestBMUModbusReader) Open() error {
	return nil
}

func (reader *TestBMUModbusReader) Close() error {
	return nil
}

func (reader *TestBMUModbusReader) GetState() (*BMUState, error) {
	state := reader.State
	return &state, nil
}
