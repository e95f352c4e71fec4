package main

import (
	"fmt"
	"time"

	"github.com/berfenger/bmsaggregator/internal/adapter/telemetry"
	"github.com/berfenger/bmsaggregator/internal/adapter/venus"
	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/port"
	"github.com/berfenger/bmsaggregator/pkg/bmu_modbus"
	"github.com/berfenger/bmsaggregator/pkg/vedbus"

	"go.uber.org/zap"
)

// unitReaders builds one reader per configured unit for the selected source.
func unitReaders(cfg *config.Config, logger *zap.Logger) ([]port.UnitReader, error) {
	var readers []port.UnitReader
	readTimeout := time.Duration(cfg.Monitor.ReadTimeoutMillis) * time.Millisecond

	switch cfg.Source {
	case config.SOURCE_MODBUS:
		for _, u := range cfg.Units {
			// per request timeout, the BMU actor bounds the whole read
			client, err := bmu_modbus.CreateBMUModbusReader(u.Host, u.Port, uint8(u.SlaveId), u.RegisterBase,
				readTimeout/2, logger.With(zap.Uint("unit", u.Id)), nil)
			if err != nil {
				return nil, fmt.Errorf("unit %d: %w", u.Id, err)
			}
			readers = append(readers, telemetry.NewModbusUnitReader(u.Id, client))
		}
		return readers, nil
	case config.SOURCE_VEDBUS:
		conn, err := vedbus.SystemBus()
		if err != nil {
			return nil, err
		}
		caller := vedbus.NewItemCaller(conn)
		for _, u := range cfg.Units {
			readers = append(readers, telemetry.NewVenusUnitReader(u.Id, vedbus.NewBatteryServiceReader(caller, u.Service)))
		}
		return readers, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// virtualBattery declares the published battery service on the system bus.
// The service name is claimed when the vedbus actor starts.
func virtualBattery(cfg *config.Config, logger *zap.Logger) (*venus.VirtualBattery, error) {
	conn, err := vedbus.SystemBus()
	if err != nil {
		return nil, err
	}
	service := vedbus.NewService(conn, cfg.VEDBus.ServiceName, logger)
	return venus.NewVirtualBattery(service, cfg)
}
