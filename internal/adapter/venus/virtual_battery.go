package venus

import (
	"errors"
	"fmt"

	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/events"
	"github.com/berfenger/bmsaggregator/pkg/vedbus"

	"github.com/carlmjohnson/versioninfo"
)

// BusService is the subset of *vedbus.Service used by VirtualBattery.
type BusService interface {
	AddPath(path string, value any, text string, writeable bool) error
	Register() error
	Update(path string, value any, text string) error
	Close() error
}

// VirtualBattery is the aggregated battery published as a Venus OS battery
// service.
type VirtualBattery struct {
	service BusService
}

func NewVirtualBattery(service BusService, cfg *config.Config) (*VirtualBattery, error) {
	vb := &VirtualBattery{service: service}

	paths := []struct {
		path      string
		value     any
		writeable bool
	}{
		{vedbus.PATH_MGMT_PROCESSNAME, "bmsaggregator", false},
		{vedbus.PATH_MGMT_VERSION, versioninfo.Short(), false},
		{vedbus.PATH_MGMT_CONNECTION, fmt.Sprintf("%d units via %s", len(cfg.Units), cfg.Source), false},
		{vedbus.PATH_DEVICE_INSTANCE, int32(cfg.VEDBus.DeviceInstance), false},
		{vedbus.PATH_PRODUCT_ID, int32(0), false},
		{vedbus.PATH_PRODUCT_NAME, cfg.VEDBus.ProductName, false},
		{vedbus.PATH_FIRMWARE_VERSION, versioninfo.Short(), false},
		{vedbus.PATH_HARDWARE_VERSION, versioninfo.Short(), false},
		{vedbus.PATH_CONNECTED, int32(1), false},
		{vedbus.PATH_CUSTOM_NAME, cfg.VEDBus.ProductName, true},
	}
	for _, p := range paths {
		if err := service.AddPath(p.path, p.value, "", p.writeable); err != nil {
			return nil, err
		}
	}

	// measurements, limits and alarms start from the no data decision
	initial := domain.Decision{
		Assessment: domain.ImbalanceAssessment{
			ChargeCurrentLimit: cfg.Battery.NominalChargeCurrent,
		},
	}
	for _, item := range events.DecisionToBusItems(initial, cfg.Limits()) {
		if err := service.AddPath(item.Path, item.Value, item.Text, false); err != nil {
			return nil, err
		}
	}
	return vb, nil
}

func (vb *VirtualBattery) Register() error {
	return vb.service.Register()
}

func (vb *VirtualBattery) Close() error {
	return vb.service.Close()
}

// Apply publishes every path of a decision. All paths are attempted.
func (vb *VirtualBattery) Apply(items []domain.BusItemUpdate) error {
	var errs []error
	for _, item := range items {
		if err := vb.service.Update(item.Path, item.Value, item.Text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
