package vedbus

import (
	"fmt"
	"math"

	"github.com/godbus/dbus"
)

const (
	BUS_ITEM_IFACE      = "com.victronenergy.BusItem"
	INTROSPECT_IFACE    = "org.freedesktop.DBus.Introspectable"
	BATTERY_SERVICE_PFX = "com.victronenergy.battery."
)

// Conn is the subset of *dbus.Conn used by this package.
type Conn interface {
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// ItemCaller reads BusItem values of other services.
type ItemCaller interface {
	GetValue(service string, path string) (dbus.Variant, error)
}

type busCaller struct {
	conn *dbus.Conn
}

func NewItemCaller(conn *dbus.Conn) ItemCaller {
	return busCaller{conn: conn}
}

func (c busCaller) GetValue(service string, path string) (dbus.Variant, error) {
	var v dbus.Variant
	err := c.conn.Object(service, dbus.ObjectPath(path)).Call(BUS_ITEM_IFACE+".GetValue", 0).Store(&v)
	return v, err
}

func SystemBus() (*dbus.Conn, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("vedbus: connect system bus: %w", err)
	}
	return conn, nil
}

// invalid values are published as an empty array
func invalidVariant() dbus.Variant {
	return dbus.MakeVariant([]int32{})
}

func toVariant(value any) dbus.Variant {
	if value == nil {
		return invalidVariant()
	}
	return dbus.MakeVariant(value)
}

// toFloat converts a BusItem value to a number. Invalid values, non
// numeric types and non finite floats are reported as absent.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, finite(v)
	case float32:
		return float64(v), finite(float64(v))
	case int32:
		return float64(v), true
	case uint32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case int16:
		return float64(v), true
	case uint16:
		return float64(v), true
	case byte:
		return float64(v), true
	case int:
		return float64(v), true
	case dbus.Variant:
		return toFloat(v.Value())
	default:
		return 0, false
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
