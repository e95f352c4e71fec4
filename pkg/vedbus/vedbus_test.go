package vedbus

import (
	"errors"
	"math"
	"testing"

	"github.com/godbus/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCaller struct {
	values map[string]any
	errs   map[string]error
}

func (c fakeCaller) GetValue(service string, path string) (dbus.Variant, error) {
	if err, ok := c.errs[path]; ok {
		return dbus.Variant{}, err
	}
	v, ok := c.values[path]
	if !ok {
		return dbus.Variant{}, errors.New("org.freedesktop.DBus.Error.UnknownObject")
	}
	return toVariant(v), nil
}

type emitted struct {
	path dbus.ObjectPath
	name string
	body []interface{}
}

type fakeConn struct {
	exported map[dbus.ObjectPath][]string
	emitted  []emitted
	reply    dbus.RequestNameReply
	released bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		exported: map[dbus.ObjectPath][]string{},
		reply:    dbus.RequestNameReplyPrimaryOwner,
	}
}

func (c *fakeConn) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return c.reply, nil
}

func (c *fakeConn) ReleaseName(name string) (dbus.ReleaseNameReply, error) {
	c.released = true
	return dbus.ReleaseNameReplyReleased, nil
}

func (c *fakeConn) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	c.exported[path] = append(c.exported[path], iface)
	return nil
}

func (c *fakeConn) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	c.emitted = append(c.emitted, emitted{path: path, name: name, body: values})
	return nil
}

func TestBatteryServiceReader(t *testing.T) {

	require := require.New(t)

	caller := fakeCaller{values: map[string]any{
		PATH_DC_VOLTAGE:      13.31,
		PATH_DC_CURRENT:      -4.5,
		PATH_DC_TEMPERATURE:  []int32{}, // invalid
		PATH_SOC:             uint32(87),
		PATH_ALARM_IMBALANCE: int32(2),
		PATH_ALARM_HIGH_CELL: int32(0),
	}}
	reader := NewBatteryServiceReader(caller, BATTERY_SERVICE_PFX+"canopen_bms_node1")

	state, err := reader.GetState()
	require.NoError(err)
	require.InDelta(13.31, *state.Voltage, 1e-9)
	require.InDelta(-4.5, *state.Current, 1e-9)
	require.Nil(state.Temperature)
	require.InDelta(87, *state.StateOfCharge, 1e-9)
	require.EqualValues(2, state.CellImbalanceAlarm)
	require.Zero(state.HighCellAlarm)
	require.Zero(state.LowCellAlarm, "missing alarm path reads as ok")
}

func TestBatteryServiceReaderNonFiniteValues(t *testing.T) {

	require := require.New(t)

	caller := fakeCaller{values: map[string]any{
		PATH_DC_VOLTAGE:     math.NaN(),
		PATH_DC_CURRENT:     math.Inf(-1),
		PATH_DC_TEMPERATURE: 21.5,
		PATH_SOC:            math.Inf(1),
	}}
	reader := NewBatteryServiceReader(caller, BATTERY_SERVICE_PFX+"canopen_bms_node3")

	state, err := reader.GetState()
	require.NoError(err)
	require.Nil(state.Voltage)
	require.Nil(state.Current)
	require.Nil(state.StateOfCharge)
	require.InDelta(21.5, *state.Temperature, 1e-9)
}

func TestBatteryServiceReaderUnreachable(t *testing.T) {

	reader := NewBatteryServiceReader(fakeCaller{}, BATTERY_SERVICE_PFX+"canopen_bms_node2")

	state, err := reader.GetState()
	assert.Error(t, err)
	assert.Nil(t, state)
}

func TestServiceRegisterAndUpdate(t *testing.T) {

	require := require.New(t)

	conn := newFakeConn()
	svc := NewService(conn, BATTERY_SERVICE_PFX+"aggregator", zap.NewNop())
	require.NoError(svc.AddPath(PATH_DC_VOLTAGE, nil, "", false))
	require.NoError(svc.AddPath(PATH_CUSTOM_NAME, "BMS Aggregator", "", true))
	require.Error(svc.AddPath(PATH_DC_VOLTAGE, nil, "", false))

	require.NoError(svc.Register())
	require.Contains(conn.exported, dbus.ObjectPath("/"))
	require.ElementsMatch([]string{BUS_ITEM_IFACE, INTROSPECT_IFACE}, conn.exported[dbus.ObjectPath(PATH_DC_VOLTAGE)])
	require.Error(svc.AddPath(PATH_SOC, nil, "", false), "paths are fixed once registered")

	require.NoError(svc.Update(PATH_DC_VOLTAGE, 13.2, "13.20V"))
	require.Len(conn.emitted, 1)
	require.Equal(dbus.ObjectPath(PATH_DC_VOLTAGE), conn.emitted[0].path)
	require.Equal(BUS_ITEM_IFACE+".PropertiesChanged", conn.emitted[0].name)

	// unchanged values are not signalled
	require.NoError(svc.Update(PATH_DC_VOLTAGE, 13.2, "13.20V"))
	require.Len(conn.emitted, 1)

	require.Error(svc.Update("/Unknown", 1, ""))

	v, ok := svc.Value(PATH_DC_VOLTAGE)
	require.True(ok)
	require.Equal(13.2, v)

	require.NoError(svc.Close())
	require.True(conn.released)
}

func TestServiceNameTaken(t *testing.T) {

	conn := newFakeConn()
	conn.reply = dbus.RequestNameReplyExists
	svc := NewService(conn, BATTERY_SERVICE_PFX+"aggregator", zap.NewNop())

	assert.Error(t, svc.Register())
}

func TestBusItemMethods(t *testing.T) {

	assert := assert.New(t)

	svc := NewService(newFakeConn(), BATTERY_SERVICE_PFX+"aggregator", zap.NewNop())
	assert.NoError(svc.AddPath(PATH_SOC, nil, "", false))
	assert.NoError(svc.AddPath(PATH_CUSTOM_NAME, "BMS Aggregator", "", true))

	soc := &busItem{service: svc, path: PATH_SOC}
	v, dErr := soc.GetValue()
	assert.Nil(dErr)
	assert.Equal([]int32{}, v.Value(), "invalid value is an empty array")
	text, _ := soc.GetText()
	assert.Equal(invalidText, text)

	assert.NoError(svc.Update(PATH_SOC, 81.5, "82%"))
	v, _ = soc.GetValue()
	assert.Equal(81.5, v.Value())
	text, _ = soc.GetText()
	assert.Equal("82%", text)

	rc, _ := soc.SetValue(dbus.MakeVariant(10.0))
	assert.EqualValues(1, rc, "read only path")

	name := &busItem{service: svc, path: PATH_CUSTOM_NAME}
	rc, _ = name.SetValue(dbus.MakeVariant("Virtual"))
	assert.EqualValues(0, rc)
	text, _ = name.GetText()
	assert.Equal("Virtual", text)

	root := &rootObject{service: svc}
	values, _ := root.GetValue()
	assert.Equal(81.5, values["Soc"].Value())
	assert.Equal("Virtual", values["CustomName"].Value())
}

func TestToFloat(t *testing.T) {

	assert := assert.New(t)

	for _, v := range []any{float64(2), int32(2), uint32(2), int64(2), uint16(2), byte(2), dbus.MakeVariant(2.0)} {
		f, ok := toFloat(v)
		assert.True(ok, "%T", v)
		assert.Equal(2.0, f)
	}
	for _, v := range []any{nil, "2", []int32{}, math.NaN(), math.Inf(1), float32(math.Inf(-1)), dbus.MakeVariant(math.NaN())} {
		_, ok := toFloat(v)
		assert.False(ok, "%T", v)
	}
}
