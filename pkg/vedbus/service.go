package vedbus

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"
	"go.uber.org/zap"
)

const invalidText = "---"

type item struct {
	value     any
	text      string
	writeable bool
}

// Service publishes a set of BusItem paths under one well-known name.
type Service struct {
	conn   Conn
	name   string
	logger *zap.Logger

	mu         sync.RWMutex
	items      map[string]*item
	registered bool
}

func NewService(conn Conn, name string, logger *zap.Logger) *Service {
	return &Service{
		conn:   conn,
		name:   name,
		logger: logger.With(zap.String("service", name)),
		items:  map[string]*item{},
	}
}

func (s *Service) Name() string {
	return s.name
}

// AddPath declares a path. Paths must be added before Register.
func (s *Service) AddPath(path string, value any, text string, writeable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered {
		return fmt.Errorf("vedbus: add %s after register", path)
	}
	if _, ok := s.items[path]; ok {
		return fmt.Errorf("vedbus: duplicate path %s", path)
	}
	if value == nil {
		text = invalidText
	}
	s.items[path] = &item{value: value, text: text, writeable: writeable}
	return nil
}

// Register exports every path and claims the service name.
func (s *Service) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.export("/", &rootObject{service: s}); err != nil {
		return err
	}
	for path := range s.items {
		if err := s.export(path, &busItem{service: s, path: path}); err != nil {
			return err
		}
	}

	reply, err := s.conn.RequestName(s.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("vedbus: request name %s: %w", s.name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("vedbus: name already taken: " + s.name)
	}
	s.registered = true
	s.logger.Info("service registered", zap.Int("paths", len(s.items)))
	return nil
}

func (s *Service) export(path string, obj interface{}) error {
	if err := s.conn.Export(obj, dbus.ObjectPath(path), BUS_ITEM_IFACE); err != nil {
		return fmt.Errorf("vedbus: export %s: %w", path, err)
	}
	if err := s.conn.Export(genIntrospectable(obj), dbus.ObjectPath(path), INTROSPECT_IFACE); err != nil {
		return fmt.Errorf("vedbus: export introspection %s: %w", path, err)
	}
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registered {
		return nil
	}
	s.registered = false
	_, err := s.conn.ReleaseName(s.name)
	return err
}

// Update sets the value of a path and emits PropertiesChanged when it
// changed. A nil value invalidates the path.
func (s *Service) Update(path string, value any, text string) error {
	s.mu.Lock()
	it, ok := s.items[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("vedbus: unknown path %s", path)
	}
	if value == nil {
		text = invalidText
	}
	changed := !reflect.DeepEqual(it.value, value) || it.text != text
	it.value = value
	it.text = text
	registered := s.registered
	s.mu.Unlock()

	if !changed || !registered {
		return nil
	}
	changes := map[string]dbus.Variant{
		"Value": toVariant(value),
		"Text":  dbus.MakeVariant(text),
	}
	if err := s.conn.Emit(dbus.ObjectPath(path), BUS_ITEM_IFACE+".PropertiesChanged", changes); err != nil {
		return fmt.Errorf("vedbus: emit %s: %w", path, err)
	}
	return nil
}

func (s *Service) Value(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[path]
	if !ok {
		return nil, false
	}
	return it.value, true
}

func (s *Service) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.items))
	for p := range s.items {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *Service) itemText(it *item) string {
	if it.value == nil {
		return invalidText
	}
	if it.text != "" {
		return it.text
	}
	return fmt.Sprintf("%v", it.value)
}

type busItem struct {
	service *Service
	path    string
}

func (b *busItem) GetValue() (dbus.Variant, *dbus.Error) {
	b.service.mu.RLock()
	defer b.service.mu.RUnlock()
	return toVariant(b.service.items[b.path].value), nil
}

func (b *busItem) GetText() (string, *dbus.Error) {
	b.service.mu.RLock()
	defer b.service.mu.RUnlock()
	return b.service.itemText(b.service.items[b.path]), nil
}

// SetValue returns 0 on success and 1 when the path is read only.
func (b *busItem) SetValue(value dbus.Variant) (int32, *dbus.Error) {
	b.service.mu.Lock()
	defer b.service.mu.Unlock()
	it := b.service.items[b.path]
	if !it.writeable {
		return 1, nil
	}
	it.value = value.Value()
	it.text = ""
	b.service.logger.Info("path written", zap.String("path", b.path), zap.Any("value", it.value))
	return 0, nil
}

type rootObject struct {
	service *Service
}

// GetValue on the root returns every path value.
func (r *rootObject) GetValue() (map[string]dbus.Variant, *dbus.Error) {
	r.service.mu.RLock()
	defer r.service.mu.RUnlock()
	values := make(map[string]dbus.Variant, len(r.service.items))
	for path, it := range r.service.items {
		values[path[1:]] = toVariant(it.value)
	}
	return values, nil
}

func (r *rootObject) GetText() (map[string]string, *dbus.Error) {
	r.service.mu.RLock()
	defer r.service.mu.RUnlock()
	texts := make(map[string]string, len(r.service.items))
	for path, it := range r.service.items {
		texts[path[1:]] = r.service.itemText(it)
	}
	return texts, nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    BUS_ITEM_IFACE,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}
