package touchsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
	"github.com/neuroplastio/mtouch-agent/internal/configsvc"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc/matchdsl"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc/quirkdb"
	"github.com/neuroplastio/mtouch-agent/pkg/bus"
)

// Service owns multi-touch digitizers: it matches enumerated devices
// against the config, attaches the matched ones (feature negotiation,
// virtual output device, decode pipeline) and keeps the address book.
type Service struct {
	log        *zap.Logger
	db         *badger.DB
	config     *configsvc.Service
	configPath string
	options    serviceOptions
	now        func() time.Time
	ready      chan struct{}
	recheck    chan struct{}
	ctx        context.Context

	backendBus *BackendBus
	deviceBus  *DeviceBus

	connected *xsync.MapOf[Address, BackendDevice]
	attached  *xsync.MapOf[Address, *attachment]

	mu  sync.Mutex
	cfg Config
}

type (
	BackendBus       = bus.Bus[string, BackendEvent]
	BackendPublisher = bus.Publisher[BackendEvent]

	DeviceEventType uint8
	DeviceBusKey    struct {
		Type DeviceEventType
		Addr Address
	}
	DeviceBus        = bus.Bus[DeviceBusKey, DeviceEvent]
	DeviceSubscriber = bus.Subscriber[DeviceBusKey, DeviceEvent]
	DeviceEvent      struct{}
)

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
	DeviceAttached
	DeviceDetached
)

type serviceOptions struct {
	backends       map[string]Backend
	backoffTimeout time.Duration
	outputFactory  OutputFactory
}

type Option func(*serviceOptions)

func WithBackend(name string, backend Backend) Option {
	return func(o *serviceOptions) {
		o.backends[name] = backend
	}
}

func WithBackoffTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.backoffTimeout = d
	}
}

func WithOutputFactory(f OutputFactory) Option {
	return func(o *serviceOptions) {
		o.outputFactory = f
	}
}

func New(log *zap.Logger, db *badger.DB, config *configsvc.Service, configPath string, now func() time.Time, opts ...Option) *Service {
	options := serviceOptions{
		backends:       map[string]Backend{},
		backoffTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		log:        log,
		db:         db,
		config:     config,
		configPath: configPath,
		options:    options,
		now:        now,
		ready:      make(chan struct{}),
		recheck:    make(chan struct{}, 1),
		backendBus: bus.NewBus[string, BackendEvent](log),
		deviceBus:  bus.NewBus[DeviceBusKey, DeviceEvent](log),
		connected:  xsync.NewMapOf[Address, BackendDevice](),
		attached:   xsync.NewMapOf[Address, *attachment](),
	}
}

// fileConfig is the layout of the touch config file.
type fileConfig struct {
	Touch Config `json:"touch"`
}

func (s *Service) Start(ctx context.Context) error {
	s.ctx = ctx
	select {
	case <-ctx.Done():
		return nil
	case <-s.config.Ready():
	}

	err := s.backendBus.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start backend bus: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.backendBus.Ready():
	}

	err = s.deviceBus.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start device bus: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.deviceBus.Ready():
	}

	cfg, err := configsvc.RegisterOrCreate(s.config, s.configPath, fileConfig{Touch: defaultConfig}, s.onConfigChange)
	if err != nil {
		return fmt.Errorf("failed to register config: %w", err)
	}
	s.mu.Lock()
	s.cfg = cfg.Touch
	s.mu.Unlock()

	s.consumeEvents(ctx)

	for backendID := range s.options.backends {
		go s.runBackend(ctx, backendID)
	}
	for _, backend := range s.options.backends {
		select {
		case <-ctx.Done():
			return nil
		case <-backend.Ready():
		}
	}
	close(s.ready)
	s.log.Info("Service started", zap.Int("quirkdb_revision", quirkdb.Revision()))
	<-ctx.Done()
	return nil
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Events returns a subscriber for device lifecycle events.
func (s *Service) Events(keys ...DeviceBusKey) DeviceSubscriber {
	return s.deviceBus.CreateSubscriber(keys...)
}

func (s *Service) consumeEvents(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch := s.backendBus.Subscribe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.recheck:
				s.evaluateAll(ctx)
			case msg := <-ch:
				s.handleBackendEvent(ctx, msg.Key, msg.Message)
			}
		}
	}()
}

func (s *Service) runBackend(ctx context.Context, backendID string) {
	backend := s.options.backends[backendID]
	for {
		err := backend.Start(ctx, s.backendBus.CreatePublisher(backendID))
		if err != nil {
			s.log.Error("Backend failed", zap.String("backend", backendID), zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
		t := time.NewTimer(s.options.backoffTimeout)
		// retry after backoff
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}
	}
}

func (s *Service) onConfigChange(cfg fileConfig, err error) {
	if err != nil {
		s.log.Error("Failed to reload config", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.cfg = cfg.Touch
	s.mu.Unlock()
	s.log.Info("Config reloaded", zap.Int("rules", len(cfg.Touch.Devices)))
	select {
	case s.recheck <- struct{}{}:
	default:
	}
}

func (s *Service) configSnapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) handleBackendEvent(ctx context.Context, backendID string, event BackendEvent) {
	for _, id := range event.Disconnected {
		s.onDeviceDisconnected(ctx, Address{Backend: backendID, ID: id})
	}
	for _, bdev := range event.Connected {
		s.onDeviceConnected(ctx, Address{Backend: backendID, ID: bdev.ID}, bdev)
	}
}

func (s *Service) onDeviceConnected(ctx context.Context, addr Address, bdev BackendDevice) {
	s.connected.Store(addr, bdev)
	s.log.Debug("Device connected",
		zap.String("device", addr.String()),
		zap.String("name", bdev.Name),
		zap.Stringer("type", bdev.Type))
	s.deviceBus.Publish(ctx, DeviceBusKey{Type: DeviceConnected, Addr: addr}, DeviceEvent{})
	s.evaluateDevice(ctx, addr, bdev)
}

func (s *Service) onDeviceDisconnected(ctx context.Context, addr Address) {
	if _, ok := s.connected.LoadAndDelete(addr); !ok {
		return
	}
	s.detachDevice(ctx, addr)
	s.log.Debug("Device disconnected", zap.String("device", addr.String()))
	s.deviceBus.Publish(ctx, DeviceBusKey{Type: DeviceDisconnected, Addr: addr}, DeviceEvent{})
}

func (s *Service) evaluateAll(ctx context.Context) {
	s.connected.Range(func(addr Address, bdev BackendDevice) bool {
		s.evaluateDevice(ctx, addr, bdev)
		return true
	})
}

// evaluateDevice reconciles one connected device with the config: it
// attaches, detaches or reattaches (when the applicable quirks changed)
// as needed. Runs on the event consumer goroutine only.
func (s *Service) evaluateDevice(ctx context.Context, addr Address, bdev BackendDevice) {
	identity, err := addr.Identity()
	if err != nil {
		s.log.Debug("Ignoring device with unparseable id", zap.String("device", addr.String()), zap.Error(err))
		return
	}
	base, _ := quirkdb.Lookup(identity.VendorID, identity.ProductID)
	rule, attach := s.configSnapshot().Resolve(matchdsl.Device{
		Type:      effectiveType(bdev.Type, base),
		VendorID:  identity.VendorID,
		ProductID: identity.ProductID,
		Interface: identity.Interface,
		Name:      bdev.Name,
	})
	quirks := rule.quirks(base)
	if attach {
		attach = effectiveType(bdev.Type, quirks) != multitouch.DeviceUnknown
	}
	if !attach {
		s.detachDevice(ctx, addr)
		return
	}
	if att, ok := s.attached.Load(addr); ok {
		if att.quirks == quirks {
			return
		}
		s.detachDevice(ctx, addr)
	}
	s.attachDevice(addr, bdev, quirks)
}

func (s *Service) attachDevice(addr Address, bdev BackendDevice, quirks quirkdb.Quirks) {
	devCtx, cancel := context.WithCancel(s.ctx)
	att := &attachment{cancel: cancel, done: make(chan struct{}), quirks: quirks}
	s.attached.Store(addr, att)
	go func() {
		defer close(att.done)
		// Remove the map entry unless a newer attachment already took the
		// address; computing on a missing key must not insert one.
		defer s.attached.Compute(addr, func(cur *attachment, loaded bool) (*attachment, bool) {
			return cur, !loaded || cur == att
		})
		err := s.runDevice(devCtx, addr, bdev, quirks)
		if err != nil && devCtx.Err() == nil {
			s.log.Error("Device failed", zap.String("device", addr.String()), zap.Error(err))
		}
	}()
}

func (s *Service) detachDevice(ctx context.Context, addr Address) {
	att, ok := s.attached.LoadAndDelete(addr)
	if !ok {
		return
	}
	att.cancel()
	select {
	case <-att.done:
	case <-ctx.Done():
	}
}

func effectiveType(t multitouch.DeviceType, q quirkdb.Quirks) multitouch.DeviceType {
	switch {
	case q.Has(quirkdb.FlagForceTouchPad):
		return multitouch.DeviceTouchPad
	case q.Has(quirkdb.FlagForceTouchScreen):
		return multitouch.DeviceTouchScreen
	}
	return t
}

var ErrDeviceNotFound = errors.New("device not found")

// DeviceRecord is the address book entry of a device, updated on every
// attach.
type DeviceRecord struct {
	Address     Address        `json:"address"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	ContactMax  int            `json:"contactMax"`
	Quirks      quirkdb.Quirks `json:"quirks"`
	FirstSeenAt time.Time      `json:"firstSeenAt"`
	LastSeenAt  time.Time      `json:"lastSeenAt"`
}

func (s *Service) deviceKey(addr Address) []byte {
	return []byte(fmt.Sprintf("touch/devices/%s", addr.ID))
}

func (s *Service) recordAttach(addr Address, name string, schema *multitouch.Schema, quirks quirkdb.Quirks) error {
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := s.deviceKey(addr)
		var rec DeviceRecord
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal device record: %w", err)
			}
		}
		rec.Address = addr
		rec.Name = name
		rec.Type = schema.Type.String()
		rec.ContactMax = schema.ContactMax
		rec.Quirks = quirks
		if rec.FirstSeenAt.IsZero() {
			rec.FirstSeenAt = now
		}
		rec.LastSeenAt = now
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal device record: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return fmt.Errorf("failed to store device record: %w", err)
	}
	return nil
}

// ListDevices returns every address book entry.
func (s *Service) ListDevices() ([]DeviceRecord, error) {
	var devices []DeviceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte("touch/devices/")
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			item := iter.Item()
			var rec DeviceRecord
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			devices = append(devices, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (s *Service) GetDevice(addr Address) (DeviceRecord, error) {
	var rec DeviceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.deviceKey(addr))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDeviceNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("failed to get device: %w", err)
	}
	return rec, nil
}

// ConnectedDevice is a live enumerated device and its attach state.
type ConnectedDevice struct {
	Address  Address
	Name     string
	Type     multitouch.DeviceType
	Attached bool
}

func (s *Service) ConnectedDevices() []ConnectedDevice {
	var devices []ConnectedDevice
	s.connected.Range(func(addr Address, bdev BackendDevice) bool {
		_, attached := s.attached.Load(addr)
		devices = append(devices, ConnectedDevice{
			Address:  addr,
			Name:     bdev.Name,
			Type:     bdev.Type,
			Attached: attached,
		})
		return true
	})
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Address.String() < devices[j].Address.String()
	})
	return devices
}

func (s *Service) IsAttached(addr Address) bool {
	_, ok := s.attached.Load(addr)
	return ok
}

// OpenTransport opens a raw transport to a device, bypassing the attach
// pipeline. Used by the describe command.
func (s *Service) OpenTransport(addr Address) (Transport, error) {
	backend, ok := s.options.backends[addr.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", addr.Backend)
	}
	tr, err := backend.Open(addr.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	return tr, nil
}
