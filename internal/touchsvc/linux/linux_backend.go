//go:build linux

// Package linux backs the touch service with the kernel's hidraw interface.
// Devices are enumerated through hidapi, classified from their report
// descriptors, and claimed by detaching the kernel input devices spawned for
// them through udev.
package linux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc"
)

// hidapi caps report descriptors at 4096 bytes; interrupt reports fit well
// within the same bound.
const reportBufSize = 4096

var defaultBackendOptions = backendOptions{
	pollInterval: 1 * time.Second,
}

type backendOptions struct {
	pollInterval time.Duration
}

type Option func(*backendOptions)

func WithPollInterval(d time.Duration) Option {
	return func(o *backendOptions) {
		o.pollInterval = d
	}
}

// Backend implements touchsvc.Backend on top of hidraw.
type Backend struct {
	log     *zap.Logger
	options backendOptions

	devices *xsync.MapOf[touchsvc.Identity, knownDevice]

	udev  *udev.Udev
	ready chan struct{}

	publisher touchsvc.BackendPublisher
}

type knownDevice struct {
	info    hid.DeviceInfo
	devType multitouch.DeviceType
}

func NewBackend(log *zap.Logger, opts ...Option) *Backend {
	options := defaultBackendOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Backend{
		log:     log,
		options: options,
		devices: xsync.NewMapOf[touchsvc.Identity, knownDevice](),
		ready:   make(chan struct{}),
	}
}

func (b *Backend) Ready() <-chan struct{} {
	return b.ready
}

func (b *Backend) Start(ctx context.Context, publisher touchsvc.BackendPublisher) error {
	if err := hid.Init(); err != nil {
		return fmt.Errorf("failed to initialize hidapi: %w", err)
	}
	b.udev = &udev.Udev{}
	b.publisher = publisher

	b.log.Info("Starting Linux hidraw backend")
	if err := b.refreshDevices(ctx); err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	close(b.ready)
	b.log.Info("Linux hidraw backend started")

	pollTicker := time.NewTicker(b.options.pollInterval)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			if err := b.refreshDevices(ctx); err != nil {
				b.log.Error("Failed to refresh devices", zap.Error(err))
			}
		}
	}
}

func (b *Backend) refreshDevices(ctx context.Context) error {
	current, err := b.enumerate()
	if err != nil {
		return err
	}
	var disconnected []string
	var connected []touchsvc.BackendDevice
	b.devices.Range(func(identity touchsvc.Identity, known knownDevice) bool {
		if _, ok := current[identity]; !ok {
			disconnected = append(disconnected, identity.String())
			b.devices.Delete(identity)
			return true
		}
		delete(current, identity)
		return true
	})
	for identity, info := range current {
		known := knownDevice{info: info, devType: b.classify(info)}
		b.devices.Store(identity, known)
		connected = append(connected, touchsvc.BackendDevice{
			ID:   identity.String(),
			Name: generateName(info),
			Type: known.devType,
		})
	}
	if len(connected) > 0 || len(disconnected) > 0 {
		b.publisher(ctx, touchsvc.BackendEvent{
			Connected:    connected,
			Disconnected: disconnected,
		})
	}
	return nil
}

func (b *Backend) enumerate() (map[touchsvc.Identity]hid.DeviceInfo, error) {
	devices := make(map[touchsvc.Identity]hid.DeviceInfo)
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		identity := touchsvc.Identity{
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Interface: info.InterfaceNbr,
		}
		devices[identity] = *info
		return nil
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// classify opens the device briefly to read its descriptor. Devices that
// refuse to open (permissions, disconnect races) come back unknown; a
// reconnect retries.
func (b *Backend) classify(info hid.DeviceInfo) multitouch.DeviceType {
	dev, err := hid.OpenPath(info.Path)
	if err != nil {
		b.log.Debug("Failed to open device for classification", zap.String("path", info.Path), zap.Error(err))
		return multitouch.DeviceUnknown
	}
	defer dev.Close()
	buf := make([]byte, reportBufSize)
	n, err := dev.GetReportDescriptor(buf)
	if err != nil {
		b.log.Debug("Failed to read report descriptor", zap.String("path", info.Path), zap.Error(err))
		return multitouch.DeviceUnknown
	}
	return multitouch.Classify(buf[:n])
}

func generateName(info hid.DeviceInfo) string {
	var parts []string
	if info.MfrStr != "" {
		parts = append(parts, info.MfrStr)
	}
	if info.ProductStr != "" {
		parts = append(parts, info.ProductStr)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%04x:%04x", info.VendorID, info.ProductID)
	}
	return strings.Join(parts, " ")
}

func (b *Backend) Open(id string) (touchsvc.Transport, error) {
	identity, err := touchsvc.ParseIdentity(id)
	if err != nil {
		return nil, err
	}
	known, ok := b.devices.Load(identity)
	if !ok {
		return nil, fmt.Errorf("device not found: %s", id)
	}
	dev, err := hid.OpenPath(known.info.Path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, reportBufSize)
	n, err := dev.GetReportDescriptor(buf)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to read report descriptor: %w", err)
	}
	desc := make([]byte, n)
	copy(desc, buf[:n])
	return &device{
		b:        b,
		log:      b.log.With(zap.String("path", known.info.Path)),
		info:     known.info,
		dev:      dev,
		desc:     desc,
		numbered: hiditem.HasReportIDs(desc),
	}, nil
}

type device struct {
	b    *Backend
	log  *zap.Logger
	info hid.DeviceInfo
	dev  *hid.Device

	desc     []byte
	numbered bool
}

func (d *device) ReportDescriptor() ([]byte, error) {
	return d.desc, nil
}

func (d *device) GetFeatureReport(id uint8, size int) ([]byte, error) {
	buf := make([]byte, size+1)
	buf[0] = id
	n, err := d.dev.GetFeatureReport(buf)
	if err != nil {
		return nil, err
	}
	if id != 0 && n > 0 {
		return buf[1:n], nil
	}
	return buf[:n], nil
}

func (d *device) SetFeatureReport(id uint8, payload []byte) error {
	buf := make([]byte, len(payload)+1)
	buf[0] = id
	copy(buf[1:], payload)
	_, err := d.dev.SendFeatureReport(buf)
	return err
}

func (d *device) Start(ctx context.Context, h touchsvc.ReportHandler) error {
	release, err := d.claim()
	if err != nil {
		return fmt.Errorf("failed to claim device: %w", err)
	}
	defer release()

	// Read unblocks with an error once Close is called after Start returns.
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, reportBufSize)
		for {
			n, err := d.dev.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			if ctx.Err() != nil {
				return
			}
			if n == 0 {
				continue
			}
			if d.numbered {
				h(buf[0], buf[1:n])
			} else {
				h(0, buf[:n])
			}
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-readErr:
		return fmt.Errorf("read failed: %w", err)
	}
}

// claim detaches the kernel input devices spawned for this digitizer so the
// desktop stops receiving its events while the pipeline owns it. The hid
// driver itself stays bound; unbinding it would tear down the hidraw node
// this transport reads from.
func (d *device) claim() (func(), error) {
	hidraw := d.b.udev.NewDeviceFromSubsystemSysname("hidraw", filepath.Base(d.info.Path))
	if hidraw == nil {
		return nil, fmt.Errorf("hidraw device %s not found in udev", d.info.Path)
	}
	parent := hidraw.Parent()
	e := d.b.udev.NewEnumerate()
	e.AddMatchSubsystem("input")
	e.AddMatchParent(parent)
	inputs, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate input devices: %w", err)
	}
	var detached []string
	for _, input := range inputs {
		syspath := input.Syspath()
		if !strings.HasPrefix(filepath.Base(syspath), "event") {
			continue
		}
		if err := os.WriteFile(syspath+"/uevent", []byte("remove"), 0644); err != nil {
			d.log.Error("Failed to detach kernel input", zap.String("syspath", syspath), zap.Error(err))
			continue
		}
		detached = append(detached, syspath)
	}
	d.log.Debug("Claimed device", zap.Int("detached", len(detached)))
	return func() {
		for _, syspath := range detached {
			if err := os.WriteFile(syspath+"/uevent", []byte("add"), 0644); err != nil {
				d.log.Error("Failed to reattach kernel input", zap.String("syspath", syspath), zap.Error(err))
			}
		}
	}, nil
}

func (d *device) Close() error {
	return d.dev.Close()
}
