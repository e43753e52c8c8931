package touchsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

// ReportHandler receives interrupt transfer payloads. The report id byte
// is stripped by the transport before the handler runs.
type ReportHandler func(reportID uint8, payload []byte)

// Transport is one opened HID device. Feature payloads exclude the
// report id byte in both directions; the transport prepends and strips
// it as the underlying bus requires.
type Transport interface {
	ReportDescriptor() ([]byte, error)
	GetFeatureReport(id uint8, size int) ([]byte, error)
	SetFeatureReport(id uint8, payload []byte) error

	// Start consumes the interrupt stream until ctx is cancelled or the
	// device goes away.
	Start(ctx context.Context, h ReportHandler) error
	Close() error
}

// Backend enumerates HID devices and opens transports to them.
type Backend interface {
	Start(ctx context.Context, pub BackendPublisher) error
	Ready() <-chan struct{}
	Open(id string) (Transport, error)
}

// BackendDevice is one enumerated device. Type carries the multi-touch
// classification from the report descriptor; devices that are not
// multi-touch digitizers are reported with DeviceUnknown.
type BackendDevice struct {
	ID   string
	Name string
	Type multitouch.DeviceType
}

type BackendEvent struct {
	Connected    []BackendDevice
	Disconnected []string
}

// OutputDevice is the virtual input device attached devices write into.
type OutputDevice interface {
	WriteEvent(typ, code uint16, value int32) error
	Close() error
}

// OutputFactory creates the virtual output device for an attached
// digitizer. The linux package provides the uinput-backed one; tests
// inject recorders.
type OutputFactory func(cfg uinput.Config) (OutputDevice, error)

// Identity is the stable part of a device address: the USB vendor and
// product ids plus the interface number.
type Identity struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

func ParseIdentity(s string) (Identity, error) {
	var id Identity
	if _, err := fmt.Sscanf(s, "%04x:%04x:%d", &id.VendorID, &id.ProductID, &id.Interface); err != nil {
		return Identity{}, fmt.Errorf("invalid device id %q: %w", s, err)
	}
	return id, nil
}

func (i Identity) String() string {
	return fmt.Sprintf("%04x:%04x:%d", i.VendorID, i.ProductID, i.Interface)
}

// Address identifies a device within a backend, e.g. "linux/04f3:3148:1".
type Address struct {
	Backend string `yaml:"backend" json:"backend"`
	ID      string `yaml:"id" json:"id"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s", a.Backend, a.ID)
}

func (a Address) Identity() (Identity, error) {
	return ParseIdentity(a.ID)
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses "backend/vvvv:pppp:iface". Dots in the id part
// are accepted in place of colons for shell friendliness.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	id := strings.ReplaceAll(parts[1], ".", ":")
	if _, err := ParseIdentity(id); err != nil {
		return Address{}, err
	}
	return Address{Backend: parts[0], ID: id}, nil
}
