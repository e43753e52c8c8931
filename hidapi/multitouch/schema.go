package multitouch

import (
	"fmt"

	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
)

// MaxSlots bounds the number of contact slots a device may use, matching the
// type B slot limit of the consumers downstream.
const MaxSlots = 16

type DeviceType uint8

const (
	DeviceUnknown DeviceType = iota
	DeviceTouchScreen
	DeviceTouchPad
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTouchScreen:
		return "touchscreen"
	case DeviceTouchPad:
		return "touchpad"
	}
	return "unknown"
}

// Input mode feature values, per the precision touchpad collection.
const (
	InputModeMouse       = 0
	InputModeTouchScreen = 2
	InputModeTouchPad    = 3
)

// Bounds is the value range of one contact field, taken from the first finger
// collection of the descriptor.
type Bounds struct {
	Minimum    int32
	Maximum    int32
	Resolution int32
}

// Schema is the decoded layout of a multi-touch digitizer: where every
// contact field lives inside the input report, the field capabilities and
// bounds, and the feature reports the device is negotiated through. It is
// immutable after discovery except for ApplyContactCountMax.
type Schema struct {
	Type     DeviceType
	ReportID uint8

	// InputSize is the input report payload size in bytes, report id byte
	// excluded.
	InputSize int

	Caps   Caps
	Bounds [fieldCount]Bounds

	// Locations holds the bit location of every field per contact slot of a
	// single report. Slot bounds and resolutions beyond the first contact
	// are not trusted; only locations are recorded there.
	Locations [][fieldCount]hiditem.Location

	ContactCountLoc hiditem.Location
	ContactMax      int

	// SkippedContacts counts finger collections beyond MaxSlots whose
	// fields were dropped during discovery.
	SkippedContacts int

	ContactMaxRID  uint8
	ContactMaxLoc  hiditem.Location
	ContactMaxSize int

	InputModeRID  uint8
	InputModeLoc  hiditem.Location
	InputModeSize int

	CertRID  uint8
	CertSize int
}

func (s *Schema) Supports(f Field) bool {
	return s.Caps.Has(f)
}

// ContactsPerReport is the number of finger collections one report carries.
func (s *Schema) ContactsPerReport() int {
	return len(s.Locations)
}

// ApplyContactCountMax overrides the descriptor's declared contact maximum
// with the value read from the contact-count-maximum feature report, which is
// the primary source per the precision touchpad collection spec. Values below
// one are ignored; values above MaxSlots clamp.
func (s *Schema) ApplyContactCountMax(payload []byte) int {
	count := int(s.ContactMaxLoc.Extract(payload))
	if count > MaxSlots {
		count = MaxSlots
	}
	if count < 1 {
		return s.ContactMax
	}
	if count != s.ContactMax {
		s.ContactMax = count
		s.Bounds[FieldSlot].Maximum = int32(count - 1)
	}
	return s.ContactMax
}

// CapContacts lowers the contact maximum, keeping the slot bounds in
// step. Values that would raise it are ignored.
func (s *Schema) CapContacts(n int) {
	if n < 1 || n >= s.ContactMax {
		return
	}
	s.ContactMax = n
	s.Bounds[FieldSlot].Maximum = int32(n - 1)
}

func (s *Schema) String() string {
	x := s.Bounds[FieldX]
	y := s.Bounds[FieldY]
	return fmt.Sprintf("%s, %d contacts, report %d (%dB), caps [%s], range [%d:%d]-[%d:%d]",
		s.Type, s.ContactMax, s.ReportID, s.InputSize, s.Caps,
		x.Minimum, y.Minimum, x.Maximum, y.Maximum)
}
