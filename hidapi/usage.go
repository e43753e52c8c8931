package hidapi

import (
	"fmt"
)

// Usage packs a HID usage page and usage ID into a single value, page in the
// high 16 bits.
type Usage uint32

func NewUsage(page, id uint16) Usage {
	return Usage(uint32(page)<<16 | uint32(id))
}

func (u Usage) Page() uint16 {
	return uint16(u >> 16)
}

func (u Usage) ID() uint16 {
	return uint16(u)
}

func (u Usage) String() string {
	if name, ok := usageNames[u]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x/0x%02x", u.Page(), u.ID())
}

// Usage pages.
const (
	PageGenericDesktop uint16 = 0x01
	PageDigitizers     uint16 = 0x0d
)

// Generic Desktop page.
const (
	UsagePointer Usage = 0x010001
	UsageMouse   Usage = 0x010002
	UsageX       Usage = 0x010030
	UsageY       Usage = 0x010031
)

// Digitizers page, per the HID usage tables. Azimuth doubles as contact
// orientation on multi-touch devices, tip pressure as contact pressure.
const (
	UsageTouchScreen   Usage = 0x0d0004
	UsageTouchPad      Usage = 0x0d0005
	UsageDeviceConfig  Usage = 0x0d000e
	UsageFinger        Usage = 0x0d0022
	UsageTipPressure   Usage = 0x0d0030
	UsageInRange       Usage = 0x0d0032
	UsageAzimuth       Usage = 0x0d003f
	UsageTipSwitch     Usage = 0x0d0042
	UsageConfidence    Usage = 0x0d0047
	UsageWidth         Usage = 0x0d0048
	UsageHeight        Usage = 0x0d0049
	UsageContactID     Usage = 0x0d0051
	UsageInputMode     Usage = 0x0d0052
	UsageContactCount  Usage = 0x0d0054
	UsageContactMax    Usage = 0x0d0055
	UsageScanTime      Usage = 0x0d0056
	UsageButtonSwitch  Usage = 0x0d0057
	UsageSurfaceSwitch Usage = 0x0d0058
)

// Microsoft vendor page. The certification blob is required reading on some
// Windows Precision Touchpad firmware before it will report touches.
const (
	UsageTHQACertificate Usage = 0xff0000c5
)

var usageNames = map[Usage]string{
	UsagePointer:         "GD/Pointer",
	UsageMouse:           "GD/Mouse",
	UsageX:               "GD/X",
	UsageY:               "GD/Y",
	UsageTouchScreen:     "Dig/TouchScreen",
	UsageTouchPad:        "Dig/TouchPad",
	UsageDeviceConfig:    "Dig/DeviceConfiguration",
	UsageFinger:          "Dig/Finger",
	UsageTipPressure:     "Dig/TipPressure",
	UsageInRange:         "Dig/InRange",
	UsageAzimuth:         "Dig/Azimuth",
	UsageTipSwitch:       "Dig/TipSwitch",
	UsageConfidence:      "Dig/Confidence",
	UsageWidth:           "Dig/Width",
	UsageHeight:          "Dig/Height",
	UsageContactID:       "Dig/ContactID",
	UsageInputMode:       "Dig/InputMode",
	UsageContactCount:    "Dig/ContactCount",
	UsageContactMax:      "Dig/ContactCountMaximum",
	UsageScanTime:        "Dig/ScanTime",
	UsageButtonSwitch:    "Dig/ButtonSwitch",
	UsageSurfaceSwitch:   "Dig/SurfaceSwitch",
	UsageTHQACertificate: "MS/THQACertificate",
}

