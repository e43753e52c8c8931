package simsvc

import (
	"github.com/neuroplastio/mtouch-agent/hidapi"
	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
)

// Report ids of the simulated digitizer.
const (
	reportInput      = 1
	reportContactMax = 2
	reportInputMode  = 3
)

// fingersPerReport keeps the simulated descriptor in hybrid mode: frames with
// more contacts than this span several reports, with the contact count only in
// the first one.
const fingersPerReport = 2

// BuildDescriptor assembles the report descriptor of a simulated two-finger
// hybrid digitizer: per finger a tip switch, contact id and 16-bit x/y,
// followed by scan time, contact count and a contact maximum feature.
// Touchpads additionally carry a confidence bit per finger and an input mode
// feature in a device configuration collection.
func BuildDescriptor(devType multitouch.DeviceType, contactMax int, width, height int32) []byte {
	app := uint16(0x04)
	if devType == multitouch.DeviceTouchPad {
		app = 0x05
	}
	b := hiditem.NewBuilder().
		UsagePage(hidapi.PageDigitizers).
		Usage(app).
		Collection(hiditem.CollectionApplication).
		ReportID(reportInput)
	for i := 0; i < fingersPerReport; i++ {
		b.Usage(0x22).Collection(hiditem.CollectionLogical)
		pad := 7
		b.Usage(0x42)
		if devType == multitouch.DeviceTouchPad {
			b.Usage(0x47)
			pad--
		}
		b.LogicalMinimum(0).LogicalMaximum(1).
			ReportSize(1).ReportCount(8 - pad).
			Input(hiditem.FlagVariable).
			ReportCount(pad).Input(hiditem.FlagConstant).
			Usage(0x51).LogicalMaximum(127).
			ReportSize(8).ReportCount(1).
			Input(hiditem.FlagVariable).
			UsagePage(hidapi.PageGenericDesktop).
			Usage(0x30).LogicalMaximum(width).
			ReportSize(16).ReportCount(1).
			Input(hiditem.FlagVariable).
			Usage(0x31).LogicalMaximum(height).
			ReportCount(1).Input(hiditem.FlagVariable).
			UsagePage(hidapi.PageDigitizers).
			EndCollection()
	}
	b.Usage(0x56).LogicalMinimum(0).
		Raw(hiditem.TagLogicalMaximum, 0xff, 0xff).
		ReportSize(16).ReportCount(1).
		Input(hiditem.FlagVariable).
		Usage(0x54).LogicalMinimum(0).LogicalMaximum(127).
		ReportSize(8).ReportCount(1).
		Input(hiditem.FlagVariable).
		ReportID(reportContactMax).Usage(0x55).
		LogicalMaximum(int32(contactMax)).
		ReportSize(8).ReportCount(1).
		Feature(hiditem.FlagVariable).
		EndCollection()
	if devType == multitouch.DeviceTouchPad {
		b.Usage(0x0e).Collection(hiditem.CollectionApplication).
			ReportID(reportInputMode).Usage(0x52).
			LogicalMinimum(0).LogicalMaximum(10).
			ReportSize(8).ReportCount(1).
			Feature(hiditem.FlagVariable).
			EndCollection()
	}
	return b.Bytes()
}
