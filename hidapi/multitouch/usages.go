package multitouch

import (
	"strings"

	"github.com/neuroplastio/mtouch-agent/hidapi"
	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

// Field indexes the per-contact values a digitizer can report, in the order
// they are decoded and pushed.
//
// Three entries alias others on purpose: the slot number is written over the
// tip switch scratch value right before events go out (and the tip switch
// entry's event code is ABS_MT_SLOT), while touch major/minor overwrite the
// raw width/height once halved. X and Y usages appear twice in the table; a
// second occurrence inside a finger collection binds to tool x/y.
type Field int

const (
	FieldTipSwitch Field = iota
	FieldWidth
	FieldHeight
	FieldOrientation
	FieldX
	FieldY
	FieldContactID
	FieldPressure
	FieldInRange
	FieldConfidence
	FieldToolX
	FieldToolY
	fieldCount

	FieldSlot       = FieldTipSwitch
	FieldTouchMajor = FieldWidth
	FieldTouchMinor = FieldHeight
)

// codeNone marks fields that never leave the decoder.
const codeNone uint16 = 0xffff

type fieldInfo struct {
	name     string
	usage    hidapi.Usage
	code     uint16
	required bool
}

var fieldTable = [fieldCount]fieldInfo{
	FieldTipSwitch:   {"tip-switch", hidapi.UsageTipSwitch, uinput.ABS_MT_SLOT, true},
	FieldWidth:       {"width", hidapi.UsageWidth, uinput.ABS_MT_TOUCH_MAJOR, false},
	FieldHeight:      {"height", hidapi.UsageHeight, uinput.ABS_MT_TOUCH_MINOR, false},
	FieldOrientation: {"orientation", hidapi.UsageAzimuth, uinput.ABS_MT_ORIENTATION, false},
	FieldX:           {"x", hidapi.UsageX, uinput.ABS_MT_POSITION_X, true},
	FieldY:           {"y", hidapi.UsageY, uinput.ABS_MT_POSITION_Y, true},
	FieldContactID:   {"contact-id", hidapi.UsageContactID, uinput.ABS_MT_TRACKING_ID, true},
	FieldPressure:    {"pressure", hidapi.UsageTipPressure, uinput.ABS_MT_PRESSURE, false},
	FieldInRange:     {"in-range", hidapi.UsageInRange, uinput.ABS_MT_DISTANCE, false},
	FieldConfidence:  {"confidence", hidapi.UsageConfidence, codeNone, false},
	FieldToolX:       {"tool-x", hidapi.UsageX, uinput.ABS_MT_TOOL_X, false},
	FieldToolY:       {"tool-y", hidapi.UsageY, uinput.ABS_MT_TOOL_Y, false},
}

func (f Field) String() string {
	return fieldTable[f].name
}

func (f Field) Usage() hidapi.Usage {
	return fieldTable[f].usage
}

func (f Field) Required() bool {
	return fieldTable[f].required
}

// Code returns the output event code the field maps to. Fields like
// confidence are consumed internally and have none.
func (f Field) Code() (uint16, bool) {
	c := fieldTable[f].code
	return c, c != codeNone
}

// Caps is a capability bitmask over the contact fields.
type Caps uint16

func (c Caps) Has(f Field) bool {
	return c&(1<<f) != 0
}

// Fields lists the supported fields in decode order.
func (c Caps) Fields() []Field {
	var out []Field
	for f := Field(0); f < fieldCount; f++ {
		if c.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (c Caps) String() string {
	var names []string
	for _, f := range c.Fields() {
		names = append(names, f.String())
	}
	return strings.Join(names, ",")
}
