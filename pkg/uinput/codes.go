package uinput

// Event types, codes and device properties from the kernel input ABI
// (linux/input-event-codes.h). Kernel names are kept verbatim so values can
// be cross-checked against the header.
const (
	EV_SYN uint16 = 0x00
	EV_KEY uint16 = 0x01
	EV_REL uint16 = 0x02
	EV_ABS uint16 = 0x03

	SYN_REPORT uint16 = 0x00

	BTN_TOOL_FINGER uint16 = 0x145
	BTN_TOUCH       uint16 = 0x14a

	ABS_X uint16 = 0x00
	ABS_Y uint16 = 0x01

	ABS_MT_SLOT        uint16 = 0x2f
	ABS_MT_TOUCH_MAJOR uint16 = 0x30
	ABS_MT_TOUCH_MINOR uint16 = 0x31
	ABS_MT_WIDTH_MAJOR uint16 = 0x32
	ABS_MT_WIDTH_MINOR uint16 = 0x33
	ABS_MT_ORIENTATION uint16 = 0x34
	ABS_MT_POSITION_X  uint16 = 0x35
	ABS_MT_POSITION_Y  uint16 = 0x36
	ABS_MT_TOOL_TYPE   uint16 = 0x37
	ABS_MT_BLOB_ID     uint16 = 0x38
	ABS_MT_TRACKING_ID uint16 = 0x39
	ABS_MT_PRESSURE    uint16 = 0x3a
	ABS_MT_DISTANCE    uint16 = 0x3b
	ABS_MT_TOOL_X      uint16 = 0x3c
	ABS_MT_TOOL_Y      uint16 = 0x3d

	ABS_MAX uint16 = 0x3f
	KEY_MAX uint16 = 0x2ff

	INPUT_PROP_POINTER uint16 = 0x00
	INPUT_PROP_DIRECT  uint16 = 0x01

	BUS_USB     uint16 = 0x03
	BUS_VIRTUAL uint16 = 0x06
)

var absNames = map[uint16]string{
	ABS_X:              "ABS_X",
	ABS_Y:              "ABS_Y",
	ABS_MT_SLOT:        "ABS_MT_SLOT",
	ABS_MT_TOUCH_MAJOR: "ABS_MT_TOUCH_MAJOR",
	ABS_MT_TOUCH_MINOR: "ABS_MT_TOUCH_MINOR",
	ABS_MT_WIDTH_MAJOR: "ABS_MT_WIDTH_MAJOR",
	ABS_MT_WIDTH_MINOR: "ABS_MT_WIDTH_MINOR",
	ABS_MT_ORIENTATION: "ABS_MT_ORIENTATION",
	ABS_MT_POSITION_X:  "ABS_MT_POSITION_X",
	ABS_MT_POSITION_Y:  "ABS_MT_POSITION_Y",
	ABS_MT_TOOL_TYPE:   "ABS_MT_TOOL_TYPE",
	ABS_MT_BLOB_ID:     "ABS_MT_BLOB_ID",
	ABS_MT_TRACKING_ID: "ABS_MT_TRACKING_ID",
	ABS_MT_PRESSURE:    "ABS_MT_PRESSURE",
	ABS_MT_DISTANCE:    "ABS_MT_DISTANCE",
	ABS_MT_TOOL_X:      "ABS_MT_TOOL_X",
	ABS_MT_TOOL_Y:      "ABS_MT_TOOL_Y",
}

func AbsCodeName(code uint16) string {
	if name, ok := absNames[code]; ok {
		return name
	}
	return "?"
}
