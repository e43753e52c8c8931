package mtdev

import (
	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

// DeviceConfig maps a discovered schema to the virtual device mirroring it:
// one ABS_MT axis per supported field plus the legacy single touch axes,
// BTN_TOUCH, and the device property matching the digitizer type.
func DeviceConfig(name string, vendor, product uint16, schema *multitouch.Schema) uinput.Config {
	cfg := uinput.Config{
		Name:    name,
		Bus:     uinput.BUS_USB,
		Vendor:  vendor,
		Product: product,
		Version: 1,
		Keys:    []uint16{uinput.BTN_TOUCH},
	}
	if schema.Type == multitouch.DeviceTouchPad {
		cfg.Keys = append(cfg.Keys, uinput.BTN_TOOL_FINGER)
		cfg.Properties = []uint16{uinput.INPUT_PROP_POINTER}
	} else {
		cfg.Properties = []uint16{uinput.INPUT_PROP_DIRECT}
	}
	for _, f := range schema.Caps.Fields() {
		code, ok := f.Code()
		if !ok {
			continue
		}
		b := schema.Bounds[f]
		cfg.Axes = append(cfg.Axes, uinput.Axis{Code: code, Minimum: b.Minimum, Maximum: b.Maximum})
	}
	x := schema.Bounds[multitouch.FieldX]
	y := schema.Bounds[multitouch.FieldY]
	cfg.Axes = append(cfg.Axes,
		uinput.Axis{Code: uinput.ABS_X, Minimum: x.Minimum, Maximum: x.Maximum},
		uinput.Axis{Code: uinput.ABS_Y, Minimum: y.Minimum, Maximum: y.Maximum},
	)
	return cfg
}
