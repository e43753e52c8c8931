// Package simsvc simulates multi-touch digitizers over /dev/uhid. The kernel
// exposes a simulated device as a regular hidraw node, so the agent attaches
// to it exactly like to hardware, feature negotiation included.
package simsvc

import (
	"fmt"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
)

// Config is the simulator section of the config file.
type Config struct {
	Devices []DeviceConfig `json:"devices,omitempty"`
}

// DeviceConfig describes one simulated digitizer. Zero values fall back to a
// four-contact 4095x4095 touchscreen.
type DeviceConfig struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type,omitempty"`
	VendorID  uint16 `json:"vendorId,omitempty"`
	ProductID uint16 `json:"productId,omitempty"`
	Contacts  int    `json:"contacts,omitempty"`
	Width     int32  `json:"width,omitempty"`
	Height    int32  `json:"height,omitempty"`
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.Type == "" {
		c.Type = multitouch.DeviceTouchScreen.String()
	}
	if c.Name == "" {
		c.Name = "Simulated " + c.Type
	}
	if c.VendorID == 0 {
		c.VendorID = 0x1209
	}
	if c.ProductID == 0 {
		// "MT"
		c.ProductID = 0x4d54
	}
	if c.Contacts == 0 {
		c.Contacts = 4
	}
	if c.Width == 0 {
		c.Width = 4095
	}
	if c.Height == 0 {
		c.Height = 4095
	}
	return c
}

func (c DeviceConfig) deviceType() (multitouch.DeviceType, error) {
	switch c.Type {
	case "", multitouch.DeviceTouchScreen.String():
		return multitouch.DeviceTouchScreen, nil
	case multitouch.DeviceTouchPad.String():
		return multitouch.DeviceTouchPad, nil
	}
	return multitouch.DeviceUnknown, fmt.Errorf("invalid device type %q", c.Type)
}
