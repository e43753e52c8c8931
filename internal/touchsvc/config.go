package touchsvc

import (
	"encoding/json"
	"fmt"

	"github.com/neuroplastio/mtouch-agent/internal/touchsvc/matchdsl"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc/quirkdb"
)

// Config is the `touch` section of the agent config file.
type Config struct {
	Devices  []DeviceConfig `json:"devices,omitempty"`
	Defaults Defaults       `json:"defaults"`
}

// DeviceConfig is one match rule. Rules are evaluated in order; the
// first one whose selector matches decides what happens to the device.
type DeviceConfig struct {
	Match    *matchdsl.Selector `json:"match,omitempty"`
	Mode     Mode               `json:"mode,omitempty"`
	Quirks   quirkdb.Quirks     `json:"quirks,omitempty"`
	Disabled bool               `json:"disabled,omitempty"`
}

type Defaults struct {
	AttachAll bool `json:"attach_all"`
}

var defaultConfig = Config{
	Defaults: Defaults{AttachAll: true},
}

// Resolve returns the rule applying to the device and whether the
// device should be attached. Devices matching no rule follow
// defaults.attach_all.
func (c Config) Resolve(dev matchdsl.Device) (DeviceConfig, bool) {
	for _, rule := range c.Devices {
		if rule.Match.Match(dev) {
			return rule, !rule.Disabled
		}
	}
	return DeviceConfig{}, c.Defaults.AttachAll
}

// Quirks layers the rule's mode override and explicit quirks on top of
// the quirk database entry for the device.
func (dc DeviceConfig) quirks(base quirkdb.Quirks) quirkdb.Quirks {
	return base.Merge(dc.Quirks).Merge(dc.Mode.quirks())
}

// Mode forces the device class of everything a rule matches.
type Mode string

const (
	ModeAuto        Mode = ""
	ModeTouchScreen Mode = "touchscreen"
	ModeTouchPad    Mode = "touchpad"
)

func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Mode(s) {
	case ModeAuto, ModeTouchScreen, ModeTouchPad:
		*m = Mode(s)
		return nil
	}
	return fmt.Errorf("invalid mode %q", s)
}

func (m Mode) quirks() quirkdb.Quirks {
	switch m {
	case ModeTouchScreen:
		return quirkdb.Quirks{Flags: quirkdb.FlagForceTouchScreen}
	case ModeTouchPad:
		return quirkdb.Quirks{Flags: quirkdb.FlagForceTouchPad}
	}
	return quirkdb.Quirks{}
}
