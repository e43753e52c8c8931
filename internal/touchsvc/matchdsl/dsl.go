// Package matchdsl implements the device selector language used in the
// `match` field of touch device config entries. Selectors combine the
// terms `touchscreen`, `touchpad`, `vendor(0xHHHH)`, `product(0xHHHH)`,
// `interface(N)` and `name("substring")` with `&`, `|`, `!` and
// parentheses. An empty selector matches every device.
package matchdsl

import (
	"encoding/json"
	"strings"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
)

// Device carries the identity attributes a selector can test.
type Device struct {
	Type      multitouch.DeviceType
	VendorID  uint16
	ProductID uint16
	Interface int
	Name      string
}

func Parse(selector string) (*Selector, error) {
	trimmed := strings.TrimSpace(selector)
	if trimmed == "" {
		return &Selector{}, nil
	}
	result, err := selectorParser.ParseString("", trimmed)
	if err != nil {
		return nil, err
	}
	result.raw = trimmed
	return result, nil
}

// Match reports whether the device satisfies the selector. A nil or
// empty selector matches everything.
func (s *Selector) Match(dev Device) bool {
	if s == nil || len(s.Any) == 0 {
		return true
	}
	for _, c := range s.Any {
		if c.match(dev) {
			return true
		}
	}
	return false
}

func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.raw
}

func (s *Selector) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Selector) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := Parse(str)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

func (c *Conjunction) match(dev Device) bool {
	for _, p := range c.All {
		if !p.match(dev) {
			return false
		}
	}
	return true
}

func (p *Predicate) match(dev Device) bool {
	ok := p.Term.match(dev)
	if p.Negate {
		return !ok
	}
	return ok
}

func (t *Term) match(dev Device) bool {
	switch {
	case t.Group != nil:
		return t.Group.Match(dev)
	case t.TouchScreen:
		return dev.Type == multitouch.DeviceTouchScreen
	case t.TouchPad:
		return dev.Type == multitouch.DeviceTouchPad
	case t.Vendor != nil:
		return dev.VendorID == uint16(*t.Vendor)
	case t.Product != nil:
		return dev.ProductID == uint16(*t.Product)
	case t.Interface != nil:
		return dev.Interface == *t.Interface
	case t.Name != nil:
		return strings.Contains(strings.ToLower(dev.Name), strings.ToLower(*t.Name))
	}
	return false
}
