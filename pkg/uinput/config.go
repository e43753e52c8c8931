package uinput

// Axis declares one absolute axis of a virtual device.
type Axis struct {
	Code    uint16
	Minimum int32
	Maximum int32
}

// Config describes the virtual device to create.
type Config struct {
	Name    string
	Bus     uint16
	Vendor  uint16
	Product uint16
	Version uint16

	Keys       []uint16
	Axes       []Axis
	Properties []uint16
}
