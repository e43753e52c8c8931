package hiditem

import (
	"math"

	"github.com/neuroplastio/mtouch-agent/hidapi"
	"github.com/neuroplastio/mtouch-agent/pkg/bits"
)

type Kind uint8

const (
	KindInput Kind = iota
	KindOutput
	KindFeature
	KindCollection
	KindEndCollection
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindFeature:
		return "feature"
	case KindCollection:
		return "collection"
	case KindEndCollection:
		return "end-collection"
	}
	return "unknown"
}

// KindMask selects which data item kinds a Scanner emits. Collections and
// end-collections are always emitted.
type KindMask uint8

const (
	MaskInput   KindMask = 1 << KindInput
	MaskOutput  KindMask = 1 << KindOutput
	MaskFeature KindMask = 1 << KindFeature
)

func (m KindMask) Has(k Kind) bool {
	return m&(1<<k) != 0
}

// Flags carries the data bits of an input, output or feature main item.
type Flags uint32

const (
	FlagConstant Flags = 1 << iota
	FlagVariable
	FlagRelative
	FlagWrap
	FlagNonLinear
	FlagNoPreferred
	FlagNullState
	FlagVolatile
	FlagBufferedBytes
)

// IsAbsoluteVariable reports whether the field is a plain absolute variable:
// not constant padding, not an array, not a relative axis.
func (f Flags) IsAbsoluteVariable() bool {
	return f&(FlagConstant|FlagVariable|FlagRelative) == FlagVariable
}

type CollectionType uint8

const (
	CollectionPhysical CollectionType = iota
	CollectionApplication
	CollectionLogical
	CollectionReport
	CollectionNamedArray
	CollectionUsageSwitch
	CollectionUsageModifier
)

// Location addresses a field inside a report payload: bit position, field
// size in bits, and the number of consecutive fields it spans.
type Location struct {
	Pos   uint32 `json:"pos" yaml:"pos"`
	Size  uint32 `json:"size" yaml:"size"`
	Count uint32 `json:"count" yaml:"count"`
}

func (l Location) Empty() bool {
	return l.Size == 0
}

func (l Location) Extract(buf []byte) uint32 {
	return bits.Extract(buf, l.Pos, l.Size)
}

func (l Location) ExtractSigned(buf []byte) int32 {
	return bits.ExtractSigned(buf, l.Pos, l.Size)
}

func (l Location) Put(buf []byte, value uint32) {
	bits.Put(buf, l.Pos, l.Size, value)
}

// Item is one flattened report descriptor entry: either a collection
// boundary or a single data field of a report.
type Item struct {
	Kind            Kind
	Usage           hidapi.Usage
	Flags           Flags
	Collection      CollectionType
	CollectionLevel int
	ReportID        uint8
	Location        Location
	LogicalMinimum  int32
	LogicalMaximum  int32
	PhysicalMinimum int32
	PhysicalMaximum int32
	UnitExponent    int32
	Unit            uint32
}

// HID unit codes with a defined linear or rotational extent.
const (
	unitCentimeter uint32 = 0x11
	unitRadian     uint32 = 0x12
	unitInch       uint32 = 0x13
	unitDegree     uint32 = 0x14
)

// Resolution derives device counts per millimeter (linear units) or per
// degree (rotational units) from the logical and physical extents. It returns
// 0 when the item carries no usable calibration.
func (it Item) Resolution() int32 {
	logical := int64(it.LogicalMaximum) - int64(it.LogicalMinimum)
	physical := int64(it.PhysicalMaximum) - int64(it.PhysicalMinimum)
	if logical <= 0 || physical <= 0 {
		return 0
	}
	num, den := int64(1), int64(1)
	switch it.Unit {
	case unitCentimeter:
		num = 10
	case unitInch:
		num, den = 254, 10
	case unitRadian:
		num, den = 573, 10
	case unitDegree:
	default:
		return 0
	}
	for e := it.UnitExponent; e > 0; e-- {
		num *= 10
	}
	for e := it.UnitExponent; e < 0; e++ {
		den *= 10
	}
	res := logical * den / (physical * num)
	if res <= 0 || res > math.MaxInt32 {
		return 0
	}
	return int32(res)
}
