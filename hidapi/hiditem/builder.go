package hiditem

import (
	"math"
)

// Builder assembles a report descriptor from short items, encoding each
// payload in the fewest bytes that hold the value.
type Builder struct {
	buf []byte
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Bytes() []byte {
	return b.buf
}

func (b *Builder) UsagePage(page uint16) *Builder {
	return b.unsigned(TagUsagePage, uint32(page))
}

func (b *Builder) Usage(id uint16) *Builder {
	return b.unsigned(TagUsage, uint32(id))
}

func (b *Builder) UsageRange(lo, hi uint16) *Builder {
	b.unsigned(TagUsageMinimum, uint32(lo))
	return b.unsigned(TagUsageMaximum, uint32(hi))
}

func (b *Builder) LogicalMinimum(v int32) *Builder {
	return b.signed(TagLogicalMinimum, v)
}

func (b *Builder) LogicalMaximum(v int32) *Builder {
	return b.signed(TagLogicalMaximum, v)
}

func (b *Builder) PhysicalMinimum(v int32) *Builder {
	return b.signed(TagPhysicalMinimum, v)
}

func (b *Builder) PhysicalMaximum(v int32) *Builder {
	return b.signed(TagPhysicalMaximum, v)
}

func (b *Builder) UnitExponent(e int32) *Builder {
	return b.unsigned(TagUnitExponent, uint32(e)&0xf)
}

func (b *Builder) Unit(u uint32) *Builder {
	return b.unsigned(TagUnit, u)
}

func (b *Builder) ReportSize(bits int) *Builder {
	return b.unsigned(TagReportSize, uint32(bits))
}

func (b *Builder) ReportCount(n int) *Builder {
	return b.unsigned(TagReportCount, uint32(n))
}

func (b *Builder) ReportID(id uint8) *Builder {
	return b.unsigned(TagReportID, uint32(id))
}

func (b *Builder) Push() *Builder {
	return b.item(TagPush)
}

func (b *Builder) Pop() *Builder {
	return b.item(TagPop)
}

func (b *Builder) Collection(t CollectionType) *Builder {
	return b.unsigned(TagCollection, uint32(t))
}

func (b *Builder) EndCollection() *Builder {
	return b.item(TagEndCollection)
}

func (b *Builder) Input(flags Flags) *Builder {
	return b.unsigned(TagInput, uint32(flags))
}

func (b *Builder) Output(flags Flags) *Builder {
	return b.unsigned(TagOutput, uint32(flags))
}

func (b *Builder) Feature(flags Flags) *Builder {
	return b.unsigned(TagFeature, uint32(flags))
}

// Raw appends a short item with an explicit payload, bypassing the minimal
// encoding. Useful for width-sensitive values like a two byte 0xffff maximum.
func (b *Builder) Raw(tag Tag, data ...byte) *Builder {
	return b.append(tag, data)
}

func (b *Builder) item(tag Tag) *Builder {
	return b.append(tag, nil)
}

func (b *Builder) unsigned(tag Tag, v uint32) *Builder {
	switch {
	case v == 0:
		return b.append(tag, nil)
	case v <= math.MaxUint8:
		return b.append(tag, []byte{byte(v)})
	case v <= math.MaxUint16:
		return b.append(tag, []byte{byte(v), byte(v >> 8)})
	default:
		return b.append(tag, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
}

func (b *Builder) signed(tag Tag, v int32) *Builder {
	switch {
	case v == 0:
		return b.append(tag, nil)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return b.append(tag, []byte{byte(v)})
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return b.append(tag, []byte{byte(v), byte(v >> 8)})
	default:
		return b.append(tag, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
}

func (b *Builder) append(tag Tag, data []byte) *Builder {
	var code byte
	switch len(data) {
	case 0:
		code = 0
	case 1:
		code = 1
	case 2:
		code = 2
	case 4:
		code = 3
	default:
		panic("hiditem: short item payload must be 0, 1, 2 or 4 bytes")
	}
	b.buf = append(b.buf, byte(tag)|code)
	b.buf = append(b.buf, data...)
	return b
}
