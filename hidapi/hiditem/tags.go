package hiditem

// Short item header byte: tag in the top four bits, item type in bits 2-3,
// payload size code in the low two bits. The constants below carry the top six
// bits; mask the size code off with Prefix before comparing.
const (
	TagInput         Tag = 0x80 // 1000 00xx + DataFlags
	TagOutput        Tag = 0x90 // 1001 00xx + DataFlags
	TagCollection    Tag = 0xA0 // 1010 00xx + CollectionType
	TagFeature       Tag = 0xB0 // 1011 00xx + DataFlags
	TagEndCollection Tag = 0xC0 // 1100 00xx

	TagUsagePage       Tag = 0x04 // 0000 01xx + uint
	TagLogicalMinimum  Tag = 0x14 // 0001 01xx + int
	TagLogicalMaximum  Tag = 0x24 // 0010 01xx + int
	TagPhysicalMinimum Tag = 0x34 // 0011 01xx + int
	TagPhysicalMaximum Tag = 0x44 // 0100 01xx + int
	TagUnitExponent    Tag = 0x54 // 0101 01xx + nibble
	TagUnit            Tag = 0x64 // 0110 01xx + uint
	TagReportSize      Tag = 0x74 // 0111 01xx + uint
	TagReportID        Tag = 0x84 // 1000 01xx + uint
	TagReportCount     Tag = 0x94 // 1001 01xx + uint
	TagPush            Tag = 0xA4 // 1010 01xx
	TagPop             Tag = 0xB4 // 1011 01xx

	TagUsage             Tag = 0x08 // 0000 10xx + usage
	TagUsageMinimum      Tag = 0x18 // 0001 10xx + usage
	TagUsageMaximum      Tag = 0x28 // 0010 10xx + usage
	TagDesignatorIndex   Tag = 0x38 // 0011 10xx + uint
	TagDesignatorMinimum Tag = 0x48 // 0100 10xx + uint
	TagDesignatorMaximum Tag = 0x58 // 0101 10xx + uint
	TagStringIndex       Tag = 0x78 // 0111 10xx + uint
	TagStringMinimum     Tag = 0x88 // 1000 10xx + uint
	TagStringMaximum     Tag = 0x98 // 1001 10xx + uint
	TagDelimiter         Tag = 0xA8 // 1010 10xx + 0/1
)

// longItemHeader marks the one defined long-item form; its payload length
// follows in the next byte.
const longItemHeader = 0xFE

type Tag uint8

func (t Tag) Prefix() Tag {
	return t & 0xFC
}

type TagType uint8

const (
	TagTypeMain TagType = iota
	TagTypeGlobal
	TagTypeLocal
	TagTypeReserved
)

func (t Tag) Type() TagType {
	return TagType(t >> 2 & 0x03)
}

// PayloadSize returns the number of payload bytes encoded in the size code
// (the code 3 means four bytes).
func (t Tag) PayloadSize() int {
	size := int(t & 0x03)
	if size == 3 {
		return 4
	}
	return size
}
