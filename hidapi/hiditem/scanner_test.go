package hiditem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroplastio/mtouch-agent/hidapi"
)

func scanAll(desc []byte, mask KindMask) []Item {
	s := NewScanner(desc, mask)
	var items []Item
	for {
		it, ok := s.Next()
		if !ok {
			return items
		}
		items = append(items, it)
	}
}

type flatItem struct {
	kind  Kind
	usage hidapi.Usage
	level int
	pos   uint32
	size  uint32
	count uint32
}

func flatten(items []Item) []flatItem {
	flat := make([]flatItem, 0, len(items))
	for _, it := range items {
		flat = append(flat, flatItem{
			kind:  it.Kind,
			usage: it.Usage,
			level: it.CollectionLevel,
			pos:   it.Location.Pos,
			size:  it.Location.Size,
			count: it.Location.Count,
		})
	}
	return flat
}

func TestScannerMouse(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x01).Usage(0x02).Collection(CollectionApplication).
		Usage(0x01).Collection(CollectionPhysical).
		UsagePage(0x09).UsageRange(1, 3).
		LogicalMinimum(0).LogicalMaximum(1).
		ReportSize(1).ReportCount(3).
		Input(FlagVariable).
		ReportSize(1).ReportCount(5).
		Input(FlagConstant).
		UsagePage(0x01).Usage(0x30).Usage(0x31).
		LogicalMinimum(-127).LogicalMaximum(127).
		ReportSize(8).ReportCount(2).
		Input(FlagVariable | FlagRelative).
		EndCollection().
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskInput)
	want := []flatItem{
		{KindCollection, 0x010002, 1, 0, 0, 0},
		{KindCollection, 0x010001, 2, 0, 0, 0},
		{KindInput, 0x090001, 2, 0, 1, 1},
		{KindInput, 0x090002, 2, 1, 1, 1},
		{KindInput, 0x090003, 2, 2, 1, 1},
		{KindInput, 0, 2, 3, 1, 5},
		{KindInput, 0x010030, 2, 8, 8, 1},
		{KindInput, 0x010031, 2, 16, 8, 1},
		{KindEndCollection, 0, 1, 0, 0, 0},
		{KindEndCollection, 0, 0, 0, 0, 0},
	}
	assert.Equal(t, want, flatten(items))

	require.Len(t, items, 10)
	assert.True(t, items[2].Flags.IsAbsoluteVariable())
	assert.False(t, items[5].Flags.IsAbsoluteVariable())
	assert.False(t, items[6].Flags.IsAbsoluteVariable())
	assert.Equal(t, int32(-127), items[6].LogicalMinimum)
	assert.Equal(t, int32(127), items[6].LogicalMaximum)
}

func TestScannerReportIDPositions(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x0d).Usage(0x04).Collection(CollectionApplication).
		ReportID(1).
		Usage(0x42).ReportSize(8).ReportCount(1).Input(FlagVariable).
		Usage(0x55).Feature(FlagVariable).
		ReportID(2).
		Usage(0x56).ReportSize(16).ReportCount(1).Input(FlagVariable).
		Usage(0x52).ReportSize(8).ReportCount(1).Feature(FlagVariable).
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskInput|MaskFeature)
	require.Len(t, items, 6)

	// Positions restart per kind and report id.
	assert.Equal(t, uint8(1), items[1].ReportID)
	assert.Equal(t, uint32(0), items[1].Location.Pos)
	assert.Equal(t, KindFeature, items[2].Kind)
	assert.Equal(t, uint32(0), items[2].Location.Pos)
	assert.Equal(t, uint8(2), items[3].ReportID)
	assert.Equal(t, uint32(0), items[3].Location.Pos)
	assert.Equal(t, uint32(0), items[4].Location.Pos)
}

func TestScannerKindFilterStillAdvances(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x0d).Usage(0x04).Collection(CollectionApplication).
		Usage(0x42).ReportSize(4).ReportCount(1).Output(FlagVariable).
		Usage(0x47).ReportSize(4).ReportCount(1).Output(FlagVariable).
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskInput)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotEqual(t, KindOutput, it.Kind)
	}

	items = scanAll(desc, MaskOutput)
	require.Len(t, items, 4)
	assert.Equal(t, uint32(0), items[1].Location.Pos)
	assert.Equal(t, uint32(4), items[2].Location.Pos)
}

func TestScannerExtendedUsage(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x0d).Usage(0x04).Collection(CollectionApplication).
		Raw(TagUsage, 0xc5, 0x00, 0x00, 0xff).
		ReportSize(8).ReportCount(1).Feature(FlagVariable).
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskFeature)
	require.Len(t, items, 3)
	assert.Equal(t, hidapi.UsageTHQACertificate, items[1].Usage)
}

func TestScannerUnsignedLogicalMaximum(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x0d).Usage(0x04).Collection(CollectionApplication).
		Usage(0x56).
		LogicalMinimum(0).Raw(TagLogicalMaximum, 0xff, 0xff).
		ReportSize(16).ReportCount(1).Input(FlagVariable).
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskInput)
	require.Len(t, items, 3)
	assert.Equal(t, int32(65535), items[1].LogicalMaximum)
}

func TestScannerPushPop(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x01).Usage(0x02).Collection(CollectionApplication).
		LogicalMinimum(0).LogicalMaximum(100).
		Push().
		LogicalMinimum(-5).LogicalMaximum(5).
		Usage(0x30).ReportSize(8).ReportCount(1).Input(FlagVariable).
		Pop().
		Usage(0x31).ReportSize(8).ReportCount(1).Input(FlagVariable).
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskInput)
	require.Len(t, items, 4)
	assert.Equal(t, int32(-5), items[1].LogicalMinimum)
	assert.Equal(t, int32(5), items[1].LogicalMaximum)
	assert.Equal(t, int32(0), items[2].LogicalMinimum)
	assert.Equal(t, int32(100), items[2].LogicalMaximum)
}

func TestScannerResolution(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x01).Usage(0x02).Collection(CollectionApplication).
		Usage(0x30).
		LogicalMinimum(0).LogicalMaximum(4095).
		PhysicalMinimum(0).PhysicalMaximum(1034).
		UnitExponent(-2).Unit(0x11).
		ReportSize(16).ReportCount(1).Input(FlagVariable).
		EndCollection().
		Bytes()

	items := scanAll(desc, MaskInput)
	require.Len(t, items, 3)
	// 10.34 cm span: 4095 counts over 103.4 mm.
	assert.Equal(t, int32(39), items[1].Resolution())
	assert.Equal(t, int32(-2), items[1].UnitExponent)
}

func TestScannerTruncated(t *testing.T) {
	desc := NewBuilder().
		UsagePage(0x01).Usage(0x02).Collection(CollectionApplication).
		Bytes()
	// Chop into the collection item.
	items := scanAll(desc[:len(desc)-1], MaskInput)
	assert.Empty(t, items)

	// Header promising more payload than present.
	items = scanAll([]byte{0x05}, MaskInput)
	assert.Empty(t, items)
}

func TestHasReportIDs(t *testing.T) {
	numbered := NewBuilder().
		UsagePage(0x0d).Usage(0x04).Collection(CollectionApplication).
		ReportID(1).
		Usage(0x42).ReportSize(8).ReportCount(1).Input(FlagVariable).
		EndCollection().
		Bytes()
	assert.True(t, HasReportIDs(numbered))

	unnumbered := NewBuilder().
		UsagePage(0x01).Usage(0x02).Collection(CollectionApplication).
		Usage(0x30).LogicalMinimum(-127).LogicalMaximum(127).
		ReportSize(8).ReportCount(1).Input(FlagVariable | FlagRelative).
		EndCollection().
		Bytes()
	assert.False(t, HasReportIDs(unnumbered))
	assert.False(t, HasReportIDs(nil))
}
