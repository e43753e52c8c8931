package multitouch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
)

// testDesc parameterizes a synthetic digitizer descriptor: input report 1
// with one logical collection per finger (tip switch, optional bits, contact
// id, 12-bit x/y) followed by scan time and contact count, plus a contact
// maximum feature on report 2. Options bolt on the shapes seen on real
// panels.
type testDesc struct {
	touchpad       bool
	fingers        int
	contactMax     int32
	confidence     bool
	inRange        bool
	tool           bool
	geometry       bool
	pressure       bool
	omitContactID  bool
	omitScanTime   bool
	omitContactMax bool
	config         bool
	cert           bool
}

func (d testDesc) build() []byte {
	app := uint16(0x04)
	if d.touchpad {
		app = 0x05
	}
	b := hiditem.NewBuilder().
		UsagePage(0x0d).
		Usage(app).
		Collection(hiditem.CollectionApplication).
		ReportID(1)
	for i := 0; i < d.fingers; i++ {
		b.Usage(0x22).Collection(hiditem.CollectionLogical)
		pad := 7
		b.Usage(0x42)
		if d.confidence {
			b.Usage(0x47)
			pad--
		}
		if d.inRange {
			b.Usage(0x32)
			pad--
		}
		b.LogicalMinimum(0).LogicalMaximum(1).
			ReportSize(1).ReportCount(8 - pad).
			Input(hiditem.FlagVariable)
		b.ReportCount(pad).Input(hiditem.FlagConstant)
		if d.omitContactID {
			b.ReportSize(8).ReportCount(1).Input(hiditem.FlagConstant)
		} else {
			b.Usage(0x51).LogicalMaximum(127).
				ReportSize(8).ReportCount(1).
				Input(hiditem.FlagVariable)
		}
		b.UsagePage(0x01).Usage(0x30).Usage(0x31).
			LogicalMaximum(4095).
			ReportSize(16).ReportCount(2).
			Input(hiditem.FlagVariable)
		if d.tool {
			b.Usage(0x30).Usage(0x31).Input(hiditem.FlagVariable)
		}
		b.UsagePage(0x0d)
		if d.geometry {
			b.Usage(0x48).Usage(0x49).LogicalMaximum(255).
				ReportSize(8).ReportCount(2).
				Input(hiditem.FlagVariable)
		}
		if d.pressure {
			b.Usage(0x30).LogicalMaximum(255).
				ReportSize(8).ReportCount(1).
				Input(hiditem.FlagVariable)
		}
		b.EndCollection()
	}
	if !d.omitScanTime {
		b.Usage(0x56).LogicalMinimum(0).
			Raw(hiditem.TagLogicalMaximum, 0xff, 0xff).
			ReportSize(16).ReportCount(1).
			Input(hiditem.FlagVariable)
	}
	b.Usage(0x54).LogicalMinimum(0).LogicalMaximum(127).
		ReportSize(8).ReportCount(1).
		Input(hiditem.FlagVariable)
	if !d.omitContactMax {
		b.ReportID(2).Usage(0x55).
			LogicalMaximum(d.contactMax).
			ReportSize(8).ReportCount(1).
			Feature(hiditem.FlagVariable)
	}
	if d.cert {
		b.ReportID(3).UsagePage(0xff00).Usage(0xc5).
			LogicalMaximum(255).
			ReportSize(8).ReportCount(60).
			Feature(hiditem.FlagVariable | hiditem.FlagBufferedBytes)
		b.UsagePage(0x0d)
	}
	b.EndCollection()
	if d.config {
		b.Usage(0x0e).Collection(hiditem.CollectionApplication).
			ReportID(4).Usage(0x52).
			LogicalMinimum(0).LogicalMaximum(10).
			ReportSize(8).ReportCount(1).
			Feature(hiditem.FlagVariable).
			EndCollection()
	}
	return b.Bytes()
}

func discoverTest(t *testing.T, d testDesc) *Schema {
	t.Helper()
	schema, err := Discover(d.build())
	require.NoError(t, err)
	return schema
}

func TestDiscoverTouchScreen(t *testing.T) {
	schema := discoverTest(t, testDesc{fingers: 2, contactMax: 10})

	assert.Equal(t, DeviceTouchScreen, schema.Type)
	assert.Equal(t, uint8(1), schema.ReportID)
	assert.Equal(t, 15, schema.InputSize)
	assert.Equal(t, 2, schema.ContactsPerReport())
	assert.Equal(t, 10, schema.ContactMax)
	assert.Equal(t, 0, schema.SkippedContacts)

	for _, f := range []Field{FieldTipSwitch, FieldContactID, FieldX, FieldY} {
		assert.True(t, schema.Supports(f), f.String())
	}
	for _, f := range []Field{FieldConfidence, FieldWidth, FieldHeight, FieldOrientation, FieldPressure, FieldInRange, FieldToolX, FieldToolY} {
		assert.False(t, schema.Supports(f), f.String())
	}

	assert.Equal(t, hiditem.Location{Pos: 0, Size: 1, Count: 1}, schema.Locations[0][FieldTipSwitch])
	assert.Equal(t, hiditem.Location{Pos: 8, Size: 8, Count: 1}, schema.Locations[0][FieldContactID])
	assert.Equal(t, hiditem.Location{Pos: 16, Size: 16, Count: 1}, schema.Locations[0][FieldX])
	assert.Equal(t, hiditem.Location{Pos: 32, Size: 16, Count: 1}, schema.Locations[0][FieldY])
	assert.Equal(t, hiditem.Location{Pos: 48, Size: 1, Count: 1}, schema.Locations[1][FieldTipSwitch])
	assert.Equal(t, hiditem.Location{Pos: 56, Size: 8, Count: 1}, schema.Locations[1][FieldContactID])
	assert.Equal(t, hiditem.Location{Pos: 64, Size: 16, Count: 1}, schema.Locations[1][FieldX])
	assert.Equal(t, hiditem.Location{Pos: 112, Size: 8, Count: 1}, schema.ContactCountLoc)

	assert.Equal(t, Bounds{Minimum: 0, Maximum: 4095}, schema.Bounds[FieldX])
	assert.Equal(t, Bounds{Minimum: 0, Maximum: 9}, schema.Bounds[FieldSlot])

	assert.Equal(t, uint8(2), schema.ContactMaxRID)
	assert.Equal(t, hiditem.Location{Pos: 0, Size: 8, Count: 1}, schema.ContactMaxLoc)
	assert.Equal(t, 1, schema.ContactMaxSize)
	assert.Equal(t, uint8(0), schema.InputModeRID)
	assert.Equal(t, uint8(0), schema.CertRID)
}

func TestDiscoverTouchPad(t *testing.T) {
	schema := discoverTest(t, testDesc{
		touchpad:   true,
		fingers:    2,
		contactMax: 5,
		confidence: true,
		config:     true,
		cert:       true,
	})

	assert.Equal(t, DeviceTouchPad, schema.Type)
	assert.True(t, schema.Supports(FieldConfidence))
	assert.Equal(t, hiditem.Location{Pos: 1, Size: 1, Count: 1}, schema.Locations[0][FieldConfidence])
	assert.Equal(t, hiditem.Location{Pos: 49, Size: 1, Count: 1}, schema.Locations[1][FieldConfidence])

	assert.Equal(t, uint8(4), schema.InputModeRID)
	assert.Equal(t, hiditem.Location{Pos: 0, Size: 8, Count: 1}, schema.InputModeLoc)
	assert.Equal(t, 1, schema.InputModeSize)
	assert.Equal(t, uint8(3), schema.CertRID)
	assert.Equal(t, 60, schema.CertSize)
}

func TestDiscoverRejections(t *testing.T) {
	tests := []struct {
		name    string
		desc    testDesc
		wantErr string
	}{
		{
			name:    "no finger collections",
			desc:    testDesc{contactMax: 2},
			wantErr: "no finger collections",
		},
		{
			name:    "no contact maximum feature",
			desc:    testDesc{fingers: 1, omitContactMax: true},
			wantErr: "no contact count maximum feature",
		},
		{
			name:    "no scan time",
			desc:    testDesc{fingers: 1, contactMax: 2, omitScanTime: true},
			wantErr: "no scan time usage",
		},
		{
			name:    "no contact id",
			desc:    testDesc{fingers: 1, contactMax: 2, omitContactID: true},
			wantErr: "missing contact-id usage",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			desc := tc.desc.build()
			schema, err := Discover(desc)
			require.Error(t, err)
			assert.Nil(t, schema)
			assert.ErrorIs(t, err, ErrNotMultiTouch)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Equal(t, DeviceUnknown, Classify(desc))
		})
	}
}

func TestDiscoverNonDigitizer(t *testing.T) {
	desc := hiditem.NewBuilder().
		UsagePage(0x01).Usage(0x02).
		Collection(hiditem.CollectionApplication).
		Usage(0x01).Collection(hiditem.CollectionPhysical).
		UsagePage(0x01).Usage(0x30).Usage(0x31).
		LogicalMinimum(-127).LogicalMaximum(127).
		ReportSize(8).ReportCount(2).
		Input(hiditem.FlagVariable | hiditem.FlagRelative).
		EndCollection().
		EndCollection().
		Bytes()

	assert.Equal(t, DeviceUnknown, Classify(desc))
	_, err := Discover(desc)
	assert.ErrorIs(t, err, ErrNotMultiTouch)
}

func TestDiscoverContactMaxFallback(t *testing.T) {
	// No declared maximum: the finger collection count stands in.
	schema := discoverTest(t, testDesc{fingers: 3, contactMax: 0})
	assert.Equal(t, 3, schema.ContactMax)
	assert.Equal(t, int32(2), schema.Bounds[FieldSlot].Maximum)

	// Declared beyond the slot limit clamps.
	schema = discoverTest(t, testDesc{fingers: 2, contactMax: 40})
	assert.Equal(t, MaxSlots, schema.ContactMax)
	assert.Equal(t, int32(MaxSlots-1), schema.Bounds[FieldSlot].Maximum)
}

func TestDiscoverOrientationSynthesized(t *testing.T) {
	schema := discoverTest(t, testDesc{fingers: 1, contactMax: 2, geometry: true})
	assert.True(t, schema.Supports(FieldWidth))
	assert.True(t, schema.Supports(FieldHeight))
	assert.True(t, schema.Supports(FieldOrientation))
	assert.Equal(t, Bounds{Minimum: 0, Maximum: 1}, schema.Bounds[FieldOrientation])
	assert.True(t, schema.Locations[0][FieldOrientation].Empty())

	schema = discoverTest(t, testDesc{fingers: 1, contactMax: 2})
	assert.False(t, schema.Supports(FieldOrientation))
}

func TestDiscoverToolPair(t *testing.T) {
	schema := discoverTest(t, testDesc{fingers: 1, contactMax: 2, tool: true})

	// The second x/y pair inside the finger binds to the tool fields.
	assert.True(t, schema.Supports(FieldToolX))
	assert.True(t, schema.Supports(FieldToolY))
	assert.Equal(t, hiditem.Location{Pos: 16, Size: 16, Count: 1}, schema.Locations[0][FieldX])
	assert.Equal(t, hiditem.Location{Pos: 32, Size: 16, Count: 1}, schema.Locations[0][FieldY])
	assert.Equal(t, hiditem.Location{Pos: 48, Size: 16, Count: 1}, schema.Locations[0][FieldToolX])
	assert.Equal(t, hiditem.Location{Pos: 64, Size: 16, Count: 1}, schema.Locations[0][FieldToolY])
}

func TestDiscoverPressure(t *testing.T) {
	schema := discoverTest(t, testDesc{fingers: 1, contactMax: 2, pressure: true})
	assert.True(t, schema.Supports(FieldPressure))
	assert.Equal(t, Bounds{Minimum: 0, Maximum: 255}, schema.Bounds[FieldPressure])
}

func TestApplyContactCountMax(t *testing.T) {
	schema := discoverTest(t, testDesc{fingers: 2, contactMax: 10})

	assert.Equal(t, 5, schema.ApplyContactCountMax([]byte{5}))
	assert.Equal(t, 5, schema.ContactMax)
	assert.Equal(t, int32(4), schema.Bounds[FieldSlot].Maximum)

	// Zero is a failed read, keep the current value.
	assert.Equal(t, 5, schema.ApplyContactCountMax([]byte{0}))

	assert.Equal(t, MaxSlots, schema.ApplyContactCountMax([]byte{200}))
	assert.Equal(t, int32(MaxSlots-1), schema.Bounds[FieldSlot].Maximum)
}

func TestCapContacts(t *testing.T) {
	schema := discoverTest(t, testDesc{fingers: 2, contactMax: 10})

	schema.CapContacts(4)
	assert.Equal(t, 4, schema.ContactMax)
	assert.Equal(t, int32(3), schema.Bounds[FieldSlot].Maximum)

	// Never raises, never drops below one contact.
	schema.CapContacts(10)
	assert.Equal(t, 4, schema.ContactMax)
	schema.CapContacts(0)
	assert.Equal(t, 4, schema.ContactMax)
}

func TestClassifyMatchesDiscover(t *testing.T) {
	for _, d := range []testDesc{
		{fingers: 2, contactMax: 10},
		{touchpad: true, fingers: 5, contactMax: 5, confidence: true, config: true},
		{fingers: 1, contactMax: 2, tool: true, geometry: true, pressure: true, inRange: true},
	} {
		desc := d.build()
		schema, err := Discover(desc)
		require.NoError(t, err)
		assert.Equal(t, schema.Type, Classify(desc))
	}
}
