package multitouch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

type sinkEvent struct {
	code  uint16
	value int32
}

// recordingSink captures pushed events and keeps a tracking id to slot map
// the way the uinput sink does: lowest free slot wins, a -1 tracking id
// frees the selected slot.
type recordingSink struct {
	limit   int32
	bySlot  map[int32]int32
	byID    map[int32]int32
	current int32
	events  []sinkEvent
	syncs   int
}

func newRecordingSink(limit int) *recordingSink {
	return &recordingSink{
		limit:   int32(limit),
		bySlot:  make(map[int32]int32),
		byID:    make(map[int32]int32),
		current: -1,
	}
}

func (r *recordingSink) AssignSlot(trackingID int32) (int32, bool) {
	if slot, ok := r.byID[trackingID]; ok {
		return slot, true
	}
	for slot := int32(0); slot < r.limit; slot++ {
		if _, taken := r.bySlot[slot]; !taken {
			r.byID[trackingID] = slot
			r.bySlot[slot] = trackingID
			return slot, true
		}
	}
	return 0, false
}

func (r *recordingSink) Push(code uint16, value int32) {
	r.events = append(r.events, sinkEvent{code, value})
	switch {
	case code == uinput.ABS_MT_SLOT:
		r.current = value
	case code == uinput.ABS_MT_TRACKING_ID && value < 0:
		if id, ok := r.bySlot[r.current]; ok {
			delete(r.bySlot, r.current)
			delete(r.byID, id)
		}
	}
}

func (r *recordingSink) Sync() {
	r.syncs++
}

func (r *recordingSink) values(code uint16) []int32 {
	var out []int32
	for _, ev := range r.events {
		if ev.code == code {
			out = append(out, ev.value)
		}
	}
	return out
}

type testContact struct {
	tip        bool
	confidence uint32
	inRange    bool
	id         uint32
	x, y       uint32
	toolX      uint32
	toolY      uint32
	width      uint32
	height     uint32
	pressure   uint32
}

func buildReport(s *Schema, count int, contacts ...testContact) []byte {
	buf := make([]byte, s.InputSize)
	s.ContactCountLoc.Put(buf, uint32(count))
	for i, c := range contacts {
		locs := &s.Locations[i]
		put := func(f Field, v uint32) {
			if !locs[f].Empty() {
				locs[f].Put(buf, v)
			}
		}
		if c.tip {
			put(FieldTipSwitch, 1)
		}
		put(FieldConfidence, c.confidence)
		if c.inRange {
			put(FieldInRange, 1)
		}
		put(FieldContactID, c.id)
		put(FieldX, c.x)
		put(FieldY, c.y)
		put(FieldToolX, c.toolX)
		put(FieldToolY, c.toolY)
		put(FieldWidth, c.width)
		put(FieldHeight, c.height)
		put(FieldPressure, c.pressure)
	}
	return buf
}

func newTestDecoder(t *testing.T, d testDesc) (*Decoder, *Schema, *recordingSink) {
	t.Helper()
	schema := discoverTest(t, d)
	sink := newRecordingSink(schema.ContactMax)
	return NewDecoder(zap.NewNop(), schema, sink), schema, sink
}

func TestDecodeSingleContact(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 1, contactMax: 2, geometry: true})

	report := buildReport(schema, 1, testContact{tip: true, id: 3, x: 100, y: 200, width: 20, height: 10})
	require.True(t, dec.Decode(1, report))

	assert.Equal(t, []sinkEvent{
		{uinput.ABS_MT_SLOT, 0},
		{uinput.ABS_MT_TOUCH_MAJOR, 10},
		{uinput.ABS_MT_TOUCH_MINOR, 5},
		{uinput.ABS_MT_ORIENTATION, 1},
		{uinput.ABS_MT_POSITION_X, 100},
		{uinput.ABS_MT_POSITION_Y, 200},
		{uinput.ABS_MT_TRACKING_ID, 3},
	}, sink.events)
	assert.Equal(t, 1, sink.syncs)
	assert.Equal(t, 0, dec.Pending())
}

func TestDecodeOrientation(t *testing.T) {
	tests := []struct {
		name            string
		width, height   uint32
		wantOrientation int32
		wantMajor       int32
		wantMinor       int32
	}{
		{"wide", 20, 10, 1, 10, 5},
		{"tall", 10, 20, 0, 10, 5},
		{"square", 10, 10, 0, 5, 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dec, schema, sink := newTestDecoder(t, testDesc{fingers: 1, contactMax: 2, geometry: true})
			report := buildReport(schema, 1, testContact{tip: true, id: 1, x: 5, y: 5, width: tc.width, height: tc.height})
			require.True(t, dec.Decode(1, report))
			assert.Equal(t, []int32{tc.wantOrientation}, sink.values(uinput.ABS_MT_ORIENTATION))
			assert.Equal(t, []int32{tc.wantMajor}, sink.values(uinput.ABS_MT_TOUCH_MAJOR))
			assert.Equal(t, []int32{tc.wantMinor}, sink.values(uinput.ABS_MT_TOUCH_MINOR))
		})
	}
}

func TestDecodeHybridFrame(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 2, contactMax: 5})

	// Four contacts spread over two reports: the first announces the frame
	// total, the continuation carries zero.
	first := buildReport(schema, 4,
		testContact{tip: true, id: 1, x: 10, y: 11},
		testContact{tip: true, id: 2, x: 20, y: 21},
	)
	assert.False(t, dec.Decode(1, first))
	assert.Equal(t, 2, dec.Pending())
	assert.Equal(t, 0, sink.syncs)

	second := buildReport(schema, 0,
		testContact{tip: true, id: 3, x: 30, y: 31},
		testContact{tip: true, id: 4, x: 40, y: 41},
	)
	assert.True(t, dec.Decode(1, second))
	assert.Equal(t, 1, sink.syncs)

	assert.Equal(t, []int32{0, 1, 2, 3}, sink.values(uinput.ABS_MT_SLOT))
	assert.Equal(t, []int32{1, 2, 3, 4}, sink.values(uinput.ABS_MT_TRACKING_ID))
	assert.Equal(t, []int32{10, 20, 30, 40}, sink.values(uinput.ABS_MT_POSITION_X))
}

func TestDecodeReannouncedCount(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 2, contactMax: 8})

	assert.False(t, dec.Decode(1, buildReport(schema, 4,
		testContact{tip: true, id: 1, x: 1, y: 1},
		testContact{tip: true, id: 2, x: 2, y: 2},
	)))

	// A nonzero count mid frame restarts the countdown.
	assert.False(t, dec.Decode(1, buildReport(schema, 3,
		testContact{tip: true, id: 3, x: 3, y: 3},
		testContact{tip: true, id: 4, x: 4, y: 4},
	)))
	assert.Equal(t, 1, dec.Pending())

	assert.True(t, dec.Decode(1, buildReport(schema, 0,
		testContact{tip: true, id: 5, x: 5, y: 5},
	)))
	assert.Equal(t, 1, sink.syncs)
}

func TestDecodeShortContinuation(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 2, contactMax: 5})

	require.False(t, dec.Decode(1, buildReport(schema, 3,
		testContact{tip: true, id: 1, x: 10, y: 11},
		testContact{tip: true, id: 2, x: 20, y: 21},
	)))

	// The continuation carries one contact and is cut short of the contact
	// count field; the missing bytes decode as zero.
	full := buildReport(schema, 0, testContact{tip: true, id: 3, x: 30, y: 31})
	require.True(t, dec.Decode(1, full[:6]))

	assert.Equal(t, 1, sink.syncs)
	assert.Equal(t, []int32{1, 2, 3}, sink.values(uinput.ABS_MT_TRACKING_ID))
}

func TestDecodeRelease(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 1, contactMax: 2})

	require.True(t, dec.Decode(1, buildReport(schema, 1, testContact{tip: true, id: 5, x: 50, y: 51})))
	sink.events = nil

	// Tip cleared: only the slot selection and the tracking id teardown.
	require.True(t, dec.Decode(1, buildReport(schema, 1, testContact{id: 5})))
	assert.Equal(t, []sinkEvent{
		{uinput.ABS_MT_SLOT, 0},
		{uinput.ABS_MT_TRACKING_ID, -1},
	}, sink.events)
	assert.Equal(t, 2, sink.syncs)

	// The freed slot is handed to the next contact.
	sink.events = nil
	require.True(t, dec.Decode(1, buildReport(schema, 1, testContact{tip: true, id: 9, x: 60, y: 61})))
	assert.Equal(t, []int32{0}, sink.values(uinput.ABS_MT_SLOT))
	assert.Equal(t, []int32{9}, sink.values(uinput.ABS_MT_TRACKING_ID))
}

func TestDecodeConfidenceZeroReleases(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{touchpad: true, fingers: 1, contactMax: 2, confidence: true})

	require.True(t, dec.Decode(1, buildReport(schema, 1,
		testContact{tip: true, confidence: 1, id: 7, x: 50, y: 51})))
	assert.Equal(t, []int32{7}, sink.values(uinput.ABS_MT_TRACKING_ID))
	sink.events = nil

	// Tip still set but confidence dropped: the contact is a palm now and
	// goes through the release path.
	require.True(t, dec.Decode(1, buildReport(schema, 1,
		testContact{tip: true, confidence: 0, id: 7, x: 50, y: 51})))
	assert.Equal(t, []sinkEvent{
		{uinput.ABS_MT_SLOT, 0},
		{uinput.ABS_MT_TRACKING_ID, -1},
	}, sink.events)
}

func TestDecodeInRangeToggle(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 1, contactMax: 2, inRange: true})

	touch := buildReport(schema, 1, testContact{tip: true, inRange: true, id: 1, x: 5, y: 5})
	require.True(t, dec.Decode(1, touch))
	require.True(t, dec.Decode(1, touch))

	// The distance value is the transition against the previous raw
	// reading, not the raw level itself.
	assert.Equal(t, []int32{1, 0}, sink.values(uinput.ABS_MT_DISTANCE))

	// Release clears the history, the next touch toggles again.
	require.True(t, dec.Decode(1, buildReport(schema, 1, testContact{id: 1})))
	require.True(t, dec.Decode(1, touch))
	assert.Equal(t, []int32{1, 0, 1}, sink.values(uinput.ABS_MT_DISTANCE))
}

func TestDecodeToolAndPressure(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 1, contactMax: 2, tool: true, pressure: true})

	require.True(t, dec.Decode(1, buildReport(schema, 1, testContact{
		tip: true, id: 2, x: 100, y: 200, toolX: 110, toolY: 210, pressure: 42,
	})))

	assert.Equal(t, []int32{110}, sink.values(uinput.ABS_MT_TOOL_X))
	assert.Equal(t, []int32{210}, sink.values(uinput.ABS_MT_TOOL_Y))
	assert.Equal(t, []int32{42}, sink.values(uinput.ABS_MT_PRESSURE))
}

func TestDecodeReportIDMismatch(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 1, contactMax: 2})

	report := buildReport(schema, 1, testContact{tip: true, id: 1, x: 5, y: 5})
	assert.False(t, dec.Decode(9, report))
	assert.Empty(t, sink.events)
	assert.Equal(t, 0, sink.syncs)
}

func TestDecodeSlotExhaustion(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 2, contactMax: 1})
	require.Equal(t, 1, schema.ContactMax)

	// Two contacts into a single slot device: the second is dropped, the
	// frame still completes.
	require.True(t, dec.Decode(1, buildReport(schema, 2,
		testContact{tip: true, id: 1, x: 10, y: 11},
		testContact{tip: true, id: 2, x: 20, y: 21},
	)))
	assert.Equal(t, []int32{0}, sink.values(uinput.ABS_MT_SLOT))
	assert.Equal(t, []int32{1}, sink.values(uinput.ABS_MT_TRACKING_ID))
	assert.Equal(t, 1, sink.syncs)
}

func TestDecodeEmptyFrame(t *testing.T) {
	dec, schema, sink := newTestDecoder(t, testDesc{fingers: 2, contactMax: 5})

	// Zero contacts announced with nothing pending still closes a frame.
	assert.True(t, dec.Decode(1, buildReport(schema, 0)))
	assert.Empty(t, sink.events)
	assert.Equal(t, 1, sink.syncs)
}
