package multitouch

import (
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

// Sink consumes decoded contact events. AssignSlot resolves a device
// tracking id to a contact slot in [0, MaxSlots) or reports exhaustion, Push
// emits one absolute event for the currently selected slot, Sync marks the
// end of a complete frame.
type Sink interface {
	AssignSlot(trackingID int32) (int32, bool)
	Push(code uint16, value int32)
	Sync()
}

// Decoder turns raw input reports into contact events against a discovered
// schema.
//
// Hybrid mode devices spread one frame over several reports: the first
// report announces the total contact count and continuations carry zero. The
// decoder keeps the announced count pending across calls and closes the
// frame once it drains. Not safe for concurrent use.
type Decoder struct {
	log    *zap.Logger
	schema *Schema
	sink   Sink

	pending int
	values  [fieldCount]uint32
	inRange [MaxSlots]bool
	buf     []byte
}

func NewDecoder(log *zap.Logger, schema *Schema, sink Sink) *Decoder {
	return &Decoder{
		log:    log,
		schema: schema,
		sink:   sink,
		buf:    make([]byte, schema.InputSize),
	}
}

// Decode processes one input report payload (report id byte stripped) and
// reports whether it completed a frame.
func (d *Decoder) Decode(reportID uint8, payload []byte) bool {
	if reportID != d.schema.ReportID {
		d.log.Debug("Skipping report with unexpected id", zap.Uint8("id", reportID))
		return false
	}
	buf := payload
	if len(payload) < d.schema.InputSize {
		// Zero pad so stale bits are never decoded.
		n := copy(d.buf, payload)
		for i := n; i < len(d.buf); i++ {
			d.buf[i] = 0
		}
		buf = d.buf
	}

	// A nonzero contact count starts a new frame, possibly re-announcing
	// mid-frame; zero marks a continuation report.
	if count := int(d.schema.ContactCountLoc.Extract(buf)); count != 0 {
		d.pending = count
	}
	contacts := d.pending
	if n := d.schema.ContactsPerReport(); contacts > n {
		contacts = n
	}

	for i := 0; i < contacts; i++ {
		locs := &d.schema.Locations[i]
		for f := Field(0); f < fieldCount; f++ {
			d.values[f] = 0
			if d.schema.Caps.Has(f) && !locs[f].Empty() {
				d.values[f] = locs[f].Extract(buf)
			}
		}
		slot, ok := d.sink.AssignSlot(int32(d.values[FieldContactID]))
		if !ok {
			d.log.Debug("Slot overflow", zap.Uint32("contact_id", d.values[FieldContactID]))
			continue
		}
		if d.values[FieldTipSwitch] != 0 &&
			!(d.schema.Caps.Has(FieldConfidence) && d.values[FieldConfidence] == 0) {
			d.values[FieldSlot] = uint32(slot)

			// Devices encoding proximity as a transition bit need the
			// toggle against the previous raw reading, not the raw level.
			raw := d.values[FieldInRange] != 0
			d.values[FieldInRange] = 0
			if raw != d.inRange[slot] {
				d.values[FieldInRange] = 1
			}
			d.inRange[slot] = raw

			// Halved to match the visual scale of the contact.
			width := d.values[FieldWidth] >> 1
			height := d.values[FieldHeight] >> 1
			d.values[FieldOrientation] = 0
			if width > height {
				d.values[FieldOrientation] = 1
			}
			d.values[FieldTouchMajor] = max(width, height)
			d.values[FieldTouchMinor] = min(width, height)

			for f := Field(0); f < fieldCount; f++ {
				if !d.schema.Caps.Has(f) {
					continue
				}
				if code, ok := f.Code(); ok {
					d.sink.Push(code, int32(d.values[f]))
				}
			}
		} else {
			d.sink.Push(uinput.ABS_MT_SLOT, slot)
			d.sink.Push(uinput.ABS_MT_TRACKING_ID, -1)
			d.inRange[slot] = false
		}
	}

	d.pending -= contacts
	if d.pending == 0 {
		d.sink.Sync()
		return true
	}
	return false
}

// Pending returns the number of contacts announced but not yet decoded.
func (d *Decoder) Pending() int {
	return d.pending
}
