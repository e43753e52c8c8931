package mtdev

import (
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

// Writer receives the translated event stream, a uinput device in
// production.
type Writer interface {
	WriteEvent(typ, code uint16, value int32) error
}

// EventSink turns decoded contacts into an evdev type B stream. It owns the
// tracking id to slot map, raises BTN_TOUCH while any contact is down and
// closes frames with SYN_REPORT.
//
// Write failures cannot surface through the sink contract; the first one is
// kept for Err and logged, later pushes still attempt delivery.
type EventSink struct {
	log     *zap.Logger
	w       Writer
	slots   *SlotMap
	active  []bool
	current int32
	down    int
	err     error
}

func NewEventSink(log *zap.Logger, w Writer, slotCount int) *EventSink {
	return &EventSink{
		log:    log,
		w:      w,
		slots:  NewSlotMap(slotCount),
		active: make([]bool, slotCount),
	}
}

func (s *EventSink) AssignSlot(trackingID int32) (int32, bool) {
	return s.slots.Assign(trackingID)
}

func (s *EventSink) Push(code uint16, value int32) {
	if code == uinput.ABS_MT_SLOT {
		s.current = value
	}
	s.write(uinput.EV_ABS, code, value)
	if code != uinput.ABS_MT_TRACKING_ID {
		return
	}
	slot := int(s.current)
	if slot < 0 || slot >= len(s.active) {
		return
	}
	switch {
	case value >= 0 && !s.active[slot]:
		s.active[slot] = true
		s.down++
		if s.down == 1 {
			s.write(uinput.EV_KEY, uinput.BTN_TOUCH, 1)
		}
	case value < 0:
		s.slots.Release(s.current)
		if s.active[slot] {
			s.active[slot] = false
			s.down--
			if s.down == 0 {
				s.write(uinput.EV_KEY, uinput.BTN_TOUCH, 0)
			}
		}
	}
}

func (s *EventSink) Sync() {
	s.write(uinput.EV_SYN, uinput.SYN_REPORT, 0)
}

// Down counts contacts currently touching.
func (s *EventSink) Down() int {
	return s.down
}

// Err returns the first write failure since the sink was created.
func (s *EventSink) Err() error {
	return s.err
}

func (s *EventSink) write(typ, code uint16, value int32) {
	if err := s.w.WriteEvent(typ, code, value); err != nil && s.err == nil {
		s.err = err
		s.log.Error("Dropping input events", zap.Error(err))
	}
}
