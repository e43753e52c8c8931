package simsvc

import (
	"fmt"
	"sync"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
)

// encodeFrame lays a frame out as raw input reports, report id byte first,
// splitting across several reports when the frame holds more contacts than
// one report carries. The total contact count rides only in the first report;
// continuation reports leave it zero. Scan time stays zero throughout.
func encodeFrame(schema *multitouch.Schema, frame Frame) [][]byte {
	perReport := schema.ContactsPerReport()
	reports := (len(frame) + perReport - 1) / perReport
	if reports == 0 {
		reports = 1
	}
	out := make([][]byte, 0, reports)
	for r := 0; r < reports; r++ {
		buf := make([]byte, schema.InputSize)
		for slot := 0; slot < perReport; slot++ {
			i := r*perReport + slot
			if i >= len(frame) {
				break
			}
			c := frame[i]
			loc := schema.Locations[slot]
			if c.Tip {
				loc[multitouch.FieldTipSwitch].Put(buf, 1)
			}
			if schema.Supports(multitouch.FieldConfidence) {
				loc[multitouch.FieldConfidence].Put(buf, 1)
			}
			loc[multitouch.FieldContactID].Put(buf, uint32(c.ID))
			loc[multitouch.FieldX].Put(buf, uint32(c.X))
			loc[multitouch.FieldY].Put(buf, uint32(c.Y))
		}
		if r == 0 {
			schema.ContactCountLoc.Put(buf, uint32(len(frame)))
		}
		out = append(out, append([]byte{schema.ReportID}, buf...))
	}
	return out
}

// reportState answers the feature report traffic of a simulated digitizer.
type reportState struct {
	mu         sync.Mutex
	schema     *multitouch.Schema
	contactMax uint8
	inputMode  uint8
}

func newReportState(schema *multitouch.Schema, contactMax uint8) *reportState {
	return &reportState{schema: schema, contactMax: contactMax}
}

// getFeature returns the full report, id byte included, the way a real device
// answers a GET_REPORT transfer.
func (s *reportState) getFeature(rid uint8) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case rid != 0 && rid == s.schema.ContactMaxRID:
		payload := make([]byte, s.schema.ContactMaxSize)
		s.schema.ContactMaxLoc.Put(payload, uint32(s.contactMax))
		return append([]byte{rid}, payload...), nil
	case rid != 0 && rid == s.schema.InputModeRID:
		payload := make([]byte, s.schema.InputModeSize)
		s.schema.InputModeLoc.Put(payload, uint32(s.inputMode))
		return append([]byte{rid}, payload...), nil
	}
	return nil, fmt.Errorf("no feature report %d", rid)
}

// setFeature accepts a SET_REPORT payload. The kernel hands the raw transfer
// over with the report id as the first data byte; strip it before extracting.
// Only the input mode is writable.
func (s *reportState) setFeature(rid uint8, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rid == 0 || rid != s.schema.InputModeRID {
		return fmt.Errorf("feature report %d is not writable", rid)
	}
	if len(data) > 0 && data[0] == rid {
		data = data[1:]
	}
	payload := make([]byte, s.schema.InputModeSize)
	copy(payload, data)
	s.inputMode = uint8(s.schema.InputModeLoc.Extract(payload))
	return nil
}

func (s *reportState) currentMode() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputMode
}
