package multitouch

import (
	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
)

// ReportSize computes the payload size in bytes of the report with the given
// kind and id by spanning the bit range its fields cover. The report id byte
// is not part of the result. An absent report yields 0.
func ReportSize(desc []byte, kind hiditem.Kind, reportID uint8) int {
	var mask hiditem.KindMask
	switch kind {
	case hiditem.KindInput:
		mask = hiditem.MaskInput
	case hiditem.KindOutput:
		mask = hiditem.MaskOutput
	case hiditem.KindFeature:
		mask = hiditem.MaskFeature
	default:
		return 0
	}
	lo := ^uint32(0)
	hi := uint32(0)
	s := hiditem.NewScanner(desc, mask)
	for {
		it, ok := s.Next()
		if !ok {
			break
		}
		if it.Kind != kind || it.ReportID != reportID {
			continue
		}
		if it.Location.Pos < lo {
			lo = it.Location.Pos
		}
		if end := it.Location.Pos + it.Location.Size*it.Location.Count; end > hi {
			hi = end
		}
	}
	if lo > hi {
		return 0
	}
	return int((hi - lo + 7) / 8)
}
