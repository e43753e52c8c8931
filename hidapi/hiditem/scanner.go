package hiditem

import (
	"math"

	"github.com/neuroplastio/mtouch-agent/hidapi"
)

// Scanner walks a report descriptor and yields one Item per report field,
// flattened: global and local state, push/pop and usage ranges are resolved
// internally. Bit positions are tracked per (kind, report id) pair and never
// include the report id byte.
//
// A main item expands to one Item per queued usage, the position advancing by
// the report size each time. Report count in excess of the queued usages is
// coalesced into a single trailing Item carrying the remaining count, with
// the last usage repeated (or zero for pure padding). Items of kinds outside
// the mask still advance their positions but are not emitted.
type Scanner struct {
	data  []byte
	pos   int
	kinds KindMask

	g         globalState
	stack     []globalState
	local     localState
	collLevel int

	positions map[uint16]uint32

	emitting  bool
	emitTmpl  Item
	emitSize  uint32
	emitTotal uint32
	emitDone  uint32
	emitIdx   int
	emitLast  uint32
	emitUsage []usageRange
}

type globalState struct {
	usagePage         uint16
	logicalMinimum    int32
	logicalMaximum    int32
	logicalMaximumRaw uint32
	physicalMinimum   int32
	physicalMaximum   int32
	unitExponent      int32
	unit              uint32
	reportSize        uint32
	reportID          uint8
	reportCount       uint32
}

type usageRange struct {
	lo uint32
	hi uint32
}

type localState struct {
	usages   []usageRange
	usageMin uint32
	haveMin  bool
}

func NewScanner(data []byte, kinds KindMask) *Scanner {
	return &Scanner{
		data:      data,
		kinds:     kinds,
		positions: make(map[uint16]uint32),
	}
}

func (s *Scanner) Next() (Item, bool) {
	for {
		if s.emitting {
			it, ok := s.nextField()
			if ok {
				return it, true
			}
			continue
		}
		if s.pos >= len(s.data) {
			return Item{}, false
		}
		header := s.data[s.pos]
		if header == longItemHeader {
			if s.pos+1 >= len(s.data) {
				return Item{}, false
			}
			s.pos += 3 + int(s.data[s.pos+1])
			continue
		}
		tag := Tag(header)
		size := tag.PayloadSize()
		if s.pos+1+size > len(s.data) {
			return Item{}, false
		}
		var uval uint32
		for i, b := range s.data[s.pos+1 : s.pos+1+size] {
			uval |= uint32(b) << (8 * i)
		}
		s.pos += 1 + size

		switch tag.Prefix() {
		case TagInput:
			s.beginMain(KindInput, uval)
		case TagOutput:
			s.beginMain(KindOutput, uval)
		case TagFeature:
			s.beginMain(KindFeature, uval)
		case TagCollection:
			s.collLevel++
			it := Item{
				Kind:            KindCollection,
				Usage:           hidapi.Usage(s.firstUsage()),
				Collection:      CollectionType(uval),
				CollectionLevel: s.collLevel,
				ReportID:        s.g.reportID,
			}
			s.resetLocal()
			return it, true
		case TagEndCollection:
			if s.collLevel > 0 {
				s.collLevel--
			}
			it := Item{
				Kind:            KindEndCollection,
				CollectionLevel: s.collLevel,
				ReportID:        s.g.reportID,
			}
			s.resetLocal()
			return it, true
		case TagUsagePage:
			s.g.usagePage = uint16(uval)
		case TagLogicalMinimum:
			s.g.logicalMinimum = signExtend(uval, size)
		case TagLogicalMaximum:
			s.g.logicalMaximum = signExtend(uval, size)
			s.g.logicalMaximumRaw = uval
		case TagPhysicalMinimum:
			s.g.physicalMinimum = signExtend(uval, size)
		case TagPhysicalMaximum:
			s.g.physicalMaximum = signExtend(uval, size)
		case TagUnitExponent:
			e := int32(uval & 0xf)
			if e > 7 {
				e -= 16
			}
			s.g.unitExponent = e
		case TagUnit:
			s.g.unit = uval
		case TagReportSize:
			s.g.reportSize = uval
		case TagReportID:
			s.g.reportID = uint8(uval)
		case TagReportCount:
			s.g.reportCount = uval
		case TagPush:
			s.stack = append(s.stack, s.g)
		case TagPop:
			if n := len(s.stack); n > 0 {
				s.g = s.stack[n-1]
				s.stack = s.stack[:n-1]
			}
		case TagUsage:
			u := s.extendUsage(uval, size)
			s.local.usages = append(s.local.usages, usageRange{u, u})
		case TagUsageMinimum:
			s.local.usageMin = s.extendUsage(uval, size)
			s.local.haveMin = true
		case TagUsageMaximum:
			if s.local.haveMin {
				hi := s.extendUsage(uval, size)
				if hi >= s.local.usageMin {
					s.local.usages = append(s.local.usages, usageRange{s.local.usageMin, hi})
				}
				s.local.haveMin = false
			}
		}
	}
}

// A four byte usage payload carries its own page in the high half; shorter
// forms inherit the current usage page.
func (s *Scanner) extendUsage(uval uint32, size int) uint32 {
	if size <= 2 {
		return uint32(hidapi.NewUsage(s.g.usagePage, uint16(uval)))
	}
	return uval
}

func (s *Scanner) firstUsage() uint32 {
	if len(s.local.usages) > 0 {
		return s.local.usages[0].lo
	}
	return 0
}

func (s *Scanner) resetLocal() {
	s.local.usages = s.local.usages[:0]
	s.local.haveMin = false
}

func (s *Scanner) beginMain(kind Kind, flags uint32) {
	lmax := s.g.logicalMaximum
	if lmax < s.g.logicalMinimum {
		// Descriptors routinely declare unsigned maxima like 0xffff with a
		// zero minimum; reinterpret instead of treating the range as inverted.
		if s.g.logicalMaximumRaw > math.MaxInt32 {
			lmax = math.MaxInt32
		} else {
			lmax = int32(s.g.logicalMaximumRaw)
		}
	}
	s.emitTmpl = Item{
		Kind:            kind,
		Flags:           Flags(flags),
		CollectionLevel: s.collLevel,
		ReportID:        s.g.reportID,
		LogicalMinimum:  s.g.logicalMinimum,
		LogicalMaximum:  lmax,
		PhysicalMinimum: s.g.physicalMinimum,
		PhysicalMaximum: s.g.physicalMaximum,
		UnitExponent:    s.g.unitExponent,
		Unit:            s.g.unit,
	}
	s.emitSize = s.g.reportSize
	s.emitTotal = s.g.reportCount
	s.emitDone = 0
	s.emitIdx = 0
	s.emitLast = 0
	s.emitUsage = append(s.emitUsage[:0], s.local.usages...)
	s.emitting = true
	s.resetLocal()
}

func (s *Scanner) nextField() (Item, bool) {
	if s.emitDone >= s.emitTotal {
		s.emitting = false
		return Item{}, false
	}
	key := uint16(s.emitTmpl.Kind)<<8 | uint16(s.emitTmpl.ReportID)
	it := s.emitTmpl
	if s.emitIdx < len(s.emitUsage) {
		r := &s.emitUsage[s.emitIdx]
		u := r.lo
		if r.lo < r.hi {
			r.lo++
		} else {
			s.emitIdx++
		}
		s.emitLast = u
		it.Usage = hidapi.Usage(u)
		it.Location = Location{Pos: s.positions[key], Size: s.emitSize, Count: 1}
		s.positions[key] += s.emitSize
		s.emitDone++
	} else {
		n := s.emitTotal - s.emitDone
		it.Usage = hidapi.Usage(s.emitLast)
		it.Location = Location{Pos: s.positions[key], Size: s.emitSize, Count: n}
		s.positions[key] += s.emitSize * n
		s.emitDone = s.emitTotal
	}
	if s.emitDone >= s.emitTotal {
		s.emitting = false
	}
	if !s.kinds.Has(it.Kind) {
		return Item{}, false
	}
	return it, true
}

func signExtend(v uint32, size int) int32 {
	switch size {
	case 1:
		return int32(int8(v))
	case 2:
		return int32(int16(v))
	case 4:
		return int32(v)
	}
	return 0
}

// HasReportIDs reports whether the descriptor declares report ids, meaning
// every report on the wire carries its id as the first byte.
func HasReportIDs(data []byte) bool {
	pos := 0
	for pos < len(data) {
		header := data[pos]
		if header == longItemHeader {
			if pos+1 >= len(data) {
				return false
			}
			pos += 3 + int(data[pos+1])
			continue
		}
		tag := Tag(header)
		if tag.Prefix() == TagReportID {
			return true
		}
		pos += 1 + tag.PayloadSize()
	}
	return false
}
