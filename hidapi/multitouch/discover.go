package multitouch

import (
	"errors"
	"fmt"

	"github.com/neuroplastio/mtouch-agent/hidapi"
	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
)

// ErrNotMultiTouch is returned when a report descriptor does not describe a
// usable multi-touch digitizer. It wraps the specific missing piece.
var ErrNotMultiTouch = errors.New("not a multi-touch digitizer")

// scanState tracks which collection the descriptor walk is inside. A level-1
// end-collection closes whichever top level collection is open, no matter
// which one it was.
type scanState uint8

const (
	scanOutside scanState = iota
	scanTouch
	scanFinger
	scanConfig
)

// Classify reports whether the descriptor belongs to a multi-touch
// touchscreen or touchpad, without building a schema. It allocates nothing
// beyond the descriptor walk and is meant for probing.
func Classify(desc []byte) DeviceType {
	t, _ := parse(desc, nil)
	return t
}

// Discover builds the full contact schema from a report descriptor.
func Discover(desc []byte) (*Schema, error) {
	schema := &Schema{}
	t, err := parse(desc, schema)
	if err != nil {
		return nil, err
	}
	schema.Type = t
	return schema, nil
}

func parse(desc []byte, schema *Schema) (DeviceType, error) {
	var (
		state       scanState
		devType     DeviceType
		caps        Caps
		fingers     int
		skipped     int
		reportID    uint8
		contMaxDecl int32
		contMaxRID  uint8
		contMaxLoc  hiditem.Location
		certRID     uint8
		modeRID     uint8
		modeLoc     hiditem.Location
		countLoc    hiditem.Location
		countFound  bool
		scanTimeOK  bool
	)

	// Feature pass: contact count maximum and THQA certificate inside the
	// digitizer collection, input mode inside the configuration collection.
	s := hiditem.NewScanner(desc, hiditem.MaskFeature)
	for {
		it, ok := s.Next()
		if !ok {
			break
		}
		switch it.Kind {
		case hiditem.KindCollection:
			if it.CollectionLevel != 1 {
				break
			}
			switch it.Usage {
			case hidapi.UsageTouchScreen, hidapi.UsageTouchPad:
				state = scanTouch
			case hidapi.UsageDeviceConfig:
				state = scanConfig
			}
		case hiditem.KindEndCollection:
			if it.CollectionLevel == 0 {
				state = scanOutside
			}
		case hiditem.KindFeature:
			if state == scanTouch && it.CollectionLevel == 1 &&
				it.Usage == hidapi.UsageTHQACertificate {
				certRID = it.ReportID
				break
			}
			if state == scanTouch && it.CollectionLevel == 1 &&
				it.Flags.IsAbsoluteVariable() && it.Usage == hidapi.UsageContactMax {
				contMaxDecl = it.LogicalMaximum
				contMaxRID = it.ReportID
				contMaxLoc = it.Location
				break
			}
			if state == scanConfig && it.Flags.IsAbsoluteVariable() &&
				it.Usage == hidapi.UsageInputMode {
				modeRID = it.ReportID
				modeLoc = it.Location
			}
		}
	}

	// Contact count maximum is a required feature usage.
	if contMaxRID == 0 {
		return DeviceUnknown, fmt.Errorf("%w: no contact count maximum feature", ErrNotMultiTouch)
	}

	// Input pass: device type, finger collections and field locations.
	state = scanOutside
	s = hiditem.NewScanner(desc, hiditem.MaskInput)
	for {
		it, ok := s.Next()
		if !ok {
			break
		}
		switch it.Kind {
		case hiditem.KindCollection:
			switch {
			case it.CollectionLevel == 1 && it.Usage == hidapi.UsageTouchScreen:
				state = scanTouch
				devType = DeviceTouchScreen
			case it.CollectionLevel == 1 && it.Usage == hidapi.UsageTouchPad:
				state = scanTouch
				devType = DeviceTouchPad
			case (state == scanTouch || state == scanFinger) && it.CollectionLevel == 2 &&
				it.Usage == hidapi.UsageFinger &&
				(reportID == 0 || reportID == it.ReportID):
				state = scanFinger
			}
		case hiditem.KindEndCollection:
			switch {
			case state == scanFinger && it.CollectionLevel == 1:
				state = scanTouch
				fingers++
				if fingers > MaxSlots {
					skipped++
				} else if schema != nil {
					for len(schema.Locations) < fingers {
						schema.Locations = append(schema.Locations, [fieldCount]hiditem.Location{})
					}
				}
			case state == scanTouch && it.CollectionLevel == 0:
				state = scanOutside
			}
		case hiditem.KindInput:
			// Every usage has to be an absolute variable living in the same
			// report as the rest; the first one seen locks the report id.
			if state != scanTouch && state != scanFinger {
				break
			}
			if !it.Flags.IsAbsoluteVariable() {
				break
			}
			if reportID != 0 && reportID != it.ReportID {
				break
			}
			reportID = it.ReportID

			if it.CollectionLevel == 1 && it.Usage == hidapi.UsageContactCount {
				countFound = true
				countLoc = it.Location
				break
			}
			// Scan time is required to be present but is not decoded.
			if it.CollectionLevel == 1 && it.Usage == hidapi.UsageScanTime {
				scanTimeOK = true
				break
			}
			if state != scanFinger || it.CollectionLevel != 2 {
				break
			}
			// Probing needs capabilities of the first finger only.
			if schema == nil && fingers > 0 {
				break
			}
			if fingers >= MaxSlots {
				break
			}
			for f := Field(0); f < fieldCount; f++ {
				if it.Usage != fieldTable[f].usage {
					continue
				}
				if schema == nil {
					if caps.Has(f) {
						// X and Y appear twice in the table; a second
						// occurrence falls through to tool x/y.
						continue
					}
					caps |= 1 << f
					break
				}
				for len(schema.Locations) <= fingers {
					schema.Locations = append(schema.Locations, [fieldCount]hiditem.Location{})
				}
				if !schema.Locations[fingers][f].Empty() {
					continue
				}
				schema.Locations[fingers][f] = it.Location
				// Bounds from later finger collections are not reliable on
				// some panels; record locations only.
				if fingers > 0 {
					break
				}
				caps |= 1 << f
				schema.Bounds[f] = Bounds{
					Minimum:    it.LogicalMinimum,
					Maximum:    it.LogicalMaximum,
					Resolution: it.Resolution(),
				}
				break
			}
		}
	}

	switch {
	case fingers == 0:
		return DeviceUnknown, fmt.Errorf("%w: no finger collections", ErrNotMultiTouch)
	case !countFound:
		return DeviceUnknown, fmt.Errorf("%w: no contact count usage", ErrNotMultiTouch)
	case !scanTimeOK:
		return DeviceUnknown, fmt.Errorf("%w: no scan time usage", ErrNotMultiTouch)
	}
	for f := Field(0); f < fieldCount; f++ {
		if fieldTable[f].required && !caps.Has(f) {
			return DeviceUnknown, fmt.Errorf("%w: missing %s usage", ErrNotMultiTouch, f)
		}
	}

	if schema == nil {
		return devType, nil
	}

	// The feature report read at attach time overrides the declared maximum;
	// start from a sane default in case that read fails.
	contactMax := int(contMaxDecl)
	if contactMax < 1 {
		contactMax = fingers
	}
	if contactMax > MaxSlots {
		contactMax = MaxSlots
	}
	schema.Bounds[FieldSlot] = Bounds{Minimum: 0, Maximum: int32(contactMax - 1)}

	if caps.Has(FieldWidth) && caps.Has(FieldHeight) {
		caps |= 1 << FieldOrientation
		schema.Bounds[FieldOrientation].Maximum = 1
	}

	schema.ReportID = reportID
	schema.Caps = caps
	schema.ContactCountLoc = countLoc
	schema.ContactMax = contactMax
	schema.SkippedContacts = skipped
	schema.ContactMaxRID = contMaxRID
	schema.ContactMaxLoc = contMaxLoc
	schema.ContactMaxSize = ReportSize(desc, hiditem.KindFeature, contMaxRID)
	schema.InputSize = ReportSize(desc, hiditem.KindInput, reportID)
	if certRID > 0 {
		schema.CertRID = certRID
		schema.CertSize = ReportSize(desc, hiditem.KindFeature, certRID)
	}
	if modeRID > 0 {
		schema.InputModeRID = modeRID
		schema.InputModeLoc = modeLoc
		schema.InputModeSize = ReportSize(desc, hiditem.KindFeature, modeRID)
	}
	return devType, nil
}
