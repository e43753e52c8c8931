package multitouch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuroplastio/mtouch-agent/hidapi/hiditem"
)

func TestReportSize(t *testing.T) {
	desc := testDesc{fingers: 2, contactMax: 10, cert: true, config: true}.build()

	assert.Equal(t, 15, ReportSize(desc, hiditem.KindInput, 1))
	assert.Equal(t, 1, ReportSize(desc, hiditem.KindFeature, 2))
	assert.Equal(t, 60, ReportSize(desc, hiditem.KindFeature, 3))
	assert.Equal(t, 1, ReportSize(desc, hiditem.KindFeature, 4))

	// Reports that do not exist.
	assert.Equal(t, 0, ReportSize(desc, hiditem.KindInput, 9))
	assert.Equal(t, 0, ReportSize(desc, hiditem.KindOutput, 1))
	assert.Equal(t, 0, ReportSize(desc, hiditem.KindCollection, 1))
}

func TestReportSizeRoundsUp(t *testing.T) {
	desc := hiditem.NewBuilder().
		UsagePage(0x01).Usage(0x06).
		Collection(hiditem.CollectionApplication).
		UsagePage(0x07).UsageRange(0xe0, 0xe7).
		LogicalMinimum(0).LogicalMaximum(1).
		ReportSize(1).ReportCount(8).
		Input(hiditem.FlagVariable).
		UsageRange(0x00, 0x65).
		LogicalMaximum(0x65).
		ReportSize(8).ReportCount(6).
		Input(0).
		UsagePage(0x08).UsageRange(0x01, 0x05).
		LogicalMaximum(1).
		ReportSize(1).ReportCount(5).
		Output(hiditem.FlagVariable).
		ReportCount(3).
		Output(hiditem.FlagConstant).
		EndCollection().
		Bytes()

	assert.Equal(t, 7, ReportSize(desc, hiditem.KindInput, 0))
	assert.Equal(t, 1, ReportSize(desc, hiditem.KindOutput, 0))
}

func TestReportSizeSingleBit(t *testing.T) {
	desc := hiditem.NewBuilder().
		UsagePage(0x0d).Usage(0x0e).
		Collection(hiditem.CollectionApplication).
		ReportID(7).Usage(0x52).
		LogicalMinimum(0).LogicalMaximum(1).
		ReportSize(1).ReportCount(1).
		Feature(hiditem.FlagVariable).
		EndCollection().
		Bytes()

	assert.Equal(t, 1, ReportSize(desc, hiditem.KindFeature, 7))
}
