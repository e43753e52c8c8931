//go:build linux

package simsvc

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/psanford/uhid"
	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
)

// frameInterval paces gesture replay at roughly the report rate of real
// digitizer firmware.
const frameInterval = 10 * time.Millisecond

type uhidReportType uint8

const (
	uhidReportTypeFeature uhidReportType = 0
	uhidReportTypeOutput  uhidReportType = 1
	uhidReportTypeInput   uhidReportType = 2
)

const uhidReportSize = 4096

type getReportRequest struct {
	RequestID  uint32
	ReportID   uint8
	ReportType uhidReportType
}

type getReportReply struct {
	EventType uhid.EventType
	RequestID uint32
	Error     uint16
	Size      uint16
	Data      [uhidReportSize]byte
}

type setReportRequest struct {
	RequestID  uint32
	ReportID   uint8
	ReportType uhidReportType
	Size       uint16
	Data       [uhidReportSize]byte
}

type setReportReply struct {
	EventType uhid.EventType
	RequestID uint32
	Error     uint16
}

// Device is one simulated digitizer backed by /dev/uhid. It answers the
// feature report traffic of the negotiation sequence and injects gesture
// frames as interrupt reports.
type Device struct {
	log    *zap.Logger
	schema *multitouch.Schema
	state  *reportState
	width  int32
	height int32

	dev    *uhid.Device
	events chan uhid.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDevice builds the descriptor for the config, creates the uhid device and
// starts serving its event stream. The device lives until Close or until ctx
// is done.
func NewDevice(ctx context.Context, log *zap.Logger, cfg DeviceConfig) (*Device, error) {
	cfg = cfg.withDefaults()
	devType, err := cfg.deviceType()
	if err != nil {
		return nil, err
	}
	desc := BuildDescriptor(devType, cfg.Contacts, cfg.Width, cfg.Height)
	schema, err := multitouch.Discover(desc)
	if err != nil {
		return nil, fmt.Errorf("simulated descriptor failed discovery: %w", err)
	}
	uhidDev, err := uhid.NewDevice(cfg.Name, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create uhid device: %w", err)
	}
	uhidDev.Data.Bus = 0x03
	uhidDev.Data.VendorID = uint32(cfg.VendorID)
	uhidDev.Data.ProductID = uint32(cfg.ProductID)

	devCtx, cancel := context.WithCancel(ctx)
	events, err := uhidDev.Open(devCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open uhid device: %w", err)
	}
	d := &Device{
		log:    log,
		schema: schema,
		state:  newReportState(schema, uint8(schema.ContactMax)),
		width:  cfg.Width,
		height: cfg.Height,
		dev:    uhidDev,
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go d.run(devCtx)
	return d, nil
}

func (d *Device) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			switch event.Type {
			case uhid.GetReport:
				d.handleGetReport(event)
			case uhid.SetReport:
				d.handleSetReport(event)
			}
		}
	}
}

func (d *Device) handleGetReport(event uhid.Event) {
	req := getReportRequest{}
	if err := binary.Read(bytes.NewReader(event.Data), binary.LittleEndian, &req); err != nil {
		d.log.Error("Failed to read GetReport request", zap.Error(err))
		return
	}
	var (
		data []byte
		err  error
	)
	if req.ReportType == uhidReportTypeFeature {
		data, err = d.state.getFeature(req.ReportID)
	} else {
		err = fmt.Errorf("unsupported report type: %d", req.ReportType)
	}
	reply := getReportReply{
		EventType: uhid.GetReportReply,
		RequestID: req.RequestID,
	}
	if err != nil {
		d.log.Debug("Rejecting GetReport", zap.Uint8("report", req.ReportID), zap.Error(err))
		reply.Error = 1
	} else {
		reply.Size = uint16(len(data))
		copy(reply.Data[:], data)
	}
	if err := d.dev.WriteEvent(reply); err != nil {
		d.log.Error("Failed to write GetReport reply", zap.Error(err))
	}
}

func (d *Device) handleSetReport(event uhid.Event) {
	req := setReportRequest{}
	if err := binary.Read(bytes.NewReader(event.Data), binary.LittleEndian, &req); err != nil {
		d.log.Error("Failed to read SetReport request", zap.Error(err))
		return
	}
	data := make([]byte, req.Size)
	copy(data, req.Data[:])
	var err error
	if req.ReportType == uhidReportTypeFeature {
		err = d.state.setFeature(req.ReportID, data)
	} else {
		err = fmt.Errorf("unsupported report type: %d", req.ReportType)
	}
	reply := setReportReply{
		EventType: uhid.SetReportReply,
		RequestID: req.RequestID,
	}
	if err != nil {
		d.log.Debug("Rejecting SetReport", zap.Uint8("report", req.ReportID), zap.Error(err))
		reply.Error = 1
	} else {
		d.log.Debug("SetReport accepted",
			zap.Uint8("report", req.ReportID),
			zap.Uint8("inputMode", d.state.currentMode()))
	}
	if err := d.dev.WriteEvent(reply); err != nil {
		d.log.Error("Failed to write SetReport reply", zap.Error(err))
	}
}

// Inject sends one raw input report, report id byte first.
func (d *Device) Inject(report []byte) error {
	return d.dev.InjectEvent(report)
}

// Replay injects the frames in order, one per tick, hybrid-splitting frames
// that exceed the per-report contact capacity.
func (d *Device) Replay(ctx context.Context, frames []Frame) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for _, frame := range frames {
		for _, report := range encodeFrame(d.schema, frame) {
			if err := d.dev.InjectEvent(report); err != nil {
				return fmt.Errorf("failed to inject report: %w", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Schema describes the layout of the simulated digitizer.
func (d *Device) Schema() *multitouch.Schema {
	return d.schema
}

// Surface returns the coordinate extents of the simulated panel.
func (d *Device) Surface() (width, height int32) {
	return d.width, d.height
}

// InputMode returns the mode last accepted over SetReport.
func (d *Device) InputMode() uint8 {
	return d.state.currentMode()
}

func (d *Device) Close() error {
	d.cancel()
	err := d.dev.Close()
	<-d.done
	return err
}
