package touchsvc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/hidapi/multitouch"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc/quirkdb"
	"github.com/neuroplastio/mtouch-agent/pkg/mtdev"
)

// attachment is one running device pipeline.
type attachment struct {
	cancel context.CancelFunc
	done   chan struct{}
	quirks quirkdb.Quirks
}

// runDevice owns a matched device from open to release: negotiate the
// feature reports, create the virtual output device and pump the
// interrupt stream into the decoder until ctx is cancelled or the
// device goes away.
func (s *Service) runDevice(ctx context.Context, addr Address, bdev BackendDevice, quirks quirkdb.Quirks) error {
	backend, ok := s.options.backends[addr.Backend]
	if !ok {
		return fmt.Errorf("unknown backend %q", addr.Backend)
	}
	if s.options.outputFactory == nil {
		return fmt.Errorf("no output device factory configured")
	}
	identity, err := addr.Identity()
	if err != nil {
		return err
	}
	log := s.log.With(zap.String("device", addr.String()), zap.String("name", bdev.Name))

	tr, err := backend.Open(addr.ID)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	defer tr.Close()

	schema, err := negotiate(log, tr, quirks)
	if err != nil {
		return err
	}
	if schema.SkippedContacts > 0 {
		log.Warn("Ignoring finger collections beyond the slot limit",
			zap.Int("skipped", schema.SkippedContacts))
	}
	log.Info("Device attached", zap.Stringer("schema", schema), zap.Stringer("quirks", quirks))

	if err := s.recordAttach(addr, bdev.Name, schema, quirks); err != nil {
		log.Warn("Failed to update the address book", zap.Error(err))
	}

	out, err := s.options.outputFactory(mtdev.DeviceConfig(bdev.Name, identity.VendorID, identity.ProductID, schema))
	if err != nil {
		return fmt.Errorf("failed to create output device: %w", err)
	}
	defer out.Close()

	sink := mtdev.NewEventSink(log, out, schema.ContactMax)
	decoder := multitouch.NewDecoder(log, schema, sink)

	s.deviceBus.Publish(ctx, DeviceBusKey{Type: DeviceAttached, Addr: addr}, DeviceEvent{})
	// Publish on the service context: a detach triggered by cancelling
	// this device's context still needs to go out.
	defer s.deviceBus.Publish(s.ctx, DeviceBusKey{Type: DeviceDetached, Addr: addr}, DeviceEvent{})

	return tr.Start(ctx, func(reportID uint8, payload []byte) {
		decoder.Decode(reportID, payload)
	})
}

// negotiate runs the feature report handshake of the attach sequence.
// Failures past discovery are degradations, not errors: the descriptor
// values prevail and streaming proceeds.
func negotiate(log *zap.Logger, tr Transport, quirks quirkdb.Quirks) (*multitouch.Schema, error) {
	desc, err := tr.ReportDescriptor()
	if err != nil {
		return nil, fmt.Errorf("failed to read report descriptor: %w", err)
	}
	schema, err := multitouch.Discover(desc)
	if err != nil {
		return nil, err
	}
	switch {
	case quirks.Has(quirkdb.FlagForceTouchPad):
		schema.Type = multitouch.DeviceTouchPad
	case quirks.Has(quirkdb.FlagForceTouchScreen):
		schema.Type = multitouch.DeviceTouchScreen
	}

	payload, err := tr.GetFeatureReport(schema.ContactMaxRID, schema.ContactMaxSize)
	if err != nil {
		log.Warn("Failed to read contact count maximum, keeping descriptor value", zap.Error(err))
	} else {
		schema.ApplyContactCountMax(payload)
	}
	if quirks.MaxContacts > 0 {
		schema.CapContacts(quirks.MaxContacts)
	}

	if schema.CertRID != 0 && schema.CertRID != schema.ContactMaxRID && !quirks.Has(quirkdb.FlagSkipCert) {
		// Some firmware refuses to stream touch reports until the
		// certification blob has been read once. The content is discarded.
		if _, err := tr.GetFeatureReport(schema.CertRID, schema.CertSize); err != nil {
			log.Warn("Failed to read certification blob", zap.Error(err))
		}
	}

	if schema.Type == multitouch.DeviceTouchPad && schema.InputModeRID != 0 && !quirks.Has(quirkdb.FlagSkipInputMode) {
		payload, err := tr.GetFeatureReport(schema.InputModeRID, schema.InputModeSize)
		if err != nil || len(payload) < schema.InputModeSize {
			log.Warn("Failed to read input mode, writing a fresh report", zap.Error(err))
			payload = make([]byte, schema.InputModeSize)
		}
		schema.InputModeLoc.Put(payload, multitouch.InputModeTouchPad)
		if err := tr.SetFeatureReport(schema.InputModeRID, payload); err != nil {
			log.Warn("Failed to switch input mode", zap.Error(err))
		}
	}

	return schema, nil
}
