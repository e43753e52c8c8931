//go:build linux

package simsvc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/neuroplastio/mtouch-agent/internal/configsvc"
)

// Service keeps the configured set of simulated digitizers alive, creating
// and destroying uhid devices as the config file changes.
type Service struct {
	log        *zap.Logger
	config     *configsvc.Service
	configPath string
	ready      chan struct{}
	ctx        context.Context

	mu      sync.Mutex
	devices map[string]runningDevice
}

type runningDevice struct {
	cfg DeviceConfig
	dev *Device
}

type fileConfig struct {
	Sim Config `json:"sim"`
}

func New(log *zap.Logger, config *configsvc.Service, configPath string) *Service {
	return &Service{
		log:        log,
		config:     config,
		configPath: configPath,
		ready:      make(chan struct{}),
		devices:    map[string]runningDevice{},
	}
}

// Ready is closed once the initial config has been applied.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) Start(ctx context.Context) error {
	s.ctx = ctx
	select {
	case <-ctx.Done():
		return nil
	case <-s.config.Ready():
	}
	cfg, err := configsvc.RegisterOrCreate(s.config, s.configPath, fileConfig{}, s.onConfigChange)
	if err != nil {
		return fmt.Errorf("failed to register config: %w", err)
	}
	s.apply(cfg.Sim)
	close(s.ready)
	s.log.Info("Simulator started", zap.Int("devices", len(cfg.Sim.Devices)))
	<-ctx.Done()
	s.shutdown()
	return nil
}

func (s *Service) onConfigChange(cfg fileConfig, err error) {
	if err != nil {
		s.log.Error("Failed to reload config", zap.Error(err))
		return
	}
	s.apply(cfg.Sim)
}

// apply reconciles running devices with the config: removed or changed
// entries are destroyed, new ones created. Unchanged entries keep their uhid
// node so attached pipelines survive a reload.
func (s *Service) apply(cfg Config) {
	desired := make(map[string]DeviceConfig, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		if dc.ID == "" {
			s.log.Warn("Skipping simulated device without id")
			continue
		}
		desired[dc.ID] = dc
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, running := range s.devices {
		dc, ok := desired[id]
		if ok && dc == running.cfg {
			delete(desired, id)
			continue
		}
		if err := running.dev.Close(); err != nil {
			s.log.Error("Failed to close simulated device", zap.String("id", id), zap.Error(err))
		}
		delete(s.devices, id)
		s.log.Info("Destroyed simulated device", zap.String("id", id))
	}
	for id, dc := range desired {
		dev, err := NewDevice(s.ctx, s.log.With(zap.String("id", id)), dc)
		if err != nil {
			s.log.Error("Failed to create simulated device", zap.String("id", id), zap.Error(err))
			continue
		}
		s.devices[id] = runningDevice{cfg: dc, dev: dev}
		s.log.Info("Created simulated device", zap.String("id", id), zap.Stringer("schema", dev.Schema()))
	}
}

func (s *Service) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, running := range s.devices {
		if err := running.dev.Close(); err != nil {
			s.log.Error("Failed to close simulated device", zap.String("id", id), zap.Error(err))
		}
		delete(s.devices, id)
	}
}
