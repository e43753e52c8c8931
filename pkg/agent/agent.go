//go:build linux

package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/neuroplastio/mtouch-agent/internal/configsvc"
	"github.com/neuroplastio/mtouch-agent/internal/simsvc"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc"
	"github.com/neuroplastio/mtouch-agent/internal/touchsvc/linux"
	"github.com/neuroplastio/mtouch-agent/pkg/uinput"
)

type Agent struct {
	config Config
	log    *zap.Logger

	db        *badger.DB
	configSvc *configsvc.Service
	touchSvc  *touchsvc.Service
	simSvc    *simsvc.Service
}

func NewAgent(config Config) (*Agent, error) {
	logger, err := newLogger(config)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.ConfigDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	configSvc := configsvc.New(logger.Named("config"))
	backend := linux.NewBackend(logger.Named("touch.linux"))
	touchSvc := touchsvc.New(logger.Named("touch"), db, configSvc, config.TouchConfig(), time.Now,
		touchsvc.WithBackend("linux", backend),
		touchsvc.WithOutputFactory(func(cfg uinput.Config) (touchsvc.OutputDevice, error) {
			return uinput.Open(cfg)
		}),
	)
	a := &Agent{
		config:    config,
		log:       logger,
		db:        db,
		configSvc: configSvc,
		touchSvc:  touchSvc,
	}
	if config.Sim {
		a.simSvc = simsvc.New(logger.Named("sim"), configSvc, config.SimConfig())
	}
	return a, nil
}

func newLogger(config Config) (*zap.Logger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if config.JSONLog {
		loggerConfig = zap.NewProductionConfig()
	}
	if config.LogLevel != "" {
		level, err := zapcore.ParseLevel(config.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
		}
		loggerConfig.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func (a *Agent) Close() error {
	return a.db.Close()
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts the services and blocks until the context is cancelled. The
// agent keeps running on config errors after startup; the last valid
// configuration stays in effect.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.touchSvc.Start(groupCtx)
	})
	if a.simSvc != nil {
		group.Go(func() error {
			return a.simSvc.Start(groupCtx)
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

// RunWith starts the services, waits until the touch service is ready, runs
// fn and shuts everything down again. Used by one-shot commands that need a
// live backend.
func (a *Agent) RunWith(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return ctx.Err()
	case <-a.touchSvc.Ready():
	}
	fnErr := fn(ctx)
	cancel()
	runErr := <-errCh
	if fnErr != nil {
		return fnErr
	}
	return runErr
}

func (a *Agent) Touch() *touchsvc.Service {
	return a.touchSvc
}
