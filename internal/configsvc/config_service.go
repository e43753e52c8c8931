// Package configsvc watches configuration files and delivers typed reloads
// to the services that registered them.
package configsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
	"go.uber.org/zap"
)

// Editors produce bursts of writes for one save; reloads wait for the burst
// to settle.
const reloadDebounce = 200 * time.Millisecond

type subscriber struct {
	path   string
	reload func()

	mu    sync.Mutex
	timer *time.Timer
}

func (s *subscriber) notify(event fsnotify.Event) {
	if event.Name != s.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		s.timer = time.AfterFunc(reloadDebounce, s.reload)
		return
	}
	s.timer.Reset(reloadDebounce)
}

type Service struct {
	log *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	subscribers []*subscriber
	ready       chan struct{}
}

func New(log *zap.Logger) *Service {
	return &Service{
		log:   log,
		ready: make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	s.watcher = watcher
	defer watcher.Close()
	close(s.ready)
	s.log.Info("Config service started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			for _, sub := range s.subscribers {
				sub.notify(event)
			}
			s.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Watcher error", zap.Error(err))
		}
	}
}

// Ready is closed once Start has a live watcher; Register must not be called
// before that.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Register reads the file into a copy of def, watches it and calls fn with
// every settled change. The initial configuration is returned, not delivered
// through fn. Service is a parameter instead of the receiver to allow the
// type parameter.
func Register[T any](s *Service, path string, def T, fn func(config T, err error)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("resolving %s: %w", path, err)
	}
	config, err := readConfig(absPath, def)
	if err != nil {
		return def, err
	}
	if err := subscribe(s, absPath, def, fn); err != nil {
		return def, err
	}
	return config, nil
}

// RegisterOrCreate behaves like Register but writes def out as the initial
// file when none exists yet.
func RegisterOrCreate[T any](s *Service, path string, def T, fn func(config T, err error)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("resolving %s: %w", path, err)
	}
	config, err := readConfig(absPath, def)
	if os.IsNotExist(err) {
		s.log.Info("Writing initial config", zap.String("path", absPath))
		if err := writeConfig(absPath, def); err != nil {
			return def, err
		}
		config = def
	} else if err != nil {
		return def, err
	}
	if err := subscribe(s, absPath, def, fn); err != nil {
		return def, err
	}
	return config, nil
}

func subscribe[T any](s *Service, path string, def T, fn func(config T, err error)) error {
	// Watch the directory: editors replace files on save and a watch on the
	// old inode would go stale.
	if err := s.watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, &subscriber{
		path: path,
		reload: func() {
			config, err := readConfig(path, def)
			fn(config, err)
		},
	})
	s.mu.Unlock()
	return nil
}

func readConfig[T any](path string, def T) (T, error) {
	yamlB, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return def, err
		}
		return def, fmt.Errorf("reading config file: %w", err)
	}
	jsonB, err := yaml.YAMLToJSON(yamlB)
	if err != nil {
		return def, fmt.Errorf("converting yaml to json: %w", err)
	}
	if err := json.Unmarshal(jsonB, &def); err != nil {
		return def, fmt.Errorf("unmarshaling config: %w", err)
	}
	return def, nil
}

func writeConfig[T any](path string, config T) error {
	jsonB, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	yamlB, err := yaml.JSONToYAML(jsonB)
	if err != nil {
		return fmt.Errorf("converting json to yaml: %w", err)
	}
	if err := os.WriteFile(path, yamlB, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
