package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ajkula/notifytrigger/domain/port/inbound"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// LevelLoader reads the logging level out of the configuration file at path
type LevelLoader func(path string) (string, error)

type configWatcherService struct {
	watcher      outbound.FileWatcher
	levels       outbound.LevelController
	loadLevel    LevelLoader
	logger       outbound.Logger
	configPath   string
	currentLevel string
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	running      bool
	done         chan struct{}
}

func NewConfigWatcherService(
	watcher outbound.FileWatcher,
	levels outbound.LevelController,
	loadLevel LevelLoader,
	currentLevel string,
	logger outbound.Logger,
) inbound.ConfigWatcherService {
	ctx, cancel := context.WithCancel(context.Background())

	return &configWatcherService{
		watcher:      watcher,
		levels:       levels,
		loadLevel:    loadLevel,
		logger:       logger,
		currentLevel: strings.ToLower(currentLevel),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// begins watching the configuration file for log level changes
func (s *configWatcherService) Start(ctx context.Context, configPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("Config watcher service already running")
		return nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		s.logger.Error("Failed to get absolute path", "path", configPath, "error", err)
		return err
	}

	if err := s.watcher.Watch(ctx, absPath); err != nil {
		s.logger.Error("Failed to watch config file", "path", absPath, "error", err)
		return err
	}

	s.configPath = absPath
	s.running = true
	go s.processEvents()

	s.logger.Info("Watching config file for log level changes", "path", absPath)
	return nil
}

func (s *configWatcherService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.done

	if err := s.watcher.Stop(); err != nil {
		s.logger.Error("Error stopping config watcher", "error", err)
		return err
	}

	s.logger.Info("Config watcher service stopped")
	return nil
}

// CurrentLevel returns the last applied level
func (s *configWatcherService) CurrentLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLevel
}

func (s *configWatcherService) processEvents() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			if filepath.Clean(event.FilePath) != s.configPath {
				continue
			}
			s.logger.Debug("Received config file event", "path", event.FilePath, "type", event.EventType)
			s.reload()

		case err, ok := <-s.watcher.Errors():
			if !ok {
				return
			}
			s.logger.Error("Config watcher error", "error", err)
		}
	}
}

// reload applies the logging level of the changed file, ignoring unreadable files
func (s *configWatcherService) reload() {
	level, err := s.loadLevel(s.configPath)
	if err != nil {
		s.logger.Warn("Ignoring unreadable config change", "path", s.configPath, "error", err)
		return
	}

	level = strings.ToLower(level)

	s.mu.Lock()
	changed := level != s.currentLevel
	s.currentLevel = level
	s.mu.Unlock()

	if !changed {
		return
	}

	s.levels.UpdateLevel(level)
	s.logger.Info("Log level reloaded from config file", "level", level, "at", time.Now().UTC().Format(time.RFC3339))
}
