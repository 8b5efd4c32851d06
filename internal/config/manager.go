package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Tunables are the knobs that may change while the process runs. They are
// re-read from the config file on every change event so a long-lived serve
// process picks up threshold adjustments without a restart.
type Tunables struct {
	MaxIterations    int     `yaml:"max_iterations"`
	QualityThreshold float64 `yaml:"quality_threshold"`
}

// Manager watches a config file and republishes orchestrator tunables on
// change. Callers read the latest values via Snapshot.
type Manager struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current Tunables
}

// NewManager creates a manager seeded from cfg. Watching starts on Start.
func NewManager(path string, cfg *Config, logger *zap.Logger) *Manager {
	return &Manager{
		path:   path,
		logger: logger.Named("config"),
		current: Tunables{
			MaxIterations:    cfg.Orchestrator.MaxIterations,
			QualityThreshold: cfg.Orchestrator.QualityThreshold,
		},
	}
}

// Snapshot returns the current tunables.
func (m *Manager) Snapshot() Tunables {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Start begins watching the config file until ctx is cancelled. It is a
// no-op when no config file path was provided.
func (m *Manager) Start(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the file itself.
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", m.path, err)
	}
	m.watcher = w

	go m.loop(ctx)
	m.logger.Info("Config hot-reload enabled", zap.String("path", m.path))
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer m.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			// Debounce bursts of write events from editors.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, m.reload)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.logger.Warn("Config reload failed", zap.Error(err))
		return
	}
	var doc struct {
		Orchestrator Tunables `yaml:"orchestrator"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		m.logger.Warn("Config reload: invalid YAML, keeping previous tunables", zap.Error(err))
		return
	}
	t := doc.Orchestrator
	if t.MaxIterations < 1 || t.QualityThreshold < 0 || t.QualityThreshold > 1 {
		m.logger.Warn("Config reload: tunables out of range, keeping previous",
			zap.Int("max_iterations", t.MaxIterations),
			zap.Float64("quality_threshold", t.QualityThreshold),
		)
		return
	}

	m.mu.Lock()
	m.current = t
	m.mu.Unlock()

	m.logger.Info("Config tunables reloaded",
		zap.Int("max_iterations", t.MaxIterations),
		zap.Float64("quality_threshold", t.QualityThreshold),
	)
}
