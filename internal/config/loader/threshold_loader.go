// Package loader hot-reloads the tunable playbook thresholds. The offline
// recalibration loop rewrites the threshold file; a running process picks
// the change up through fsnotify and republishes a versioned read-only
// snapshot to its subscribers.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"perception/internal/logger"
	"perception/internal/perception/playbook"
)

// FileConfig maps the playbooks threshold file.
type FileConfig struct {
	Playbooks map[string]playbook.Rules `yaml:"playbooks"`
}

// Snapshot is a read-only view of the thresholds at one version.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Rules    map[string]playbook.Rules
}

// ChangeListener fires on every successful reload.
type ChangeListener func(Snapshot)

// ThresholdLoader loads per-variant rules from YAML and watches the file.
type ThresholdLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewThresholdLoader reads the threshold file and starts watching it. A
// reload that fails validation keeps the previous snapshot.
func NewThresholdLoader(path string) (*ThresholdLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("threshold loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read threshold config failed: %w", err)
	}
	loader := &ThresholdLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("threshold reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot returns the current thresholds as a deep copy.
func (l *ThresholdLoader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current
// snapshot to it.
func (l *ThresholdLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("threshold listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *ThresholdLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("threshold listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *ThresholdLoader) reload() error {
	fileCfg, err := readThresholdFile(l.path)
	if err != nil {
		return err
	}
	for id, rules := range fileCfg.Playbooks {
		if err := validateRules(id, rules); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Rules:    fileCfg.Playbooks,
	}
	l.mu.Unlock()
	logger.Infof("threshold loader reloaded %d playbooks from %s", len(fileCfg.Playbooks), filepath.Base(l.path))
	return nil
}

func readThresholdFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read threshold config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse threshold config failed: %w", err)
	}
	return cfg, nil
}

func validateRules(id string, r playbook.Rules) error {
	inRange := func(name string, v int) error {
		if v < 0 || v > 100 {
			return fmt.Errorf("playbooks.%s.%s must be within [0,100], got %d", id, name, v)
		}
		return nil
	}
	checks := []struct {
		name string
		v    int
	}{
		{"biasFloor", r.BiasFloor},
		{"trendFloor", r.TrendFloor},
		{"orderflowNegativeThreshold", r.OrderflowNegativeThreshold},
		{"qualityFloor", r.QualityFloor},
		{"aBiasMin", r.ABiasMin},
		{"aTrendMin", r.ATrendMin},
		{"sentimentFloor", r.SentimentFloor},
		{"volatilityCeiling", r.VolatilityCeiling},
		{"volatilitySoftCeiling", r.VolatilitySoftCeiling},
	}
	for _, c := range checks {
		if err := inRange(c.name, c.v); err != nil {
			return err
		}
	}
	if r.EventWindowMinutes < 0 {
		return fmt.Errorf("playbooks.%s.eventWindowMinutes must be >= 0", id)
	}
	return nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{Version: s.Version, LoadedAt: s.LoadedAt}
	if s.Rules != nil {
		out.Rules = make(map[string]playbook.Rules, len(s.Rules))
		for k, v := range s.Rules {
			out.Rules[k] = v
		}
	}
	return out
}
