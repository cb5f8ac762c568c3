package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ConfigManager loads and persists the run configuration.
type ConfigManager struct {
	fs   afero.Fs
	path string

	mu     sync.RWMutex
	cfg    Config
	loaded bool
}

// NewConfigManager manages the YAML file at path on fs.  Call Load before Get.
func NewConfigManager(fs afero.Fs, path string) *ConfigManager {
	return &ConfigManager{fs: fs, path: path}
}

// Load reads and validates the configuration file.  Loading twice is a
// no-op.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.loaded {
		return nil
	}
	data, err := afero.ReadFile(cm.fs, cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config %s not found; create one with write-config", cm.path)
		}
		return fmt.Errorf("unable to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", cm.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cm.path, err)
	}
	cm.cfg = cfg
	cm.loaded = true
	return nil
}

// Save writes the configuration through a temporary file and a rename.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := yaml.Marshal(cm.cfg)
	if err != nil {
		return err
	}
	tmp := cm.path + ".tmp"
	if err := afero.WriteFile(cm.fs, tmp, data, 0o600); err != nil {
		return err
	}
	return cm.fs.Rename(tmp, cm.path)
}

// Get returns a copy of the configuration.  The LED and button sections are
// shared; treat them as read only.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// Update applies fn under the write lock and persists the result.
func (cm *ConfigManager) Update(fn func(*Config) error) error {
	cm.mu.Lock()
	if err := fn(&cm.cfg); err != nil {
		cm.mu.Unlock()
		return err
	}
	cm.loaded = true
	// Save takes the read lock.
	cm.mu.Unlock()
	return cm.Save()
}

// WriteSample stores SampleConfig.  An existing file is kept unless force
// is set.
func (cm *ConfigManager) WriteSample(force bool) error {
	exists, err := afero.Exists(cm.fs, cm.path)
	if err != nil {
		return err
	}
	if exists && !force {
		return fmt.Errorf("config file %s already exists; use --force to overwrite", cm.path)
	}
	return cm.Update(func(c *Config) error {
		*c = SampleConfig()
		return nil
	})
}
