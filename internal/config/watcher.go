package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher re-reads the config file on change and hands validated snapshots
// to subscribers. Invalid reloads are logged and dropped; the last good
// config stays in effect.
type Watcher struct {
	logger  *zap.Logger
	viper   *viper.Viper
	mu      sync.RWMutex
	current *Config
	onSwap  []func(*Config)
}

// NewWatcher starts watching the given config file. The initial config must
// already have passed Load.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	w := &Watcher{
		logger:  logger.Named("config-watcher"),
		viper:   v,
		current: initial,
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		w.reload(e)
	})
	v.WatchConfig()
	return w, nil
}

// Current returns the most recent valid config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnSwap registers a callback invoked after each successful reload.
func (w *Watcher) OnSwap(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSwap = append(w.onSwap, fn)
}

func (w *Watcher) reload(e fsnotify.Event) {
	var cfg Config
	if err := w.viper.Unmarshal(&cfg); err != nil {
		w.logger.Error("config reload failed to unmarshal", zap.String("file", e.Name), zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error("config reload rejected", zap.String("file", e.Name), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = &cfg
	callbacks := make([]func(*Config), len(w.onSwap))
	copy(callbacks, w.onSwap)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("file", e.Name))
	for _, fn := range callbacks {
		fn(&cfg)
	}
}
