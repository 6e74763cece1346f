package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings holds the engine defaults applied when a run config omits a field,
// plus notifier selection. Loaded from a YAML file and hot-reloaded on change.
type Settings struct {
	Engine struct {
		DateWindowHours      int   `yaml:"date_window_hours"`
		AmountTolerance      int64 `yaml:"amount_tolerance"`
		ProgressEveryRecords int   `yaml:"progress_every_records"`
	} `yaml:"engine"`
	Notifier struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notifier"`
}

func defaultSettings() *Settings {
	s := &Settings{}
	s.Engine.DateWindowHours = 24
	s.Engine.AmountTolerance = 0
	s.Engine.ProgressEveryRecords = 100
	return s
}

// Loader reads the settings file and watches it for changes.
type Loader struct {
	path    string
	mu      sync.RWMutex
	current *Settings
	watcher *fsnotify.Watcher
}

// NewLoader performs the initial load. A missing file is not an error:
// built-in defaults are used until the file appears.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	s, err := l.load()
	if err != nil {
		if os.IsNotExist(err) {
			l.current = defaultSettings()
			return l, nil
		}
		return nil, err
	}
	l.current = s
	return l, nil
}

// Settings returns the latest loaded settings.
func (l *Loader) Settings() *Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch starts a goroutine that reloads the file on write/create events.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("settings watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("settings watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					s, err := l.load()
					if err != nil {
						// Keep serving the previous settings.
						continue
					}
					l.mu.Lock()
					l.current = s
					l.mu.Unlock()
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }, nil
}

func (l *Loader) load() (*Settings, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	s := defaultSettings()
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", l.path, err)
	}
	if s.Engine.DateWindowHours < 0 {
		return nil, fmt.Errorf("settings %s: date_window_hours must be >= 0", l.path)
	}
	if s.Engine.AmountTolerance < 0 {
		return nil, fmt.Errorf("settings %s: amount_tolerance must be >= 0", l.path)
	}
	if s.Engine.ProgressEveryRecords <= 0 {
		s.Engine.ProgressEveryRecords = 100
	}
	return s, nil
}
