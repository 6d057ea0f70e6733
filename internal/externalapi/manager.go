package externalapi

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/logging"
)

const (
	defaultDebounce    = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Snapshot is an immutable view of the definitions at one point in time.
// Requests capture one snapshot at entry and use it throughout.
type Snapshot struct {
	defs     []Definition
	loadedAt time.Time
}

// NewSnapshot copies defs into a Snapshot.
func NewSnapshot(defs []Definition) *Snapshot {
	copied := make([]Definition, len(defs))
	copy(copied, defs)
	for i := range copied {
		copied[i].Kick.ChatIDs = append([]int64(nil), defs[i].Kick.ChatIDs...)
	}

	return &Snapshot{defs: copied, loadedAt: time.Now().UTC()}
}

// Definitions returns a copy of every definition.
func (s *Snapshot) Definitions() []Definition {
	if s == nil {
		return []Definition{}
	}

	out := make([]Definition, len(s.defs))
	copy(out, s.defs)
	return out
}

// OfType returns the definitions of the given type in file order.
func (s *Snapshot) OfType(apiType string) []Definition {
	out := make([]Definition, 0)
	if s == nil {
		return out
	}

	for _, def := range s.defs {
		if def.IsType(apiType) {
			out = append(out, def)
		}
	}
	return out
}

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Manager owns the definition file and publishes snapshots of it.
type Manager struct {
	path     string
	logger   *logrus.Entry
	debounce time.Duration

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewManager constructs a Manager for path. Call Load before Snapshot.
func NewManager(path string, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Manager{
		path:     path,
		logger:   logger,
		debounce: defaultDebounce,
		snapshot: NewSnapshot(nil),
	}
}

// Path returns the watched file path.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) parse() ([]Definition, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Definition{}, nil
		}
		return nil, fmt.Errorf("read definitions: %w", err)
	}

	return Parse(data)
}

// Load parses the file and replaces the current snapshot. A missing file
// yields an empty snapshot. On error the previous snapshot is kept.
func (m *Manager) Load() (*Snapshot, error) {
	if m == nil {
		return nil, errors.New("external api manager is not initialized")
	}

	defs, err := m.parse()
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshot(defs)
	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()

	m.logger.WithFields(logging.Fields{
		"event":       "external_apis_loaded",
		"path":        m.path,
		"definitions": len(defs),
	}).Info("loaded external api definitions")

	return snapshot, nil
}

// Snapshot returns the current immutable snapshot.
func (m *Manager) Snapshot() *Snapshot {
	if m == nil {
		return NewSnapshot(nil)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Watch reloads the file whenever it changes until ctx is done. Parse failures
// are logged and the last good snapshot stays active.
func (m *Manager) Watch(ctx context.Context) error {
	if m == nil {
		return errors.New("external api manager is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(m.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := m.Load(); err != nil {
				m.logger.WithFields(logging.Fields{
					"event": "external_apis_reload_failed",
					"path":  m.path,
				}).WithError(err).Warn("keeping previous external api definitions")
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	wait := func() bool {
		delay := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff = min(backoff*2, restartBackoffMax)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			m.logger.WithError(err).WithField("dir", dir).Warn("external api watch init failed")
			if !wait() {
				return nil
			}
			continue
		}

		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			m.logger.WithError(err).WithField("dir", dir).Warn("external api watch add failed")
			if !wait() {
				return nil
			}
			continue
		}

		backoff = restartBackoffBase
		m.logger.WithFields(logging.Fields{
			"event": "external_apis_watching",
			"dir":   dir,
			"file":  file,
		}).Debug("watching external api definitions")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = watcher.Close()
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					broken = true
					break
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					schedule()
					continue
				}
				m.logger.WithError(err).WithField("dir", dir).Warn("external api watch error")
			}
		}

		_ = watcher.Close()
		if !wait() {
			return nil
		}
	}
}
