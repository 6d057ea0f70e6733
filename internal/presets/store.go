// Package presets keeps named lists of Telegram user IDs in a TOML file so
// operators can reuse them across moderation actions.
package presets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	fileVersion     = 1
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = ".presets-*.toml"
)

var (
	// ErrInvalidName is returned for blank preset names.
	ErrInvalidName = errors.New("preset name is required")
	// ErrNoUserIDs is returned when a preset would hold no valid user IDs.
	ErrNoUserIDs = errors.New("preset needs at least one positive user id")
	// ErrNotFound is returned when deleting an unknown preset.
	ErrNotFound = errors.New("preset not found")
)

var (
	lockRegistryMu sync.Mutex
	pathLocks      = map[string]*sync.RWMutex{}
)

// Preset is a named list of user IDs.
type Preset struct {
	Name    string
	UserIDs []int64
}

type fileSchema struct {
	Version int           `toml:"version"`
	Presets []presetEntry `toml:"presets"`
}

type presetEntry struct {
	Name    string  `toml:"name"`
	UserIDs []int64 `toml:"user_ids"`
}

// Store reads and writes presets in one TOML file. Stores for the same path
// share a lock.
type Store struct {
	path string
	mu   *sync.RWMutex
}

// NewStore constructs a Store for path.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("presets path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve presets path: %w", err)
	}

	return &Store{path: abs, mu: lockForPath(abs)}, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLocks[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLocks[path] = mu
	return mu
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// List returns presets sorted by name, case-insensitively. Entries without a
// name or valid IDs are skipped; an unreadable file yields no presets.
func (s *Store) List(ctx context.Context) ([]Preset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return []Preset{}, nil
	}

	presets := make([]Preset, 0, len(file.Presets))
	for _, entry := range file.Presets {
		name := strings.TrimSpace(entry.Name)
		ids := normalizeIDs(entry.UserIDs)
		if name == "" || len(ids) == 0 {
			continue
		}
		presets = append(presets, Preset{Name: name, UserIDs: ids})
	}

	sort.SliceStable(presets, func(i, j int) bool {
		return strings.ToLower(presets[i].Name) < strings.ToLower(presets[j].Name)
	})

	return presets, nil
}

// Get returns the preset with the given name.
func (s *Store) Get(ctx context.Context, name string) (Preset, error) {
	name = strings.TrimSpace(name)
	presets, err := s.List(ctx)
	if err != nil {
		return Preset{}, err
	}

	for _, preset := range presets {
		if preset.Name == name {
			return preset, nil
		}
	}
	return Preset{}, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Save creates or replaces a preset. Non-positive and duplicate IDs are dropped.
func (s *Store) Save(ctx context.Context, name string, userIDs []int64) (Preset, error) {
	if err := ctx.Err(); err != nil {
		return Preset{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, ErrInvalidName
	}
	ids := normalizeIDs(userIDs)
	if len(ids) == 0 {
		return Preset{}, ErrNoUserIDs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return Preset{}, err
	}

	entry := presetEntry{Name: name, UserIDs: ids}
	replaced := false
	for i := range file.Presets {
		if strings.TrimSpace(file.Presets[i].Name) == name {
			file.Presets[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		file.Presets = append(file.Presets, entry)
	}

	if err := s.write(file); err != nil {
		return Preset{}, err
	}

	return Preset{Name: name, UserIDs: ids}, nil
}

// Delete removes the named preset.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	kept := file.Presets[:0]
	found := false
	for _, entry := range file.Presets {
		if strings.TrimSpace(entry.Name) == name {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	file.Presets = kept

	return s.write(file)
}

func (s *Store) read() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: fileVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read presets file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode presets file: %w", err)
	}
	if file.Version == 0 {
		file.Version = fileVersion
	}
	if file.Version != fileVersion {
		return fileSchema{}, fmt.Errorf("unsupported presets file version %d", file.Version)
	}

	return file, nil
}

// write replaces the file atomically through a temp file in the same directory.
func (s *Store) write(file fileSchema) error {
	file.Version = fileVersion

	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode presets file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace presets file: %w", err)
	}

	cleanup = false
	return nil
}

func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
