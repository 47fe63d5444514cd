// internal/preferences/store.go
package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Known preference keys
const (
	KeyWebURL    = "webUrl"
	KeyIP        = "ip"
	KeyBTAddress = "btAddress"
	KeyBTName    = "btName"
)

// Preferences is a flat JSON object; unknown keys are kept as-is
type Preferences map[string]interface{}

// String returns the value of key when it is a string
func (p Preferences) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func (p Preferences) WebURL() string    { return p.String(KeyWebURL) }
func (p Preferences) IP() string        { return p.String(KeyIP) }
func (p Preferences) BTAddress() string { return p.String(KeyBTAddress) }
func (p Preferences) BTName() string    { return p.String(KeyBTName) }

// Store persists preferences
type Store interface {
	Read(ctx context.Context) Preferences
	Write(ctx context.Context, partial Preferences) error
}

// FileStore keeps preferences in a primary JSON file and mirrors every
// successful write to a second, user-visible path.
type FileStore struct {
	primary string
	mirror  string
	mutex   sync.Mutex
	logger  *zap.Logger
}

// NewFileStore creates a file store. An empty mirror path disables mirroring.
func NewFileStore(primary, mirror string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		primary: primary,
		mirror:  mirror,
		logger: logger.With(
			zap.String("component", "preferences"),
			zap.String("path", primary),
		),
	}
}

// Read returns the stored preferences, or an empty set when the file is
// missing or unreadable.
func (s *FileStore) Read(ctx context.Context) Preferences {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.read()
}

func (s *FileStore) read() Preferences {
	data, err := os.ReadFile(s.primary)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read preferences", zap.Error(err))
		}
		return Preferences{}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Preferences{}
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil || prefs == nil {
		s.logger.Warn("Ignoring corrupt preferences file", zap.Error(err))
		return Preferences{}
	}
	return prefs
}

// Write merges partial over the stored preferences, rewrites the primary
// file atomically and then mirrors it. Mirror failures are only logged.
func (s *FileStore) Write(ctx context.Context, partial Preferences) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	next := s.read()
	for k, v := range partial {
		next[k] = v
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if err := writeFileAtomic(s.primary, data); err != nil {
		s.logger.Error("Failed to write preferences", zap.Error(err))
		return fmt.Errorf("failed to write preferences: %w", err)
	}

	s.writeMirror(data)
	return nil
}

// MirrorOnBoot copies an existing primary file to the mirror path once
func (s *FileStore) MirrorOnBoot(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.primary)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("No preferences yet, will mirror on first save")
		} else {
			s.logger.Warn("Startup preferences mirror failed", zap.Error(err))
		}
		return
	}
	s.writeMirror(data)
}

// SetWebURL normalizes and stores the page URL shown by the shell
func (s *FileStore) SetWebURL(ctx context.Context, raw string) (string, error) {
	url := NormalizeWebURL(raw)
	if url == "" {
		return "", fmt.Errorf("web URL is empty")
	}
	if err := s.Write(ctx, Preferences{KeyWebURL: url}); err != nil {
		return "", err
	}
	return url, nil
}

// NormalizeWebURL trims raw and prepends https:// when it has no scheme
func NormalizeWebURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		url = "https://" + url
	}
	return url
}

func (s *FileStore) writeMirror(data []byte) {
	if s.mirror == "" {
		return
	}
	if err := writeFileAtomic(s.mirror, data); err != nil {
		s.logger.Warn("Preferences mirror failed",
			zap.String("mirror", s.mirror),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Preferences mirrored", zap.String("mirror", s.mirror))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
