package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
)

const filePermissions = 0o644

// JSONStore keeps the mapping and the settings in two JSON files:
//
//	mapping:  {"<uid>": {"micro_id": "<uid>", "camera_ip": "<ip>", "number": 12}}
//	settings: {"<camera ip>": true, "tracking_enabled": true}
//
// Writes replace the file atomically. A mutex serializes writers of this process.
type JSONStore struct {
	mappingPath  string
	settingsPath string

	mu sync.Mutex
}

// NewJSONStore returns a store over the two files; nothing is read yet.
func NewJSONStore(mappingPath, settingsPath string) *JSONStore {
	return &JSONStore{mappingPath: mappingPath, settingsPath: settingsPath}
}

// Init creates missing files as {}.
func (s *JSONStore) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.mappingPath, s.settingsPath} {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fileError(err, path, "stat")
		}
		if err := writeFileAtomic(path, []byte("{}\n")); err != nil {
			return err
		}
		GetLogger().Info("created empty store file", logger.String("path", path))
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) Mappings(context.Context) (map[string]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMappings()
}

func (s *JSONStore) Mapping(ctx context.Context, uid string) (Mapping, bool, error) {
	mappings, err := s.Mappings(ctx)
	if err != nil {
		return Mapping{}, false, err
	}
	m, ok := mappings[uid]
	return m, ok, nil
}

func (s *JSONStore) PutMapping(_ context.Context, m Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mappings, err := s.readMappings()
	if err != nil {
		return err
	}
	mappings[m.MicroID] = m
	return writeJSON(s.mappingPath, mappings)
}

func (s *JSONStore) DeleteMapping(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mappings, err := s.readMappings()
	if err != nil {
		return err
	}
	if _, ok := mappings[uid]; !ok {
		return notFound(uid)
	}
	delete(mappings, uid)
	return writeJSON(s.mappingPath, mappings)
}

func (s *JSONStore) TrackingFlags(context.Context) (TrackingFlags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readSettings()
	if err != nil {
		return TrackingFlags{}, err
	}

	flags := TrackingFlags{Cameras: make(map[string]bool, len(raw))}
	for key, value := range raw {
		if key == GlobalTrackingKey {
			flags.GlobalEnabled = value
			continue
		}
		flags.Cameras[key] = value
	}
	return flags, nil
}

func (s *JSONStore) SetCameraTracking(_ context.Context, cameraIP string, enabled bool) error {
	return s.setFlag(cameraIP, enabled)
}

func (s *JSONStore) SetGlobalTracking(_ context.Context, enabled bool) error {
	return s.setFlag(GlobalTrackingKey, enabled)
}

func (s *JSONStore) setFlag(key string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readSettings()
	if err != nil {
		return err
	}
	raw[key] = enabled
	return writeJSON(s.settingsPath, raw)
}

// readMappings accepts the object form and the legacy bare number form;
// legacy entries have no camera.
func (s *JSONStore) readMappings() (map[string]Mapping, error) {
	var raw map[string]json.RawMessage
	if err := readJSON(s.mappingPath, &raw); err != nil {
		return nil, err
	}

	mappings := make(map[string]Mapping, len(raw))
	for uid, value := range raw {
		value = bytes.TrimSpace(value)
		var m Mapping
		if len(value) > 0 && value[0] == '{' {
			if err := json.Unmarshal(value, &m); err != nil {
				return nil, decodeError(err, s.mappingPath, uid)
			}
		} else {
			number, err := strconv.Atoi(string(bytes.Trim(value, `"`)))
			if err != nil {
				return nil, decodeError(err, s.mappingPath, uid)
			}
			m.Number = number
		}
		if m.MicroID == "" {
			m.MicroID = uid
		}
		mappings[uid] = m
	}
	return mappings, nil
}

// readSettings ignores non-boolean values.
func (s *JSONStore) readSettings() (map[string]bool, error) {
	var raw map[string]any
	if err := readJSON(s.settingsPath, &raw); err != nil {
		return nil, err
	}
	flags := make(map[string]bool, len(raw))
	for key, value := range raw {
		if b, ok := value.(bool); ok {
			flags[key] = b
		}
	}
	return flags, nil
}

// readJSON treats a missing or empty file as {}.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data = nil
	} else if err != nil {
		return fileError(err, path, "read")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return decodeError(err, path, "")
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New(err).Component(component).Category(errors.CategoryFileIO).Build()
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic writes to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileError(err, dir, "mkdir")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fileError(err, path, "create temp")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fileError(err, tmpName, "write")
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		_ = tmp.Close()
		return fileError(err, tmpName, "chmod")
	}
	if err := tmp.Close(); err != nil {
		return fileError(err, tmpName, "close")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fileError(err, path, "rename")
	}
	return nil
}

func fileError(err error, path, op string) error {
	return errors.New(fmt.Errorf("%s %s: %w", op, path, err)).
		Component(component).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}

func decodeError(err error, path, key string) error {
	return errors.New(fmt.Errorf("parse %s: %w", path, err)).
		Component(component).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Context("key", key).
		Build()
}
