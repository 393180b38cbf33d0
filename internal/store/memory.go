package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]Mapping
	global   *bool
	cameras  map[string]bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[string]Mapping),
		cameras:  make(map[string]bool),
	}
}

func (s *MemoryStore) Init(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func (s *MemoryStore) Mappings(context.Context) (map[string]Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.mappings), nil
}

func (s *MemoryStore) Mapping(_ context.Context, uid string) (Mapping, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[uid]
	return m, ok, nil
}

func (s *MemoryStore) PutMapping(_ context.Context, m Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[m.MicroID] = m
	return nil
}

func (s *MemoryStore) DeleteMapping(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mappings[uid]; !ok {
		return notFound(uid)
	}
	delete(s.mappings, uid)
	return nil
}

func (s *MemoryStore) TrackingFlags(context.Context) (TrackingFlags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TrackingFlags{
		GlobalEnabled: s.global != nil && *s.global,
		Cameras:       maps.Clone(s.cameras),
	}, nil
}

func (s *MemoryStore) SetCameraTracking(_ context.Context, cameraIP string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras[cameraIP] = enabled
	return nil
}

func (s *MemoryStore) SetGlobalTracking(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = &enabled
	return nil
}
