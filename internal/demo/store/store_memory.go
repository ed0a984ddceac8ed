package store

import (
	"context"
	"sync"

	"decentrakyc/internal/demo/models"
	"decentrakyc/pkg/platform/sentinel"
)

// InMemoryStore keeps serialized records in a map so round-trips go through
// the same codec as the durable backends.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context, profile string) (*models.DemoUser, error) {
	s.mu.RLock()
	data, ok := s.records[profile]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return Decode(data)
}

func (s *InMemoryStore) Save(_ context.Context, profile string, user *models.DemoUser) error {
	if err := requireProfile(profile); err != nil {
		return err
	}
	data, err := Encode(user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[profile] = data
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, profile)
	return nil
}

// Put stores raw bytes for profile. Tests use it to plant corrupt records.
func (s *InMemoryStore) Put(profile string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[profile] = append([]byte(nil), data...)
}

// Raw returns the stored bytes for profile.
func (s *InMemoryStore) Raw(profile string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[profile]
	return data, ok
}
