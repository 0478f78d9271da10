package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// MemoryStore keeps records in process memory. Records are copied on the way
// in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[resource.Kind]*resource.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]map[resource.Kind]*resource.Record{},
	}
}

func (s *MemoryStore) Get(_ context.Context, namespace string, kind resource.Kind) (*resource.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[namespace][kind].Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, record *resource.Record) error {
	if record == nil || record.Namespace == "" {
		return errors.ErrNamespaceEmpty
	}
	if !record.Kind.Valid() {
		return fmt.Errorf("%w: %s", errors.ErrUnknownKind, record.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.records[record.Namespace]
	if !ok {
		ns = map[resource.Kind]*resource.Record{}
		s.records[record.Namespace] = ns
	}
	ns[record.Kind] = record.Clone()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, namespace string, kind resource.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records[namespace], kind)
	return nil
}

func (s *MemoryStore) List(_ context.Context, namespace string) ([]*resource.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*resource.Record
	for _, kind := range resource.Kinds {
		if r, ok := s.records[namespace][kind]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}
