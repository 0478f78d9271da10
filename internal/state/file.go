package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

const fileVersion = 1

var validNamespace = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type document struct {
	Version   int                                `json:"version"`
	Namespace string                             `json:"namespace"`
	Resources map[resource.Kind]*resource.Record `json:"resources"`
}

// FileStore keeps one JSON document per namespace in a directory. Writes go
// to a temporary file that is synced and renamed over the document.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(namespace string) (string, error) {
	if namespace == "" {
		return "", errors.ErrNamespaceEmpty
	}
	if !validNamespace.MatchString(namespace) {
		return "", fmt.Errorf("invalid namespace %q", namespace)
	}
	return filepath.Join(s.dir, namespace+".json"), nil
}

func (s *FileStore) Get(_ context.Context, namespace string, kind resource.Kind) (*resource.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read(namespace)
	if err != nil {
		return nil, err
	}
	return doc.Resources[kind].Clone(), nil
}

func (s *FileStore) Put(_ context.Context, record *resource.Record) error {
	if record == nil {
		return errors.ErrNamespaceEmpty
	}
	if !record.Kind.Valid() {
		return fmt.Errorf("%w: %s", errors.ErrUnknownKind, record.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(record.Namespace)
	if err != nil {
		return err
	}
	doc.Resources[record.Kind] = record.Clone()
	return s.write(doc)
}

func (s *FileStore) Remove(_ context.Context, namespace string, kind resource.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(namespace)
	if err != nil {
		return err
	}
	if _, ok := doc.Resources[kind]; !ok {
		return nil
	}
	delete(doc.Resources, kind)
	return s.write(doc)
}

func (s *FileStore) List(_ context.Context, namespace string) ([]*resource.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read(namespace)
	if err != nil {
		return nil, err
	}

	var out []*resource.Record
	for _, kind := range resource.Kinds {
		if r, ok := doc.Resources[kind]; ok {
			out = append(out, r.Clone())
		}
	}
	for kind, r := range doc.Resources {
		if !kind.Valid() {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *FileStore) read(namespace string) (*document, error) {
	path, err := s.path(namespace)
	if err != nil {
		return nil, err
	}

	doc := &document{
		Version:   fileVersion,
		Namespace: namespace,
		Resources: map[resource.Kind]*resource.Record{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	if doc.Resources == nil {
		doc.Resources = map[resource.Kind]*resource.Record{}
	}
	for kind, r := range doc.Resources {
		if r != nil && r.Kind == "" {
			r.Kind = kind
		}
	}
	return doc, nil
}

func (s *FileStore) write(doc *document) error {
	path, err := s.path(doc.Namespace)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+doc.Namespace+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace state %s: %w", path, err)
	}
	return nil
}
