package luzidos

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryDocumentStore is an in-memory implementation used in tests and the
// local harness. It implements DocumentCAS, so locks taken against it are
// true mutual exclusion.
type MemoryDocumentStore struct {
	mutex     sync.RWMutex
	documents map[string][]byte
}

// NewMemoryDocumentStore creates an empty in-memory store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{documents: map[string][]byte{}}
}

func (s *MemoryDocumentStore) GetJSON(ctx context.Context, path string, v any) error {
	data, err := s.GetObject(ctx, path)
	if err != nil {
		return err
	}
	return unmarshalDocument(data, v)
}

func (s *MemoryDocumentStore) PutJSON(ctx context.Context, path string, v any) error {
	data, err := marshalDocument(v)
	if err != nil {
		return err
	}
	return s.PutObject(ctx, path, data)
}

func (s *MemoryDocumentStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	data, ok := s.documents[path]
	if !ok {
		return nil, NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", path))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryDocumentStore) PutObject(ctx context.Context, path string, data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.documents[path] = stored
	return nil
}

func (s *MemoryDocumentStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.documents[path]
	return ok, nil
}

func (s *MemoryDocumentStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var paths []string
	for path := range s.documents {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MemoryDocumentStore) Copy(ctx context.Context, src, dst string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	data, ok := s.documents[src]
	if !ok {
		return NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", src))
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.documents[dst] = stored
	return nil
}

// CompareAndSwapJSON writes v at path only if the current document bytes
// equal previous (nil previous means the document must be absent).
func (s *MemoryDocumentStore) CompareAndSwapJSON(ctx context.Context, path string, v any, previous []byte) (bool, error) {
	data, err := marshalDocument(v)
	if err != nil {
		return false, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	current, exists := s.documents[path]
	if previous == nil {
		if exists {
			return false, nil
		}
	} else if !exists || !bytes.Equal(current, previous) {
		return false, nil
	}
	s.documents[path] = data
	return true, nil
}
