package luzidos

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileDocumentStore persists documents under a root directory, mapping store
// paths to file paths. It backs the CLI and local development. The CAS
// capability is guarded by a process-local mutex, so mutual exclusion holds
// within one process only.
type FileDocumentStore struct {
	rootDir string
	mutex   sync.Mutex
}

// NewFileDocumentStore creates a file-based store rooted at rootDir.
func NewFileDocumentStore(rootDir string) (*FileDocumentStore, error) {
	if rootDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		rootDir = filepath.Join(homeDir, ".luzidos", "documents")
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", rootDir, err)
	}
	return &FileDocumentStore{rootDir: rootDir}, nil
}

func (s *FileDocumentStore) filePath(path string) string {
	return filepath.Join(s.rootDir, filepath.FromSlash(path))
}

func (s *FileDocumentStore) GetJSON(ctx context.Context, path string, v any) error {
	data, err := s.GetObject(ctx, path)
	if err != nil {
		return err
	}
	return unmarshalDocument(data, v)
}

func (s *FileDocumentStore) PutJSON(ctx context.Context, path string, v any) error {
	data, err := marshalDocument(v)
	if err != nil {
		return err
	}
	return s.PutObject(ctx, path, data)
}

func (s *FileDocumentStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.filePath(path))
	if os.IsNotExist(err) {
		return nil, NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", path))
	}
	if err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return data, nil
}

func (s *FileDocumentStore) PutObject(ctx context.Context, path string, data []byte) error {
	target := s.filePath(path)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	return nil
}

func (s *FileDocumentStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.filePath(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, WrapError(ErrorTypeTransientIO, err)
	}
	return true, nil
}

func (s *FileDocumentStore) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.rootDir, p)
		if err != nil {
			return err
		}
		storePath := filepath.ToSlash(rel)
		if strings.HasPrefix(storePath, prefix) {
			paths = append(paths, storePath)
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *FileDocumentStore) Copy(ctx context.Context, src, dst string) error {
	data, err := s.GetObject(ctx, src)
	if err != nil {
		return err
	}
	return s.PutObject(ctx, dst, data)
}

// CompareAndSwapJSON implements DocumentCAS for in-process callers.
func (s *FileDocumentStore) CompareAndSwapJSON(ctx context.Context, path string, v any, previous []byte) (bool, error) {
	data, err := marshalDocument(v)
	if err != nil {
		return false, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	current, err := s.GetObject(ctx, path)
	switch {
	case IsNotFound(err):
		if previous != nil {
			return false, nil
		}
	case err != nil:
		return false, err
	case previous == nil:
		return false, nil
	case !bytes.Equal(current, previous):
		return false, nil
	}
	if err := s.PutObject(ctx, path, data); err != nil {
		return false, err
	}
	return true, nil
}
