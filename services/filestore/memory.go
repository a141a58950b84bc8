package filesvc

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/siwesng/slims/core"
)

type memoryFile struct {
	content []byte
	savedAt time.Time
}

// MemoryStorage keeps files in memory for tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[string]memoryFile
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string]memoryFile)}
}

func (s *MemoryStorage) Save(_ context.Context, path string, content io.Reader) (string, error) {
	data, err := ioutil.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = memoryFile{content: data, savedAt: time.Now().UTC()}
	return MediaURLPrefix + path, nil
}

func (s *MemoryStorage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return ioutil.NopCloser(bytes.NewReader(f.content)), nil
}

func (s *MemoryStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *MemoryStorage) DeleteOlderThan(_ context.Context, prefix string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, f := range s.files {
		if strings.HasPrefix(path, prefix) && f.savedAt.Before(cutoff) {
			delete(s.files, path)
		}
	}
	return nil
}

// Len reports the number of stored files.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
