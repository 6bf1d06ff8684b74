package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/logger"
)

// FileStore persists the corpus as one JSON array of chunk records on local
// disk. It backs single-machine runs without Redis or Postgres, and it is
// the source side of corpus migration into a server backend. Rebuilds write
// a temp file and rename it over the old one, so a reader never opens a
// half-written corpus.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  *logger.Logger
}

func NewFileStore(path string, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &FileStore{path: path, log: log}
}

var _ corpus.Store = (*FileStore)(nil)

func (s *FileStore) ReplaceAll(_ context.Context, chunks []corpus.Chunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal corpus: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp corpus file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write corpus file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close corpus file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace corpus file: %w", err)
	}

	s.log.Info("corpus file written", "path", s.path, "chunks", len(chunks))
	return nil
}

func (s *FileStore) Load(_ context.Context) ([]corpus.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}

	var chunks []corpus.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse corpus file %s: %w", s.path, err)
	}
	return chunks, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove corpus file: %w", err)
	}
	return nil
}
