package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/imgharvest/internal/types"
)

// JSONStore keeps the state document in a human-readable JSON file.
type JSONStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStore creates a JSON file store at path.
func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	return &JSONStore{
		path:   path,
		logger: logger.With("component", "json_store"),
	}
}

func (s *JSONStore) Name() string { return "json" }

// Load implements StateStore. A missing file is initialised with the empty
// document so that later runs always find one.
func (s *JSONStore) Load(ctx context.Context) (*types.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		store = types.NewStore()
		if err := s.write(store); err != nil {
			return nil, err
		}
		s.logger.Info("state file initialised", "path", s.path)
		return store, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("state loaded", "path", s.path, "posts", len(store.Posts))
	return store, nil
}

// Snapshot implements StateStore. A missing file reads as the empty
// document and is left missing.
func (s *JSONStore) Snapshot(ctx context.Context) (*types.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return types.NewStore(), nil
	}
	return store, err
}

// read decodes the state file. A missing file is reported as os.ErrNotExist.
func (s *JSONStore) read() (*types.Store, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("read %s: %w", s.path, err)}
	}

	var store types.Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("decode %s: %w", s.path, err)}
	}
	store.Normalize()
	return &store, nil
}

// Save implements StateStore by rewriting the whole file atomically.
func (s *JSONStore) Save(ctx context.Context, store *types.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(store); err != nil {
		return err
	}
	s.logger.Info("state saved", "path", s.path, "posts", len(store.Posts))
	return nil
}

func (s *JSONStore) Close() error { return nil }

// write encodes store with four-space indentation and literal non-ASCII
// text, then swaps it into place via temp file + rename.
func (s *JSONStore) write(store *types.Store) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(store); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode state: %w", err)}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create state dir: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("close temp file: %w", err)}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("rename state file: %w", err)}
	}
	return nil
}
