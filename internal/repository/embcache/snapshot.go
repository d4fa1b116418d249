package embcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/kailas-cloud/knowmaps/internal/db"
)

// snapshot is the durable document layout shared by every backend.
type snapshot struct {
	Embeddings map[string][]float32 `json:"embeddings"`
}

func encodeSnapshot(entries map[string][]float32) ([]byte, error) {
	data, err := json.Marshal(snapshot{Embeddings: entries})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (map[string][]float32, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Embeddings == nil {
		s.Embeddings = make(map[string][]float32)
	}
	return s.Embeddings, nil
}

// FileStore keeps the snapshot in a single JSON file replaced via rename.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed snapshot store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file is an empty cache.
func (f *FileStore) Load(_ context.Context) (map[string][]float32, error) {
	data, err := os.ReadFile(filepath.Clean(f.path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]float32{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return decodeSnapshot(data)
}

// Save writes the snapshot to a temp file in the same directory and renames it into place.
func (f *FileStore) Save(_ context.Context, entries map[string][]float32) error {
	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // sync error takes precedence
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// kvStore is the consumer interface for the KV-backed snapshot (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KVStore keeps the snapshot as a single value under one key.
type KVStore struct {
	kv  kvStore
	key string
}

// NewKVStore creates a KV-backed snapshot store.
func NewKVStore(kv kvStore, key string) *KVStore {
	return &KVStore{kv: kv, key: key}
}

// Load reads the snapshot. A missing key is an empty cache.
func (s *KVStore) Load(ctx context.Context) (map[string][]float32, error) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return map[string][]float32{}, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// Save replaces the whole snapshot value in one write.
func (s *KVStore) Save(ctx context.Context, entries map[string][]float32) error {
	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
