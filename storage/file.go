package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// FileStore keeps every item in one JSON document. Each write replaces the
// document atomically, so a crash leaves either the old or the new snapshot.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore prepares a store at path, creating parent directories
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = filepath.Join("data", "meditempo.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, false, err
	}

	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileStore) SetItems(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range items {
		doc[k] = string(v)
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	if err := atomic.WriteFile(f.path, bytes.NewReader(encoded)); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

// read loads the document; a missing file is an empty document
func (f *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	doc := make(map[string]string)
	if len(bytes.TrimSpace(raw)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return doc, nil
}
