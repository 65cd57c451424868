package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/storage"
)

// document is the on-disk layout.
type document struct {
	Version storage.Version `json:"version"`
	Popups  core.Collection `json:"popups"`
}

// Store keeps the collection in a single JSON file. Version checks are
// serialized per process; separate processes sharing a file are not.
type Store struct {
	mu       sync.Mutex
	filePath string
}

func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

func (s *Store) Load(ctx context.Context) (core.Collection, storage.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, 0, err
	}
	return doc.Popups, doc.Version, nil
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return document{Popups: core.Collection{}}, nil
		}
		return document{}, core.StorageError("read file", err)
	}
	if len(data) == 0 {
		return document{Popups: core.Collection{}}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Files written by older tools hold a bare array.
		var bare core.Collection
		if err2 := json.Unmarshal(data, &bare); err2 == nil {
			return document{Version: 1, Popups: bare}, nil
		}
		return document{}, core.StorageError("unmarshal data", err)
	}
	if doc.Popups == nil {
		doc.Popups = core.Collection{}
	}
	return doc, nil
}

func (s *Store) Save(ctx context.Context, popups core.Collection, expected storage.Version) (storage.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return 0, err
	}
	if current.Version != expected {
		return 0, &core.ConflictError{Expected: int64(expected), Current: int64(current.Version)}
	}
	if popups == nil {
		popups = core.Collection{}
	}
	doc := document{Version: expected + 1, Popups: popups}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, core.StorageError("marshal data", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, core.StorageError("create storage directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.filePath)+".*")
	if err != nil {
		return 0, core.StorageError("create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, core.StorageError("write file", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, core.StorageError("write file", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		return 0, core.StorageError(fmt.Sprintf("replace %s", s.filePath), err)
	}
	return doc.Version, nil
}

func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
