package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gibbarosa/storefront/internal/domain"
)

// FileStore writes each cart as a JSON file in a directory
type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

type fileCart struct {
	State struct {
		Items []domain.CartLine `json:"items"`
	} `json:"state"`
	Version int `json:"version"`
}

// ErrInvalidKey is returned for cart keys that are not a plain file name
var ErrInvalidKey = errors.New("invalid cart key")

func (s *FileStore) Load(_ context.Context, key string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key)
}

func (s *FileStore) Save(_ context.Context, key string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(key, lines)
}

// Update is atomic within one process; a cart directory must not be shared between servers
func (s *FileStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load(key)
	if err != nil {
		return err
	}
	next, err := fn(lines)
	if err != nil {
		return err
	}
	if len(next) == 0 {
		return s.remove(key)
	}
	return s.save(key, next)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(key)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load(key string) ([]domain.CartLine, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}

	var fc fileCart
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("unmarshal cart file: %w", err)
	}
	return fc.State.Items, nil
}

func (s *FileStore) save(key string, lines []domain.CartLine) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	var fc fileCart
	fc.State.Items = lines
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal cart file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cart file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}

func (s *FileStore) remove(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cart file: %w", err)
	}
	return nil
}

// path maps key to its file. Keys with separators are refused rather than
// trimmed, so two different keys can never share a file.
func (s *FileStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || filepath.Base(key) != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}
