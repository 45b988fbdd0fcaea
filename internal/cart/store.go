package cart

import (
	"context"
	"sync"

	"github.com/gibbarosa/storefront/internal/domain"
)

// DefaultStorageKey is the name the storefront cart is persisted under
const DefaultStorageKey = "gibbarosa-store"

// UpdateFunc maps the stored lines to the lines to persist. Returning no lines deletes the cart.
type UpdateFunc func(lines []domain.CartLine) ([]domain.CartLine, error)

// Store persists cart lines under a key. Load returns nil lines when nothing is stored.
// Update is an atomic read-modify-write: concurrent updates of one key never overwrite each other.
type Store interface {
	Load(ctx context.Context, key string) ([]domain.CartLine, error)
	Save(ctx context.Context, key string, lines []domain.CartLine) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore keeps carts in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]domain.CartLine)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.carts[key]), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[key] = cloneLines(lines)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneLines(s.carts[key]))
	if err != nil {
		return err
	}
	if len(next) == 0 {
		delete(s.carts, key)
		return nil
	}
	s.carts[key] = cloneLines(next)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, key)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if lines == nil {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
