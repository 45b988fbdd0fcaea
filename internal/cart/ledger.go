package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
)

// ErrAlreadyInCart is returned by AddItem under PolicySingleUnit when the product is already present
var ErrAlreadyInCart = errors.New("product already in cart")

// Policy decides what re-adding a product already in the cart does
type Policy int

const (
	// PolicyIncrement bumps the existing line's quantity by one
	PolicyIncrement Policy = iota
	// PolicySingleUnit keeps one unit per product; re-adding is a no-op
	PolicySingleUnit
)

func (p Policy) String() string {
	switch p {
	case PolicySingleUnit:
		return "single_unit"
	default:
		return "increment"
	}
}

// ParsePolicy maps a config value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "increment":
		return PolicyIncrement, nil
	case "single_unit", "single-unit", "single":
		return PolicySingleUnit, nil
	default:
		return PolicyIncrement, fmt.Errorf("unknown cart policy %q", s)
	}
}

// Ledger is one shopper's cart. Every mutation is written through to the store.
type Ledger struct {
	mu     sync.Mutex
	key    string
	store  Store
	policy Policy
	lines  []domain.CartLine
	logger *zap.Logger
}

// Open rehydrates the cart stored under key
func Open(ctx context.Context, store Store, key string, policy Policy, logger *zap.Logger) (*Ledger, error) {
	if key == "" {
		key = DefaultStorageKey
	}

	stored, err := store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	lines, err := NormalizeLines(stored)
	if err != nil {
		return nil, fmt.Errorf("rehydrate cart %s: %w", key, err)
	}

	return &Ledger{
		key:    key,
		store:  store,
		policy: policy,
		lines:  lines,
		logger: logger,
	}, nil
}

// Apply runs fn on the cart stored under key as one atomic update of the store.
// fn sees a ledger staged in memory; its final lines are what gets persisted.
// When fn fails nothing is written.
func Apply(ctx context.Context, store Store, key string, policy Policy, logger *zap.Logger, fn func(*Ledger) error) (*Ledger, error) {
	if key == "" {
		key = DefaultStorageKey
	}

	var staged *Ledger
	err := store.Update(ctx, key, func(stored []domain.CartLine) ([]domain.CartLine, error) {
		lines, err := NormalizeLines(stored)
		if err != nil {
			return nil, fmt.Errorf("rehydrate cart %s: %w", key, err)
		}
		// rebuilt on every attempt; the store may retry on conflicting writes
		staged = &Ledger{
			key:    key,
			store:  NewMemoryStore(),
			policy: policy,
			lines:  lines,
			logger: logger,
		}
		if err := fn(staged); err != nil {
			return nil, err
		}
		return staged.Lines(), nil
	})
	if err != nil {
		return nil, err
	}

	staged.store = store
	return staged, nil
}

// AddItem puts one unit of product in the cart
func (l *Ledger) AddItem(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return fmt.Errorf("add item: product id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := cloneLines(l.lines)
	if i := indexOf(next, product.ID); i >= 0 {
		if l.policy == PolicySingleUnit {
			return ErrAlreadyInCart
		}
		next[i].Quantity++
	} else {
		next = append(next, domain.CartLine{ProductID: product.ID, Product: product, Quantity: 1})
	}

	normalized, err := NormalizeLines(next)
	if err != nil {
		return err
	}
	return l.commit(ctx, normalized)
}

// RemoveItem takes one unit of the product out, dropping the line at zero.
// Removing a product that is not in the cart is a no-op.
func (l *Ledger) RemoveItem(ctx context.Context, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.lines, productID)
	if i < 0 {
		return nil
	}

	next := cloneLines(l.lines)
	if next[i].Quantity > 1 {
		next[i].Quantity--
	} else {
		next = append(next[:i], next[i+1:]...)
	}
	return l.commit(ctx, next)
}

// Clear empties the cart and removes it from the store
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("clear cart %s: %w", l.key, err)
	}
	l.lines = nil
	return nil
}

// TotalPrice sums unit price times quantity. A product without a price in currency counts as zero.
func (l *Ledger) TotalPrice(currency domain.Currency) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, line := range l.lines {
		price, ok := line.Product.UnitPrice(currency)
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// ItemCount returns the quantity held for productID
func (l *Ledger) ItemCount(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := indexOf(l.lines, productID); i >= 0 {
		return l.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the cart lines in insertion order
func (l *Ledger) Lines() []domain.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := cloneLines(l.lines)
	if out == nil {
		return []domain.CartLine{}
	}
	return out
}

// Policy reports the re-add policy the ledger was opened with
func (l *Ledger) Policy() Policy {
	return l.policy
}

func (l *Ledger) commit(ctx context.Context, next []domain.CartLine) error {
	if err := l.store.Save(ctx, l.key, next); err != nil {
		l.logger.Error("Failed to persist cart",
			zap.String("key", l.key),
			zap.Error(err),
		)
		return fmt.Errorf("save cart %s: %w", l.key, err)
	}
	l.lines = next
	return nil
}

func indexOf(lines []domain.CartLine, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
