package service

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/cart"
	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/repository"
	"github.com/gibbarosa/storefront/pkg/errors"
)

const maxCartIDLength = 128

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

type cartService struct {
	store    cart.Store
	products repository.ProductRepository
	policy   cart.Policy
	logger   *zap.Logger
}

// NewCartService creates the server-side cart service
func NewCartService(store cart.Store, products repository.ProductRepository, policy cart.Policy, logger *zap.Logger) *cartService {
	return &cartService{
		store:    store,
		products: products,
		policy:   policy,
		logger:   logger,
	}
}

func validateCartID(cartID string) error {
	if cartID == "" || len(cartID) > maxCartIDLength || !cartIDPattern.MatchString(cartID) {
		return &errors.ValidationError{
			Code:    errors.CodeMissingField,
			Field:   "cartId",
			Message: "cart id must be 1-128 letters, digits, '.', '_' or '-' and must not start with '.'",
		}
	}
	return nil
}

func (s *cartService) open(ctx context.Context, cartID string) (*cart.Ledger, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	return cart.Open(ctx, s.store, cartID, s.policy, s.logger)
}

// update applies fn to the stored cart atomically, so concurrent requests on one cart all land
func (s *cartService) update(ctx context.Context, cartID string, fn func(*cart.Ledger) error) (*cart.Ledger, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	return cart.Apply(ctx, s.store, cartID, s.policy, s.logger, fn)
}

// Get returns the cart, empty when nothing was stored yet
func (s *cartService) Get(ctx context.Context, cartID string) (*CartView, error) {
	ledger, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return cartView(cartID, ledger), nil
}

// AddItem adds one unit of a catalog product. The product snapshot is read from the CMS.
func (s *cartService) AddItem(ctx context.Context, cartID, productID string) (*CartView, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, &errors.ValidationError{Code: errors.CodeInvalidItem, Field: "productId", Message: "product id is required"}
	}

	if err := validateCartID(cartID); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.InStock {
		return nil, &errors.ValidationError{Code: errors.CodeInvalidItem, Field: "productId", Message: "product " + productID + " is sold out"}
	}

	ledger, err := s.update(ctx, cartID, func(l *cart.Ledger) error {
		if err := l.AddItem(ctx, *product); err != nil && !stderrors.Is(err, cart.ErrAlreadyInCart) {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add cart item",
			zap.String("cart_id", cartID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}
	return cartView(cartID, ledger), nil
}

func (s *cartService) RemoveItem(ctx context.Context, cartID, productID string) (*CartView, error) {
	ledger, err := s.update(ctx, cartID, func(l *cart.Ledger) error {
		return l.RemoveItem(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return cartView(cartID, ledger), nil
}

func (s *cartService) Clear(ctx context.Context, cartID string) (*CartView, error) {
	ledger, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Clear(ctx); err != nil {
		return nil, err
	}
	return cartView(cartID, ledger), nil
}

func cartView(cartID string, ledger *cart.Ledger) *CartView {
	return &CartView{
		CartID: cartID,
		Items:  ledger.Lines(),
		Totals: map[string]decimal.Decimal{
			string(domain.CurrencyEUR): ledger.TotalPrice(domain.CurrencyEUR),
			string(domain.CurrencyPLN): ledger.TotalPrice(domain.CurrencyPLN),
		},
	}
}
