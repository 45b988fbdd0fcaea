package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/repository"
)

// DefaultInventoryMaxItems bounds how many products one inventory pass touches
const DefaultInventoryMaxItems = 250

type inventoryService struct {
	products repository.ProductRepository
	maxItems int
	logger   *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(products repository.ProductRepository, maxItems int, logger *zap.Logger) *inventoryService {
	if maxItems <= 0 {
		maxItems = DefaultInventoryMaxItems
	}
	return &inventoryService{
		products: products,
		maxItems: maxItems,
		logger:   logger,
	}
}

// MarkSoldOut flags every product of a new order as unavailable.
// Products are patched one at a time and a failure never stops the rest.
func (s *inventoryService) MarkSoldOut(ctx context.Context, lines []domain.OrderLine) *InventoryResult {
	result := &InventoryResult{Updated: []string{}, Failed: []string{}, Skipped: []string{}}

	seen := make(map[string]struct{}, len(lines))
	refs := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ProductRef == "" {
			continue
		}
		if _, dup := seen[line.ProductRef]; dup {
			continue
		}
		seen[line.ProductRef] = struct{}{}
		refs = append(refs, line.ProductRef)
	}

	for i, ref := range refs {
		if i >= s.maxItems {
			result.Skipped = append(result.Skipped, refs[i:]...)
			s.logger.Error("Inventory update capped",
				zap.Int("max_items", s.maxItems),
				zap.Strings("skipped", refs[i:]),
			)
			break
		}
		if err := ctx.Err(); err != nil {
			result.Skipped = append(result.Skipped, refs[i:]...)
			s.logger.Error("Inventory update interrupted",
				zap.Strings("skipped", refs[i:]),
				zap.Error(err),
			)
			break
		}

		if err := s.products.SetInStock(ctx, ref, false); err != nil {
			s.logger.Error("Failed to mark product as sold out",
				zap.String("product_id", ref),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, ref)
			continue
		}
		result.Updated = append(result.Updated, ref)
	}

	s.logger.Info("Inventory updated",
		zap.Int("updated", len(result.Updated)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result
}

// RestoreStock makes a product available again
func (s *inventoryService) RestoreStock(ctx context.Context, productID string) error {
	if err := s.products.SetInStock(ctx, productID, true); err != nil {
		s.logger.Error("Failed to restore stock",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Stock restored", zap.String("product_id", productID))
	return nil
}
