package sanity

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/cms"
	"github.com/gibbarosa/storefront/internal/domain"
	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

type productRepository struct {
	client Client
	logger *zap.Logger
}

// NewProductRepository creates a new CMS-backed product repository
func NewProductRepository(client Client, logger *zap.Logger) *productRepository {
	return &productRepository{
		client: client,
		logger: logger,
	}
}

type productDocument struct {
	ID       string             `json:"_id"`
	Name     map[string]string  `json:"name"`
	Pricing  map[string]float64 `json:"pricing"`
	Slug     string             `json:"slug"`
	ImageRef string             `json:"imageRef"`
	InStock  *bool              `json:"inStock"`
}

func (d *productDocument) toDomain() *domain.Product {
	name := domain.LocalizedText{}
	for lang, text := range d.Name {
		name[domain.Language(lang)] = text
	}

	prices := make(map[domain.Currency]decimal.Decimal, len(d.Pricing))
	for code, amount := range d.Pricing {
		// pricing also holds estimated retail prices; keep only plain currency codes
		if currency, ok := domain.ParseCurrency(code); ok && len(code) == 3 {
			prices[currency] = decimal.NewFromFloat(amount)
		}
	}

	// products created before the flag existed are available
	inStock := true
	if d.InStock != nil {
		inStock = *d.InStock
	}

	return &domain.Product{
		ID:       d.ID,
		Slug:     d.Slug,
		Name:     name,
		Prices:   prices,
		ImageRef: d.ImageRef,
		InStock:  inStock,
	}
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDocument
	found, err := r.client.Query(ctx, cms.ProductByIDQuery, map[string]interface{}{"id": id}, &doc)
	if err != nil {
		r.logger.Error("Failed to query product", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}
	if !found {
		return nil, &apperrors.ErrNotFound{Resource: "product", ID: id}
	}
	return doc.toDomain(), nil
}

func (r *productRepository) SetInStock(ctx context.Context, id string, inStock bool) error {
	_, err := r.client.Mutate(ctx, cms.SetFields(id, map[string]interface{}{"inStock": inStock}))
	if err == nil {
		return nil
	}

	var apiErr *cms.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return &apperrors.ErrNotFound{Resource: "product", ID: id}
	}
	return &apperrors.DownstreamWriteFailure{Op: "patch product " + id, Err: err}
}

func (r *productRepository) ListSoldOut(ctx context.Context, offset, limit int) ([]*domain.Product, error) {
	var docs []productDocument
	_, err := r.client.Query(ctx, cms.SoldOutProductsQuery, map[string]interface{}{
		"from": offset,
		"to":   offset + limit,
	}, &docs)
	if err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(docs))
	for i := range docs {
		products = append(products, docs[i].toDomain())
	}
	return products, nil
}
