package sanity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/domain"
	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

func productDoc(id string, inStock interface{}) map[string]interface{} {
	doc := map[string]interface{}{
		"_id":   id,
		"_type": "product",
		"name":  map[string]string{"PL": "Torebka", "EN": "Handbag"},
		"pricing": map[string]float64{
			"EUR":                     1200,
			"PLN":                     5200,
			"EURestimatedRetailPrice": 3000,
		},
		"slug": "handbag-" + id,
	}
	if inStock != nil {
		doc["inStock"] = inStock
	}
	return doc
}

func TestGetProduct(t *testing.T) {
	client := newFakeClient()
	client.put(productDoc("p1", true))
	repo := NewProductRepository(client, zap.NewNop())

	product, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "Handbag", product.Name.In(domain.LanguageEN))
	assert.Equal(t, "Handbag", product.Name.In(domain.LanguageFR))
	assert.Len(t, product.Prices, 2)
	price, ok := product.UnitPrice(domain.CurrencyPLN)
	require.True(t, ok)
	assert.Equal(t, "5200", price.String())
	assert.True(t, product.InStock)
}

func TestGetProduct_MissingFlagMeansAvailable(t *testing.T) {
	client := newFakeClient()
	client.put(productDoc("p1", nil))
	repo := NewProductRepository(client, zap.NewNop())

	product, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, product.InStock)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := NewProductRepository(newFakeClient(), zap.NewNop())
	_, err := repo.GetByID(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSetInStock(t *testing.T) {
	client := newFakeClient()
	client.put(productDoc("p1", true))
	repo := NewProductRepository(client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.SetInStock(ctx, "p1", false))
	assert.Equal(t, false, client.docs["p1"]["inStock"])

	require.NoError(t, repo.SetInStock(ctx, "p1", true))
	assert.Equal(t, true, client.docs["p1"]["inStock"])
}

func TestSetInStock_Errors(t *testing.T) {
	client := newFakeClient()
	repo := NewProductRepository(client, zap.NewNop())
	ctx := context.Background()

	err := repo.SetInStock(ctx, "missing", false)
	assert.True(t, apperrors.IsNotFound(err))

	client.mutateErr = errors.New("timeout")
	err = repo.SetInStock(ctx, "p1", false)
	var failure *apperrors.DownstreamWriteFailure
	assert.True(t, errors.As(err, &failure))
}

func TestListSoldOut_Pages(t *testing.T) {
	client := newFakeClient()
	for i := 0; i < 5; i++ {
		client.put(productDoc(fmt.Sprintf("p%d", i), i%2 == 0))
	}
	repo := NewProductRepository(client, zap.NewNop())
	ctx := context.Background()

	page, err := repo.ListSoldOut(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p1", page[0].ID)
	assert.False(t, page[0].InStock)

	page, err = repo.ListSoldOut(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p3", page[0].ID)
}
