package cart

import (
	"fmt"
	"strings"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/pkg/errors"
)

// NormalizeLines validates lines read from a store or sent by a client.
// Malformed lines are rejected, never defaulted.
func NormalizeLines(lines []domain.CartLine) ([]domain.CartLine, error) {
	out := make([]domain.CartLine, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))

	for i, line := range lines {
		field := fmt.Sprintf("lines[%d]", i)

		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			id = strings.TrimSpace(line.Product.ID)
		}
		if id == "" {
			return nil, &errors.ValidationError{Code: errors.CodeMissingField, Field: field + ".productId", Message: "product id is required"}
		}
		if line.Product.ID != "" && line.Product.ID != id {
			return nil, &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".product.id", Message: "snapshot id does not match line product id"}
		}
		if line.Quantity < 1 {
			return nil, &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".quantity", Message: "quantity must be at least 1"}
		}
		if _, dup := seen[id]; dup {
			return nil, &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".productId", Message: "duplicate product " + id}
		}
		if err := validateProduct(line.Product, field+".product"); err != nil {
			return nil, err
		}

		seen[id] = struct{}{}
		line.ProductID = id
		line.Product.ID = id
		out = append(out, line)
	}

	return out, nil
}

func validateProduct(p domain.Product, field string) error {
	for currency, price := range p.Prices {
		if _, ok := domain.ParseCurrency(string(currency)); !ok {
			return &errors.ValidationError{Code: errors.CodeInvalidCurrency, Field: field + ".prices", Message: "unsupported currency " + string(currency)}
		}
		if price.IsNegative() {
			return &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".prices." + string(currency), Message: "price cannot be negative"}
		}
	}
	return nil
}
