package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/cart"
	"github.com/gibbarosa/storefront/internal/cms"
	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/payments"
	"github.com/gibbarosa/storefront/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// CheckoutSettings holds the values the checkout flows read from config
type CheckoutSettings struct {
	ExpressShippingFee decimal.Decimal
	// BaseURL is the resolved public storefront URL; empty disables hosted checkout
	BaseURL    string
	CMSProject string
	CMSDataset string
}

type checkoutService struct {
	provider payments.Provider
	settings CheckoutSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewCheckoutService creates the payment intent issuer and hosted session creator
func NewCheckoutService(provider payments.Provider, settings CheckoutSettings, logger *zap.Logger) *checkoutService {
	return &checkoutService{
		provider: provider,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// ToMinorUnits converts an amount to the provider's integer minor units, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a decimal amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ShippingFee returns the fee charged for method
func (s *checkoutService) ShippingFee(method domain.ShippingMethod) decimal.Decimal {
	if method == domain.ShippingExpress {
		return s.settings.ExpressShippingFee
	}
	return decimal.Zero
}

// CreatePaymentIntent validates the checkout form and opens a provider payment intent.
// Nothing is persisted locally; the order is written when the payment succeeds.
func (s *checkoutService) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntentResponse, error) {
	amount := ToMinorUnits(req.TotalAmount)
	if amount <= 0 {
		return nil, &errors.ValidationError{Code: errors.CodeInvalidAmount, Field: "totalAmount", Message: "amount must be greater than zero"}
	}

	currency := domain.CurrencyEUR
	if req.Currency != "" {
		c, ok := domain.ParseCurrency(req.Currency)
		if !ok {
			return nil, &errors.ValidationError{Code: errors.CodeInvalidCurrency, Field: "currency", Message: "unsupported currency " + req.Currency}
		}
		currency = c
	}

	method, err := validateShipping(&req.Shipping)
	if err != nil {
		return nil, err
	}

	if err := s.checkTotals(req, method); err != nil {
		return nil, err
	}

	orderNumber := payments.NewOrderNumber(s.now())

	metadata, err := s.intentMetadata(orderNumber, req, method)
	if err != nil {
		return nil, err
	}

	sh := req.Shipping
	intent, err := s.provider.CreatePaymentIntent(ctx, payments.IntentRequest{
		AmountMinor:  amount,
		Currency:     currency.Lower(),
		Description:  fmt.Sprintf("Order %s with %d item(s)", orderNumber, len(req.Items)),
		ReceiptEmail: sh.Email,
		Metadata:     metadata,
		Shipping: &payments.ShippingDetails{
			Name:       strings.TrimSpace(sh.FirstName + " " + sh.LastName),
			Phone:      sh.Phone,
			Line1:      sh.Address,
			Line2:      sh.Apartment,
			City:       sh.City,
			State:      sh.State,
			PostalCode: sh.PostalCode,
			Country:    sh.Country,
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Payment intent created",
		zap.String("order_number", orderNumber),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency.Lower()),
	)

	return &PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		OrderNumber:     orderNumber,
	}, nil
}

func validateShipping(sh *ShippingForm) (domain.ShippingMethod, error) {
	required := []struct {
		field string
		value string
	}{
		{"shipping.email", sh.Email},
		{"shipping.firstName", sh.FirstName},
		{"shipping.lastName", sh.LastName},
		{"shipping.address", sh.Address},
		{"shipping.city", sh.City},
		{"shipping.country", sh.Country},
		{"shipping.postalCode", sh.PostalCode},
		{"shipping.phone", sh.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return "", &errors.ValidationError{Code: errors.CodeMissingField, Field: r.field, Message: "field is required"}
		}
	}
	if !strings.Contains(sh.Email, "@") {
		return "", &errors.ValidationError{Code: errors.CodeMissingField, Field: "shipping.email", Message: "email is not valid"}
	}

	method := domain.ShippingMethod(strings.ToLower(strings.TrimSpace(sh.ShippingMethod)))
	if method == "" {
		method = domain.ShippingStandard
	}
	if !method.IsValid() {
		return "", &errors.ValidationError{Code: errors.CodeMissingField, Field: "shipping.shippingMethod", Message: "unknown shipping method " + sh.ShippingMethod}
	}
	return method, nil
}

// checkTotals recomputes the order total when every line is priced
func (s *checkoutService) checkTotals(req PaymentIntentRequest, method domain.ShippingMethod) error {
	if len(req.Items) == 0 {
		return &errors.ValidationError{Code: errors.CodeMissingField, Field: "items", Message: "at least one item is required"}
	}

	subtotal := decimal.Zero
	priced := true
	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ProductID) == "" {
			return &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".productId", Message: "product id is required"}
		}
		if item.Quantity < 1 {
			return &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".quantity", Message: "quantity must be at least 1"}
		}
		if item.Price == nil {
			priced = false
			continue
		}
		if item.Price.IsNegative() {
			return &errors.ValidationError{Code: errors.CodeInvalidItem, Field: field + ".price", Message: "price cannot be negative"}
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !priced {
		return nil
	}

	expected := subtotal.Add(s.ShippingFee(method))
	if ToMinorUnits(expected) != ToMinorUnits(req.TotalAmount) {
		return &errors.ValidationError{
			Code:    errors.CodeTotalMismatch,
			Field:   "totalAmount",
			Message: fmt.Sprintf("total %s does not match items plus shipping %s", req.TotalAmount.StringFixed(2), expected.StringFixed(2)),
		}
	}
	return nil
}

func (s *checkoutService) intentMetadata(orderNumber string, req PaymentIntentRequest, method domain.ShippingMethod) (map[string]string, error) {
	items := make([]payments.MetadataItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, payments.MetadataItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	encoded, stats, err := payments.EncodeOrderItems(items, payments.MaxMetadataValueBytes)
	if err != nil {
		return nil, err
	}
	if stats.Truncated() {
		s.logger.Warn("Order items did not fit in metadata",
			zap.String("order_number", orderNumber),
			zap.Int("total", stats.Total),
			zap.Int("compacted", stats.Compacted),
			zap.Int("dropped", stats.Dropped),
		)
	}

	limit := payments.MaxMetadataValueBytes
	sh := req.Shipping
	metadata := map[string]string{
		payments.MetaOrderNumber:         orderNumber,
		payments.MetaFirstName:           payments.TruncateValue(sh.FirstName, limit),
		payments.MetaLastName:            payments.TruncateValue(sh.LastName, limit),
		payments.MetaEmail:               payments.TruncateValue(sh.Email, limit),
		payments.MetaShippingMethod:      string(method),
		payments.MetaOrderItems:          encoded,
		payments.MetaOrderItemsTotal:     strconv.Itoa(stats.Total),
		payments.MetaOrderItemsTruncated: strconv.FormatBool(stats.Truncated()),
	}
	if sh.Notes != "" {
		metadata[payments.MetaNotes] = payments.TruncateValue(sh.Notes, limit)
	}
	if sh.Company != "" {
		metadata["company"] = payments.TruncateValue(sh.Company, limit)
	}
	return metadata, nil
}

// CreateCheckoutSession opens a hosted checkout for cart lines priced in EUR
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	if s.settings.BaseURL == "" {
		return nil, fmt.Errorf("hosted checkout is not configured: base URL is empty")
	}
	if len(req.Items) == 0 {
		return nil, &errors.ValidationError{Code: errors.CodeMissingField, Field: "items", Message: "at least one item is required"}
	}

	lines, err := cart.NormalizeLines(req.Items)
	if err != nil {
		return nil, err
	}

	sessionLines := make([]payments.SessionLine, 0, len(lines))
	for i, line := range lines {
		price, ok := line.Product.UnitPrice(domain.CurrencyEUR)
		if !ok || !price.IsPositive() {
			return nil, &errors.ValidationError{
				Code:    errors.CodeMissingPrice,
				Field:   fmt.Sprintf("items[%d].product.prices.EUR", i),
				Message: "product " + line.ProductID + " has no EUR price",
			}
		}

		name := line.Product.Name.In(domain.LanguageEN)
		if name == "" {
			name = "Unnamed Product"
		}

		sessionLines = append(sessionLines, payments.SessionLine{
			ProductID:       line.ProductID,
			Name:            name,
			Description:     "Product ID: " + line.ProductID,
			ImageURL:        cms.ImageURL(s.settings.CMSProject, s.settings.CMSDataset, line.Product.ImageRef),
			UnitAmountMinor: ToMinorUnits(price),
			Quantity:        int64(line.Quantity),
		})
	}

	meta := req.Metadata
	if meta.OrderNumber == "" {
		meta.OrderNumber = payments.NewOrderNumber(s.now())
	}

	var customerID string
	if meta.CustomerEmail != "" {
		id, found, err := s.provider.FindCustomerByEmail(ctx, meta.CustomerEmail)
		if err != nil {
			return nil, err
		}
		if found {
			customerID = id
		}
	}

	metadata := map[string]string{
		"orderNumber":     meta.OrderNumber,
		"customerName":    meta.CustomerName,
		"customerEmail":   meta.CustomerEmail,
		"customerPhone":   meta.CustomerPhone,
		"shippingAddress": meta.ShippingAddress,
		"shippingCity":    meta.ShippingCity,
		"shippingZip":     meta.ShippingZip,
		"shippingCountry": meta.ShippingCountry,
	}
	for k, v := range metadata {
		if v == "" {
			delete(metadata, k)
			continue
		}
		metadata[k] = payments.TruncateValue(v, payments.MaxMetadataValueBytes)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payments.SessionRequest{
		Currency:      domain.CurrencyEUR.Lower(),
		Lines:         sessionLines,
		CustomerID:    customerID,
		CustomerEmail: meta.CustomerEmail,
		Metadata:      metadata,
		PaymentIntentMetadata: map[string]string{
			payments.MetaCheckoutSessionID: meta.OrderNumber,
			payments.MetaOrderNumber:       meta.OrderNumber,
		},
		SuccessURL:     fmt.Sprintf("%s/success?session_id={CHECKOUT_SESSION_ID}&orderNumber=%s", s.settings.BaseURL, meta.OrderNumber),
		CancelURL:      s.settings.BaseURL + "/cart",
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("order_number", meta.OrderNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("order_number", meta.OrderNumber),
		zap.String("session_id", session.ID),
		zap.Bool("existing_customer", customerID != ""),
	)

	return &CheckoutSessionResponse{URL: session.URL, SessionID: session.ID, OrderNumber: meta.OrderNumber}, nil
}
