package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/payments"
	"github.com/gibbarosa/storefront/internal/repository"
	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

type fakeProvider struct {
	mu        sync.Mutex
	intents   []payments.IntentRequest
	sessions  []payments.SessionRequest
	customers map[string]string
	lineItems map[string][]payments.SessionLineItem
	intentErr error
	listErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers: map[string]string{},
		lineItems: map[string][]payments.SessionLineItem{},
	}
}

func (p *fakeProvider) CreatePaymentIntent(_ context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	p.intents = append(p.intents, req)
	id := fmt.Sprintf("pi_test_%d", len(p.intents))
	return &payments.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (*payments.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, req)
	id := fmt.Sprintf("cs_test_%d", len(p.sessions))
	return &payments.Session{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (p *fakeProvider) FindCustomerByEmail(_ context.Context, email string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.customers[email]
	return id, ok, nil
}

func (p *fakeProvider) ListSessionLineItems(_ context.Context, sessionID string) ([]payments.SessionLineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.lineItems[sessionID], nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
	creates   int
	// afterCreate runs once an order is stored
	afterCreate func()
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*domain.Order{}}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return nil, &apperrors.DownstreamWriteFailure{Op: "create order", Err: r.createErr}
	}
	key := order.PaymentKey()
	if _, exists := r.orders[key]; exists {
		return nil, &apperrors.ErrDuplicateOrder{Key: key}
	}
	stored := *order
	stored.DocumentID = "order-" + key
	r.orders[key] = &stored
	if r.afterCreate != nil {
		r.afterCreate()
	}
	out := stored
	return &out, nil
}

func (r *fakeOrderRepo) GetByPaymentKey(_ context.Context, paymentKey string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[paymentKey]; ok {
		out := *o
		return &out, nil
	}
	return nil, &apperrors.ErrNotFound{Resource: "order", ID: paymentKey}
}

func (r *fakeOrderRepo) GetByPaymentIntentID(_ context.Context, paymentIntentID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentIntentID == paymentIntentID {
			out := *o
			return &out, nil
		}
	}
	return nil, &apperrors.ErrNotFound{Resource: "order", ID: paymentIntentID}
}

func (r *fakeOrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			out := *o
			return &out, nil
		}
	}
	return nil, &apperrors.ErrNotFound{Resource: "order", ID: orderNumber}
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	failing  map[string]bool
	patches  []string
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[string]*domain.Product{}, failing: map[string]bool{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "product", ID: id}
	}
	out := *p
	return &out, nil
}

func (r *fakeProductRepo) SetInStock(ctx context.Context, id string, inStock bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patches = append(r.patches, id)
	if r.failing[id] {
		return &apperrors.DownstreamWriteFailure{Op: "patch product", Err: fmt.Errorf("cms unavailable")}
	}
	p, ok := r.products[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "product", ID: id}
	}
	p.InStock = inStock
	return nil
}

func (r *fakeProductRepo) ListSoldOut(_ context.Context, offset, limit int) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, p := range r.products {
		if !p.InStock {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []*domain.Product
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		p := *r.products[ids[i]]
		out = append(out, &p)
	}
	return out, nil
}

func (r *fakeProductRepo) inStock(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].InStock
}

type fakeDeadLetterRepo struct {
	mu      sync.Mutex
	letters map[uuid.UUID]*domain.DeadLetter
	addErr  error
}

func newFakeDeadLetterRepo() *fakeDeadLetterRepo {
	return &fakeDeadLetterRepo{letters: map[uuid.UUID]*domain.DeadLetter{}}
}

func (r *fakeDeadLetterRepo) Add(ctx context.Context, letter *domain.DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	for _, existing := range r.letters {
		if existing.EventID == letter.EventID {
			existing.LastError = letter.LastError
			existing.Status = domain.DeadLetterPending
			*letter = *existing
			return nil
		}
	}
	if letter.ID == uuid.Nil {
		letter.ID = uuid.New()
	}
	letter.Status = domain.DeadLetterPending
	stored := *letter
	r.letters[letter.ID] = &stored
	return nil
}

func (r *fakeDeadLetterRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.letters[id]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "dead letter", ID: id.String()}
	}
	out := *l
	return &out, nil
}

func (r *fakeDeadLetterRepo) ListDue(_ context.Context, limit int) ([]*domain.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []*domain.DeadLetter
	for _, l := range r.letters {
		if l.Status == domain.DeadLetterPending && !l.NextAttemptAt.After(now) && len(out) < limit {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeDeadLetterRepo) ListByStatus(_ context.Context, status domain.DeadLetterStatus, limit, offset int) ([]*domain.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DeadLetter
	for _, l := range r.letters {
		if status == "" || l.Status == status {
			c := *l
			out = append(out, &c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDeadLetterRepo) MarkResolved(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.letters[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "dead letter", ID: id.String()}
	}
	l.Status = domain.DeadLetterResolved
	l.Attempts++
	l.LastError = ""
	return nil
}

func (r *fakeDeadLetterRepo) MarkFailed(_ context.Context, letter *domain.DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.letters[letter.ID]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "dead letter", ID: letter.ID.String()}
	}
	l.Attempts = letter.Attempts
	l.LastError = letter.LastError
	l.Status = letter.Status
	l.NextAttemptAt = letter.NextAttemptAt
	return nil
}

func (r *fakeDeadLetterRepo) all() []*domain.DeadLetter {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DeadLetter
	for _, l := range r.letters {
		c := *l
		out = append(out, &c)
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, order.OrderNumber)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func testRepos(orders *fakeOrderRepo, products *fakeProductRepo, letters *fakeDeadLetterRepo) *repository.Repositories {
	return &repository.Repositories{
		Order:      orders,
		Product:    products,
		DeadLetter: letters,
	}
}

func eurProduct(id, price string) *domain.Product {
	return &domain.Product{
		ID:      id,
		Name:    domain.LocalizedText{domain.LanguageEN: "Bag " + id},
		Prices:  map[domain.Currency]decimal.Decimal{domain.CurrencyEUR: decimal.RequireFromString(price)},
		InStock: true,
	}
}

func eventJSON(t *testing.T, id string, eventType stripe.EventType, object interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        string(eventType),
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)
	return payload
}

func mustEvent(t *testing.T, payload []byte) stripe.Event {
	t.Helper()
	event, err := payments.ParseEvent(payload)
	require.NoError(t, err)
	return event
}
