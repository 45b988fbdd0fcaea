package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/config"
)

var (
	// ErrDocumentExists is returned when a create mutation targets an id that is already taken
	ErrDocumentExists = errors.New("cms: document already exists")
	// ErrUnavailable is returned while the circuit breaker is open
	ErrUnavailable = errors.New("cms: unavailable")
)

// APIError is a non-2xx answer from the CMS
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cms API error: status %d, body: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	dataset    string
	apiVersion string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another API host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new CMS HTTP client
func NewClient(cfg config.SanityConfig, logger *zap.Logger, opts ...Option) *Client {
	apiVersion := strings.TrimPrefix(cfg.APIVersion, "v")

	c := &Client{
		baseURL:    fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID),
		dataset:    cfg.Dataset,
		apiVersion: apiVersion,
		token:      cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cms",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the CMS is up
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil || errors.Is(err, ErrDocumentExists)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

// Query runs a GROQ query and decodes its result into out.
// A null result leaves out untouched and returns found=false.
func (c *Client) Query(ctx context.Context, query string, params map[string]interface{}, out interface{}) (bool, error) {
	values := url.Values{}
	values.Set("query", query)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return false, fmt.Errorf("failed to marshal param %s: %w", name, err)
		}
		values.Set("$"+name, string(encoded))
	}

	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s", c.baseURL, c.apiVersion, c.dataset, values.Encode())

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return false, fmt.Errorf("failed to decode query result: %w", err)
	}
	return true, nil
}

// MutateResult is one entry of a mutation response
type MutateResult struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Document  json.RawMessage `json:"document,omitempty"`
}

// MutateResponse is the CMS answer to a transaction
type MutateResponse struct {
	TransactionID string         `json:"transactionId"`
	Results       []MutateResult `json:"results"`
}

// Mutate submits the mutations as one transaction
func (c *Client) Mutate(ctx context.Context, mutations ...Mutation) (*MutateResponse, error) {
	reqBody := mutateRequest{Mutations: mutations}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s?returnIds=true&returnDocuments=true", c.baseURL, c.apiVersion, c.dataset)

	body, err := c.do(ctx, http.MethodPost, endpoint, jsonData)
	if err != nil {
		return nil, err
	}

	var resp MutateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusConflict {
			return nil, ErrDocumentExists
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		return respBody, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("CMS call rejected by circuit breaker", zap.String("method", method))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, err
}
