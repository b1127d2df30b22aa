package yoco

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://payments.yoco.com"

var (
	ErrCheckoutNotFound = errors.New("yoco checkout not found")
	ErrNotConfigured    = errors.New("yoco client is not configured")
	ErrInvalidAmount    = errors.New("yoco amount must be positive")
)

// Config holds Yoco API configuration
type Config struct {
	BaseURL    string
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	FailureURL string
	Timeout    time.Duration
}

// Client represents the Yoco checkout API client
type Client struct {
	httpClient *http.Client
	config     Config
}

// Checkout is the Yoco checkout resource
type Checkout struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	PaymentID   string            `json:"paymentId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateCheckoutRequest represents checkout creation request
type CreateCheckoutRequest struct {
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"successUrl,omitempty"`
	CancelURL  string            `json:"cancelUrl,omitempty"`
	FailureURL string            `json:"failureUrl,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewClient creates new Yoco API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "ZAR"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// CreateCheckout starts a hosted checkout and returns its redirect URL.
func (c *Client) CreateCheckout(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (*Checkout, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	req := CreateCheckoutRequest{
		Amount:     ToCents(amount),
		Currency:   c.config.Currency,
		SuccessURL: c.config.SuccessURL,
		CancelURL:  c.config.CancelURL,
		FailureURL: c.config.FailureURL,
		Metadata:   metadata,
	}

	var out Checkout
	if err := c.do(ctx, http.MethodPost, "/api/checkouts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCheckout fetches the authoritative state of a checkout.
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (*Checkout, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return nil, ErrCheckoutNotFound
	}

	var out Checkout
	if err := c.do(ctx, http.MethodGet, "/api/checkouts/"+checkoutID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c == nil || c.httpClient == nil || strings.TrimSpace(c.config.SecretKey) == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode yoco request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("yoco api call failed: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("yoco api call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yoco api call failed: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrCheckoutNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("yoco api returned non-2xx status: %d, body: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse yoco response: %w", err)
	}
	return nil
}

// ToCents converts a currency amount to minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts minor units to a currency amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
