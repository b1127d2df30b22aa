package payfast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LiveHost    = "https://www.payfast.co.za"
	SandboxHost = "https://sandbox.payfast.co.za"

	processPath  = "/eng/process"
	validatePath = "/eng/query/validate"
)

var (
	ErrNotValid      = errors.New("payfast rejected the notification")
	ErrInvalidAmount = errors.New("payfast amount must be positive")
	ErrNotConfigured = errors.New("payfast merchant is not configured")
	ErrMissingField  = errors.New("payfast notification is missing a required field")
	ErrSignature     = errors.New("payfast signature mismatch")
	ErrMerchant      = errors.New("payfast merchant id mismatch")
	ErrSourceIP      = errors.New("payfast notification from unexpected address")
)

// Config holds PayFast merchant configuration.
type Config struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Sandbox     bool
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
	ValidIPs    []string
	Timeout     time.Duration

	// Host overrides the live or sandbox host.
	Host string
}

func (c Config) host() string {
	if c.Host != "" {
		return strings.TrimRight(c.Host, "/")
	}
	if c.Sandbox {
		return SandboxHost
	}
	return LiveHost
}

// Client talks to PayFast.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a PayFast client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Validate posts the received parameter string back to PayFast and expects
// the literal answer VALID.
func (c *Client) Validate(ctx context.Context, values url.Values) error {
	body := ParamString(values, "")
	endpoint := c.config.host() + validatePath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("payfast validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payfast validate call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("payfast validate read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payfast validate returned status %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(raw)) != "VALID" {
		return ErrNotValid
	}
	return nil
}

// CheckoutRequest describes a payment the user is redirected to PayFast for.
type CheckoutRequest struct {
	PaymentID  string
	Amount     decimal.Decimal
	ItemName   string
	Email      string
	CustomStr1 string
	CustomStr2 string
	CustomStr3 string
}

// CheckoutURL builds the signed redirect URL for the PayFast process page.
func (c *Client) CheckoutURL(req CheckoutRequest) (string, error) {
	if c.config.MerchantID == "" || c.config.MerchantKey == "" {
		return "", ErrNotConfigured
	}
	if !req.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	values := url.Values{}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			values.Set(k, v)
		}
	}
	set("merchant_id", c.config.MerchantID)
	set("merchant_key", c.config.MerchantKey)
	set("return_url", c.config.ReturnURL)
	set("cancel_url", c.config.CancelURL)
	set("notify_url", c.config.NotifyURL)
	set("email_address", req.Email)
	set("m_payment_id", req.PaymentID)
	set("amount", req.Amount.StringFixed(2))
	set("item_name", req.ItemName)
	set("custom_str1", req.CustomStr1)
	set("custom_str2", req.CustomStr2)
	set("custom_str3", req.CustomStr3)

	values.Set(signatureField, SignValues(values, c.config.Passphrase))
	return c.config.host() + processPath + "?" + values.Encode(), nil
}
