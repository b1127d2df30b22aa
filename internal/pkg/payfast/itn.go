package payfast

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ITN is an instant transaction notification posted by PayFast.
type ITN struct {
	MPaymentID    string
	PFPaymentID   string
	PaymentStatus string
	AmountGross   decimal.Decimal
	HasAmount     bool
	MerchantID    string
	ItemName      string
	CustomStr1    string
	CustomStr2    string
	CustomStr3    string
	Values        url.Values
}

// ParseITN reads the notification fields from a parsed form.
func ParseITN(values url.Values) (*ITN, error) {
	n := &ITN{
		MPaymentID:    strings.TrimSpace(values.Get("m_payment_id")),
		PFPaymentID:   strings.TrimSpace(values.Get("pf_payment_id")),
		PaymentStatus: strings.TrimSpace(values.Get("payment_status")),
		MerchantID:    strings.TrimSpace(values.Get("merchant_id")),
		ItemName:      values.Get("item_name"),
		CustomStr1:    values.Get("custom_str1"),
		CustomStr2:    values.Get("custom_str2"),
		CustomStr3:    values.Get("custom_str3"),
		Values:        values,
	}
	if n.MPaymentID == "" && n.PFPaymentID == "" {
		return nil, ErrMissingField
	}
	if n.PaymentStatus == "" {
		return nil, ErrMissingField
	}
	if raw := strings.TrimSpace(values.Get("amount_gross")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, ErrMissingField
		}
		n.AmountGross = amount
		n.HasAmount = true
	}
	return n, nil
}

// Verifier runs every authenticity check on an ITN.
type Verifier struct {
	client     *Client
	allowList  *IPAllowList
	production bool
}

// NewVerifier creates a verifier. Outside production an unexpected source
// address is logged and tolerated.
func NewVerifier(client *Client, allowList *IPAllowList, production bool) *Verifier {
	return &Verifier{client: client, allowList: allowList, production: production}
}

// Verify parses and authenticates a notification.
func (v *Verifier) Verify(ctx context.Context, remoteIP string, values url.Values) (*ITN, error) {
	itn, err := ParseITN(values)
	if err != nil {
		return nil, err
	}

	if !v.allowList.Allowed(remoteIP) {
		if v.production {
			return nil, ErrSourceIP
		}
		log.Warn().Str("ip", remoteIP).Str("m_payment_id", itn.MPaymentID).Msg("payfast notification from address outside allow-list")
	}

	cfg := v.client.Config()
	if cfg.MerchantID != "" && itn.MerchantID != cfg.MerchantID {
		return nil, ErrMerchant
	}

	if !VerifySignature(values, cfg.Passphrase) {
		return nil, ErrSignature
	}

	if err := v.client.Validate(ctx, values); err != nil {
		return nil, err
	}

	return itn, nil
}
