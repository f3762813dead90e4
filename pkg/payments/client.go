package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/davidmarcano/storefront-backend/pkg/config"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

var (
	errKeyIDRequired     = errors.New("payment key id is required")
	errKeySecretRequired = errors.New("payment key secret is required")
	errLoggerRequired    = errors.New("payment logger is required")
)

// Intent is a provider-side order created ahead of customer payment.
type Intent struct {
	ProviderOrderID string `json:"id"`
	AmountCents     int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// Confirmation is what the client submits after paying online.
type Confirmation struct {
	ProviderOrderID   string `json:"provider_order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Signature         string `json:"signature"`
}

// Client talks to the payment provider and verifies its signatures.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	currency   string
	logger     *logger.Logger
}

// NewClient validates the credentials and builds the provider wrapper.
func NewClient(cfg config.PaymentConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		currency:   cfg.Currency,
		logger:     logg,
	}, nil
}

// CreateIntent registers the amount with the provider and returns its
// order handle for the client-side payment flow.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, receipt string) (*Intent, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	body, err := json.Marshal(map[string]any{
		"amount":   amountCents,
		"currency": c.currency,
		"receipt":  receipt,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment provider returned status %d", resp.StatusCode))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding payment provider response")
	}
	c.logger.Debug(c.logger.WithField(ctx, "provider_order_id", intent.ProviderOrderID), "payment intent created")
	return &intent, nil
}

// VerifySignature checks the HMAC the provider computes over
// "<order_id>|<payment_id>". A mismatch means the confirmation was
// forged or tampered with.
func (c *Client) VerifySignature(conf Confirmation) error {
	if conf.ProviderOrderID == "" || conf.ProviderPaymentID == "" || conf.Signature == "" {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment confirmation is incomplete")
	}
	expected := c.sign(conf.ProviderOrderID + "|" + conf.ProviderPaymentID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(conf.Signature)) != 1 {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature mismatch")
	}
	return nil
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
