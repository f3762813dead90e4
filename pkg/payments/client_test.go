package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidmarcano/storefront-backend/pkg/config"
	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
	"github.com/davidmarcano/storefront-backend/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "payments-test", Level: zerolog.Disabled, Output: io.Discard})
	client, err := NewClient(config.PaymentConfig{
		KeyID:     "key_test",
		KeySecret: "secret_test",
		BaseURL:   baseURL,
		Currency:  "USD",
		Timeout:   2 * time.Second,
	}, logg)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "payments-test", Level: zerolog.Disabled, Output: io.Discard})

	_, err := NewClient(config.PaymentConfig{KeySecret: "s"}, logg)
	assert.ErrorIs(t, err, errKeyIDRequired)

	_, err = NewClient(config.PaymentConfig{KeyID: "k"}, logg)
	assert.ErrorIs(t, err, errKeySecretRequired)

	_, err = NewClient(config.PaymentConfig{KeyID: "k", KeySecret: "s"}, nil)
	assert.ErrorIs(t, err, errLoggerRequired)
}

func TestCreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_test", user)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(249900), body["amount"])

		json.NewEncoder(w).Encode(Intent{
			ProviderOrderID: "order_abc",
			AmountCents:     249900,
			Currency:        "USD",
			Status:          "created",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	intent, err := client.CreateIntent(context.Background(), 249900, "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", intent.ProviderOrderID)
	assert.Equal(t, int64(249900), intent.AmountCents)
}

func TestCreateIntentProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.CreateIntent(context.Background(), 100, "rcpt_2")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	client := testClient(t, "http://localhost:0")
	_, err := client.CreateIntent(context.Background(), 0, "rcpt_3")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestVerifySignature(t *testing.T) {
	client := testClient(t, "http://localhost:0")

	mac := hmac.New(sha256.New, []byte("secret_test"))
	mac.Write([]byte("order_abc|pay_xyz"))
	signature := hex.EncodeToString(mac.Sum(nil))

	err := client.VerifySignature(Confirmation{
		ProviderOrderID:   "order_abc",
		ProviderPaymentID: "pay_xyz",
		Signature:         signature,
	})
	assert.NoError(t, err)

	err = client.VerifySignature(Confirmation{
		ProviderOrderID:   "order_abc",
		ProviderPaymentID: "pay_xyz",
		Signature:         "deadbeef",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePaymentVerification))

	err = client.VerifySignature(Confirmation{ProviderOrderID: "order_abc"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePaymentVerification))
}
