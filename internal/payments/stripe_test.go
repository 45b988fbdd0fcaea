package payments

import (
	"regexp"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gibbarosa/storefront/pkg/errors"
)

const testSecret = "whsec_test"

var testPayload = []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":"2024-06-20","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)

func TestVerify_ValidSignature(t *testing.T) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   testPayload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})

	event, err := NewSignatureVerifier(testSecret).Verify(signed.Payload, signed.Header)

	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventTypePaymentIntentSucceeded, event.Type)
}

func TestVerify_MissingHeader(t *testing.T) {
	_, err := NewSignatureVerifier(testSecret).Verify(testPayload, "")

	require.Error(t, err)
	assert.True(t, apperrors.IsAuthenticity(err))
}

func TestVerify_WrongSecret(t *testing.T) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   testPayload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})

	_, err := NewSignatureVerifier(testSecret).Verify(signed.Payload, signed.Header)

	require.Error(t, err)
	assert.True(t, apperrors.IsAuthenticity(err))
}

func TestVerify_TamperedPayload(t *testing.T) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   testPayload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})

	tampered := append([]byte{}, signed.Payload...)
	tampered[len(tampered)-2] = ' '

	_, err := NewSignatureVerifier(testSecret).Verify(tampered, signed.Header)
	assert.True(t, apperrors.IsAuthenticity(err))
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent(testPayload)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)

	_, err = ParseEvent([]byte("{"))
	assert.Error(t, err)
}

func TestNewOrderNumber(t *testing.T) {
	now := time.UnixMilli(1718000123456)
	pattern := regexp.MustCompile(`^ORD-123456-\d{1,3}$`)

	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, NewOrderNumber(now))
	}
}

func TestFallbackOrderNumbers(t *testing.T) {
	now := time.UnixMilli(1718000123456)
	assert.Equal(t, "PI-1718000123456-wxyz", FallbackIntentOrderNumber(now, "pi_abcwxyz"))
	assert.Equal(t, "order-1718000123456", FallbackSessionOrderNumber(now))
}
