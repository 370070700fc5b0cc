package paystack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"payhook.dev/ledger/internal/domain/entities"
	"payhook.dev/ledger/internal/providers/paystack"
	"payhook.dev/ledger/pkg/crypto"
)

func TestAdapter_VerifySignature(t *testing.T) {
	a := paystack.New()
	body := []byte(`{"event":"charge.success","data":{"id":1,"reference":"ref1","amount":5000,"currency":"NGN"}}`)
	sig := crypto.HMACSHA512Hex([]byte("whsec_1"), body)

	assert.True(t, a.VerifySignature(body, map[string]string{"x-paystack-signature": sig}, []string{"whsec_1"}))
	assert.False(t, a.VerifySignature(body, map[string]string{"x-paystack-signature": "bad"}, []string{"whsec_1"}))
	assert.False(t, a.VerifySignature(body, map[string]string{}, []string{"whsec_1"}))
	assert.True(t, a.VerifySignature(body, map[string]string{"x-paystack-signature": sig}, []string{"whsec_2", "whsec_1"}))
}

func TestAdapter_ParseAndNormalize_ChargeSuccess(t *testing.T) {
	a := paystack.New()
	body := []byte(`{"event":"charge.success","data":{"id":42,"reference":"ref1","amount":5000,"currency":"NGN","customer":{"email":"a@b.com"}}}`)

	parsed, err := a.ParsePayload(body)
	assert.NoError(t, err)

	normalized, err := a.Normalize(parsed)
	assert.NoError(t, err)
	assert.Equal(t, entities.EventPaymentSuccessful, normalized.EventType)
	assert.Equal(t, "ref1", normalized.ProviderRef)
	assert.Equal(t, int64(5000), normalized.Money.Amount)
	assert.Equal(t, "NGN", normalized.Money.Currency)
	assert.Equal(t, "a@b.com", normalized.CustomerEmail)
}

func TestAdapter_Normalize_UnsupportedEvent(t *testing.T) {
	a := paystack.New()
	body := []byte(`{"event":"subscription.create","data":{}}`)
	parsed, err := a.ParsePayload(body)
	assert.NoError(t, err)

	_, err = a.Normalize(parsed)
	assert.Error(t, err)
}

func TestAdapter_Normalize_DisputeResolved_MapsOutcome(t *testing.T) {
	a := paystack.New()
	body := []byte(`{"event":"charge.dispute.resolve","data":{"id":1,"reference":"ref1","amount":100,"currency":"NGN","resolution":"declined"}}`)
	parsed, err := a.ParsePayload(body)
	assert.NoError(t, err)

	normalized, err := a.Normalize(parsed)
	assert.NoError(t, err)
	assert.Equal(t, entities.EventDisputeResolved, normalized.EventType)
	assert.Equal(t, "won", normalized.ProviderMetadata["disputeOutcome"])
}

func TestAdapter_ParsePayload_InvalidJSON(t *testing.T) {
	a := paystack.New()
	_, err := a.ParsePayload([]byte("{"))
	assert.Error(t, err)
}

func TestAdapter_Normalize_RefundAmountDecidesPartialFlag(t *testing.T) {
	a := paystack.New()

	full := []byte(`{"event":"refund.processed","data":{"id":7,"reference":"ref1","amount":5000,"currency":"NGN","transaction":{"amount":5000}}}`)
	parsed, err := a.ParsePayload(full)
	assert.NoError(t, err)
	normalized, err := a.Normalize(parsed)
	assert.NoError(t, err)
	assert.Equal(t, false, normalized.ProviderMetadata["partialRefund"])

	partial := []byte(`{"event":"refund.processed","data":{"id":8,"reference":"ref2","amount":2000,"currency":"NGN","transaction":{"amount":5000}}}`)
	parsed, err = a.ParsePayload(partial)
	assert.NoError(t, err)
	normalized, err = a.Normalize(parsed)
	assert.NoError(t, err)
	assert.Equal(t, true, normalized.ProviderMetadata["partialRefund"])
}
