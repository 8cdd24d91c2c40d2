// Package services provides external service integrations and technical concerns like signing, queuing, and delivery
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerSign(t *testing.T) {
	signer := NewSigner()

	t.Run("DeterministicDigest", func(t *testing.T) {
		fields := map[string]string{
			"click_id":     "abc123",
			"offer_id":     "42",
			"affiliate_id": "7",
		}

		first := signer.Sign(fields, "secret")
		second := signer.Sign(fields, "secret")
		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", first)
	})

	t.Run("KeyOrderIndependent", func(t *testing.T) {
		// Maps iterate in random order; the canonical sort must make
		// the digest stable regardless
		a := signer.Sign(map[string]string{"b": "2", "a": "1", "c": "3"}, "secret")
		b := signer.Sign(map[string]string{"c": "3", "a": "1", "b": "2"}, "secret")
		assert.Equal(t, a, b)
	})

	t.Run("DifferentSecretsDiffer", func(t *testing.T) {
		fields := map[string]string{"click_id": "abc123"}
		assert.NotEqual(t, signer.Sign(fields, "secret-one"), signer.Sign(fields, "secret-two"))
	})

	t.Run("FieldSetBindsDigest", func(t *testing.T) {
		base := map[string]string{"click_id": "abc123", "transaction_id": "tx-1"}
		extended := map[string]string{"click_id": "abc123", "transaction_id": "tx-1", "payout": "1.50"}
		assert.NotEqual(t, signer.Sign(base, "secret"), signer.Sign(extended, "secret"))
	})

	t.Run("ValueChangeChangesDigest", func(t *testing.T) {
		a := signer.Sign(map[string]string{"click_id": "abc123", "transaction_id": "tx-1"}, "secret")
		b := signer.Sign(map[string]string{"click_id": "abc123", "transaction_id": "tx-2"}, "secret")
		assert.NotEqual(t, a, b)
	})
}

func TestSignerVerify(t *testing.T) {
	signer := NewSigner()
	fields := map[string]string{
		"click_id":       "abc123",
		"transaction_id": "tx-900",
	}

	t.Run("RoundTrip", func(t *testing.T) {
		sig := signer.Sign(fields, "secret")
		assert.True(t, signer.Verify(fields, sig, "secret"))
	})

	t.Run("TamperedSignatureFails", func(t *testing.T) {
		sig := signer.Sign(fields, "secret")
		require.NotEmpty(t, sig)

		flipped := []byte(sig)
		if flipped[0] == 'a' {
			flipped[0] = 'b'
		} else {
			flipped[0] = 'a'
		}
		assert.False(t, signer.Verify(fields, string(flipped), "secret"))
	})

	t.Run("WrongSecretFails", func(t *testing.T) {
		sig := signer.Sign(fields, "secret")
		assert.False(t, signer.Verify(fields, sig, "other-secret"))
	})

	t.Run("EmptySignatureFails", func(t *testing.T) {
		assert.False(t, signer.Verify(fields, "", "secret"))
	})
}
