// Package services provides external service integrations and technical concerns like signing, queuing, and delivery
package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Signer generates and verifies HMAC signatures over canonicalized parameter
// sets. The signature binds exactly the key set the caller passes: adding or
// removing a key yields a different digest, which is how each flow pins the
// parameters that matter to it (clicks sign {click_id, offer_id,
// affiliate_id}, postbacks sign {click_id, transaction_id}).
type Signer interface {
	Sign(fields map[string]string, secret string) string
	Verify(fields map[string]string, signature, secret string) bool
}

type hmacSigner struct{}

// NewSigner creates the HMAC-SHA256 signer used for click and postback signatures
func NewSigner() Signer {
	return &hmacSigner{}
}

// Sign serializes the field values sorted by key, joined with "|", and
// returns the hex HMAC-SHA256 digest keyed by secret.
func (s *hmacSigner) Sign(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, fields[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(values, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time
func (s *hmacSigner) Verify(fields map[string]string, signature, secret string) bool {
	expected := s.Sign(fields, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
