// internal/signature/signature.go
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Verifier checks webhook signatures: an HMAC-SHA256 over the raw request
// body keyed with a shared secret, transmitted hex- or base64-encoded.
type Verifier struct {
	secret []byte
}

func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify reports whether provided matches the expected signature of body.
// It must be called with the exact bytes that will later be parsed.
// Missing or undecodable signatures fail the same way as wrong ones, and
// the comparison runs in constant time.
func (v *Verifier) Verify(body []byte, provided string) bool {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	if decoded, err := hex.DecodeString(provided); err == nil {
		return hmac.Equal(decoded, expected)
	}
	if decoded, err := base64.StdEncoding.DecodeString(provided); err == nil {
		return hmac.Equal(decoded, expected)
	}
	return false
}
