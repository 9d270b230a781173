package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const SignatureField = "signature"

// Signer computes and checks HMAC-SHA256 signatures with the merchant secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Canonical joins every field except the signature as k=v pairs sorted by key.
func Canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

func (s *Signer) SignBytes(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) SignFields(fields map[string]string) string {
	return s.SignBytes([]byte(Canonical(fields)))
}

// VerifyBytes compares in constant time. Malformed hex is just a mismatch.
func (s *Signer) VerifyBytes(payload []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(s.SignBytes(payload))
	return hmac.Equal(got, want)
}

func (s *Signer) VerifyFields(fields map[string]string, signature string) bool {
	return s.VerifyBytes([]byte(Canonical(fields)), signature)
}
