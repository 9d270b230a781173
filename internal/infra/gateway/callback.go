package gateway

import (
	"bytes"
	"checkout-service/internal/domain"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusPending Status = "PENDING"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusSuccess, StatusFailure, StatusPending:
		return st, true
	}
	return "", false
}

// PaymentCallback is a verified payment webhook.
type PaymentCallback struct {
	CorrelationID string
	Status        Status
	TxnID         string
	Mode          string
	Amount        *decimal.Decimal
	Raw           string
}

// PayoutCallback is a verified payouts webhook.
type PayoutCallback struct {
	PayoutID      string
	CorrelationID string
	Status        Status
	Reason        string
	Raw           string
}

// ParsePaymentCallback checks the signature before looking at any other
// field. A bad signature never says what was wrong with it.
func (s *Signer) ParsePaymentCallback(form url.Values) (*PaymentCallback, error) {
	fields := make(map[string]string, len(form))
	for k := range form {
		fields[k] = form.Get(k)
	}
	if !s.VerifyFields(fields, fields[SignatureField]) {
		return nil, domain.SignatureInvalid()
	}

	cb := &PaymentCallback{
		CorrelationID: fields["correlation_id"],
		TxnID:         fields["txn_id"],
		Mode:          fields["mode"],
		Raw:           Canonical(fields),
	}
	if cb.CorrelationID == "" {
		return nil, domain.Validation("correlation_id is required")
	}
	st, ok := ParseStatus(fields["status"])
	if !ok {
		return nil, domain.Validation("unknown payment status %q", fields["status"])
	}
	cb.Status = st
	if raw := fields["amount"]; raw != "" {
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, domain.Validation("malformed amount")
		}
		cb.Amount = &amt
	}
	return cb, nil
}

// ParsePayoutCallback accepts the signature in the X-Signature header (over
// the raw body) or in a body field (over the canonical string of the other
// top-level fields).
func (s *Signer) ParsePayoutCallback(body []byte, headerSignature string) (*PayoutCallback, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.SignatureInvalid()
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if str, ok := v.(string); ok {
			fields[k] = str
			continue
		}
		fields[k] = fmt.Sprint(v)
	}

	verified := false
	if headerSignature != "" {
		verified = s.VerifyBytes(body, headerSignature)
	} else if sig := fields[SignatureField]; sig != "" {
		verified = s.VerifyFields(fields, sig)
	}
	if !verified {
		return nil, domain.SignatureInvalid()
	}

	cb := &PayoutCallback{
		PayoutID:      fields["payoutId"],
		CorrelationID: fields["correlationId"],
		Reason:        fields["reason"],
		Raw:           string(body),
	}
	if cb.PayoutID == "" && cb.CorrelationID == "" {
		return nil, domain.Validation("payoutId or correlationId is required")
	}
	st, ok := ParseStatus(fields["status"])
	if !ok {
		return nil, domain.Validation("unknown payout status %q", fields["status"])
	}
	cb.Status = st
	return cb, nil
}
