package mysql

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/security"
	"encoding/json"
	"errors"
	"fmt"
)

var errNoSealer = errors.New("payout details present but no sealer configured")

// detailsCodec is the only place withdrawal details cross the persistence
// edge: they are sealed on write and opened on read.
type detailsCodec struct {
	sealer security.Sealer
}

func (c detailsCodec) seal(t *domain.Transaction) error {
	if t.WithdrawalDetails == nil {
		t.SealedDetails = nil
		return nil
	}
	if c.sealer == nil {
		return errNoSealer
	}
	raw, err := json.Marshal(t.WithdrawalDetails)
	if err != nil {
		return fmt.Errorf("marshal payout details: %w", err)
	}
	sealed, err := c.sealer.Seal(raw)
	if err != nil {
		return fmt.Errorf("seal payout details: %w", err)
	}
	t.SealedDetails = sealed
	return nil
}

func (c detailsCodec) open(t *domain.Transaction) error {
	if len(t.SealedDetails) == 0 {
		return nil
	}
	if c.sealer == nil {
		return errNoSealer
	}
	raw, err := c.sealer.Open(t.SealedDetails)
	if err != nil {
		return fmt.Errorf("open payout details of %s: %w", t.ID, err)
	}
	var d domain.PayoutDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("unmarshal payout details: %w", err)
	}
	t.WithdrawalDetails = &d
	t.SealedDetails = nil
	return nil
}
