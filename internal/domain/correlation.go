package domain

import (
	"strings"

	"github.com/google/uuid"
)

// CorrelationKind tells which aggregate a gateway correlation id points at.
type CorrelationKind string

const (
	CorrelationOrder      CorrelationKind = "ord"
	CorrelationDeposit    CorrelationKind = "dep"
	CorrelationWithdrawal CorrelationKind = "wd"
)

func NewCorrelationID(kind CorrelationKind) string {
	return string(kind) + "_" + uuid.NewString()
}

// ParseCorrelationKind returns the kind encoded in a correlation id.
func ParseCorrelationKind(id string) (CorrelationKind, bool) {
	prefix, rest, ok := strings.Cut(id, "_")
	if !ok || rest == "" {
		return "", false
	}
	switch k := CorrelationKind(prefix); k {
	case CorrelationOrder, CorrelationDeposit, CorrelationWithdrawal:
		if _, err := uuid.Parse(rest); err != nil {
			return "", false
		}
		return k, true
	}
	return "", false
}

func NewID() string { return uuid.NewString() }
