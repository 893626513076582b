package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PurchaseKindAirtime = "airtime"
	PurchaseKindData    = "data"
)

const (
	PurchasePending   = "PENDING"
	PurchaseSuccess   = "SUCCESS"
	PurchaseFailed    = "FAILED"
	PurchaseAmbiguous = "AMBIGUOUS"
)

// Purchase is a single user-initiated purchase attempt.
// Ref is issued exactly once per attempt and reused verbatim on every
// retry or reconciliation call, so the provider can deduplicate.
type Purchase struct {
	ID     uuid.UUID
	Ref    string
	UserID uuid.UUID
	Kind   string

	Phone     string
	ServiceID string          // airtime service identifier
	NetworkID string          // data network identifier
	Amount    decimal.Decimal // airtime amount or plan price
	PlanID    string          // data plan identifier

	Status        string
	ProviderRef   *string
	FailureReason *string

	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Terminal reports whether the purchase reached a final outcome
func (p Purchase) Terminal() bool {
	return p.Status == PurchaseSuccess || p.Status == PurchaseFailed
}
