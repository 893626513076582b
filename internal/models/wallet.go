package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ReservationHeld      = "HELD"
	ReservationCommitted = "COMMITTED"
	ReservationReleased  = "RELEASED"
)

// Wallet keeps user funds in the smallest currency unit.
// Main is the only spendable component; cashback and referral are
// credited upstream and refreshed by reconciliation.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Main      decimal.Decimal
	Cashback  decimal.Decimal
	Referral  decimal.Decimal
	UpdatedAt time.Time
}

func (w Wallet) Total() decimal.Decimal {
	return w.Main.Add(w.Cashback).Add(w.Referral)
}

// WalletSnapshot is the authoritative upstream view of a wallet
type WalletSnapshot struct {
	Main     decimal.Decimal
	Cashback decimal.Decimal
	Referral decimal.Decimal
}

// Reservation is a tentative debit held against a wallet until the
// purchase it backs is confirmed (commit) or reversed (release)
type Reservation struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PurchaseRef string
	Amount      decimal.Decimal
	Status      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
