package models

import (
	"github.com/shopspring/decimal"
)

// DataPlan is read-only catalogue data fetched from the provider
type DataPlan struct {
	ID        string
	NetworkID string
	Label     string
	Price     decimal.Decimal
}
