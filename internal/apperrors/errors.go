package apperrors

import (
	"errors"
)

var (
	// Local preconditions: resolved before any provider call is made
	ErrInvalidRequest    = errors.New("purchase request is invalid")
	ErrMissingCredential = errors.New("provider credential is not configured")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrBalanceInsufficient = errors.New("insufficient balance")

	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation hold expired")

	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrPurchaseAlreadyExists = errors.New("purchase with this reference already exists")
)
