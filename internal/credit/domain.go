package credit

import (
	"errors"
	"time"
)

// Customer carries the credit account state the ledger mutates. CreditSpend
// accumulates what has been bought on credit; CreditBalance is what remains
// owed. Both stay non-negative.
type Customer struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	CreditLimit     float64    `json:"credit_limit"`
	CreditSpend     float64    `json:"credit_spend"`
	CreditBalance   float64    `json:"credit_balance"`
	CreditExpiresAt *time.Time `json:"credit_expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CanPurchase reports whether new credit may be extended. An expired credit
// period blocks further credit sales regardless of how much limit remains.
func (c Customer) CanPurchase(now time.Time) bool {
	if c.CreditExpiresAt == nil {
		return true
	}
	return !c.CreditExpiresAt.Before(now)
}

// ErrCreditPeriodExpired rejects credit purchases after the credit period end.
var ErrCreditPeriodExpired = errors.New("credit: credit period expired")

// ErrSettlementExceedsBalance rejects settling more than is owed.
var ErrSettlementExceedsBalance = errors.New("credit: settlement exceeds outstanding balance")

// ErrInvalidAmount indicates a non-positive amount.
var ErrInvalidAmount = errors.New("credit: amount must be positive")
