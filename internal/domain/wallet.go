package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}

// MoneyScale is the number of fractional digits stored for balances, amounts and fees.
const MoneyScale = 4

// MaxMoney is the largest value a NUMERIC(20,4) column holds: 16 integer digits.
var MaxMoney = decimal.RequireFromString("9999999999999999.9999")

// WithinMoneyRange reports whether d fits the storage precision for money.
func WithinMoneyRange(d decimal.Decimal) bool {
	return d.LessThanOrEqual(MaxMoney) && d.Equal(d.Round(MoneyScale))
}

type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   decimal.Decimal
	Currency  Currency
	Version   int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasFunds reports whether the wallet can be debited by amount without going negative.
func (w *Wallet) HasFunds(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
