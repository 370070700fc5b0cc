// Package money implements the Money value object: a non-negative integer
// amount in the smallest unit of a currency, paired with an ISO-4217 code.
package money

import (
	"fmt"
	"regexp"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Money is an amount in minor units (e.g. cents) of a currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New validates amount and currency and returns a Money value.
// amount must be a non-negative integer (I1); currency must be three
// uppercase letters (I2).
func New(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, fmt.Errorf("money: amount must be non-negative, got %d", amount)
	}
	if !currencyPattern.MatchString(currency) {
		return Money{}, fmt.Errorf("money: currency must be 3 uppercase letters, got %q", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Equal reports whether two Money values represent the same amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
