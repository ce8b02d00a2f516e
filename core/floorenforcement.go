package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 8 // 8 decimal places for ledger amounts (1e-8 precision)

// priceUnit is the smallest price step, so the admission threshold is the
// lowest price that strictly outranks the last leaderboard entry.
var priceUnit = decimal.New(1, -monetaryPrecision)

// PriceMeetsFloor returns true if the price meets or exceeds the floor price.
func PriceMeetsFloor(price, floor decimal.Decimal) bool {
	return price.GreaterThanOrEqual(floor)
}

// validateAmount rejects non-positive amounts and amounts finer than monetaryPrecision.
func validateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidInput, field, amount)
	}
	if !amount.Equal(amount.Truncate(monetaryPrecision)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidInput, field, monetaryPrecision)
	}
	return nil
}
