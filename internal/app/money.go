package app

import (
	"math"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

const (
	// maxResalePercent caps a resale price relative to the original purchase price.
	maxResalePercent = 150
	// royaltyPercent of every resale goes to the royalty beneficiary.
	royaltyPercent = 10
)

// ResalePriceCap returns floor(purchasePrice × 1.5).
func ResalePriceCap(purchasePrice domain.Amount) domain.Amount {
	return percentOf(purchasePrice, maxResalePercent)
}

// Royalty returns floor(price × 10%).
func Royalty(price domain.Amount) domain.Amount {
	return percentOf(price, royaltyPercent)
}

// percentOf computes floor(amount × pct / 100) for non-negative inputs
// without overflowing the intermediate product. Results that do not fit
// saturate at math.MaxInt64.
func percentOf(amount domain.Amount, pct int64) domain.Amount {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	q, r := int64(amount)/100, int64(amount)%100
	if q > math.MaxInt64/pct {
		return math.MaxInt64
	}
	whole, frac := q*pct, r*pct/100
	if whole > math.MaxInt64-frac {
		return math.MaxInt64
	}
	return domain.Amount(whole + frac)
}
