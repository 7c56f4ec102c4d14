// Package cardgen generates card numbers and expiry dates for issuance.
package cardgen

import (
	"crypto/rand"
	"time"
)

// NumberLen is the length of a generated card number.
const NumberLen = 16

// Number returns a random 16-digit card number string.
func Number() (string, error) {
	b := make([]byte, NumberLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	digits := make([]byte, NumberLen)
	for i, v := range b {
		digits[i] = '0' + v%10
	}
	return string(digits), nil
}

// ExpiryDate returns the card expiry for an issue date: three years
// out, rounded to the last day of that month. The issue day is
// ignored, so a Feb 29 issue date cannot spill into March.
func ExpiryDate(issued time.Time) time.Time {
	y, m, _ := issued.Date()
	// day 0 of the next month is the last day of the target month
	return time.Date(y+3, m+1, 0, 0, 0, 0, 0, time.UTC)
}
