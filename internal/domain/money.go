package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePrice converts user-supplied price text (in whole currency units,
// e.g. "3.50") to int64 cents. It returns a BadInputError when the text
// is not a number, is negative, or carries more than 2 decimal places.
func ParsePrice(text string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, &BadInputError{Message: "expected price, found " + text}
	}
	if f < 0 {
		return 0, &BadInputError{Message: "price must not be negative: " + text}
	}
	// Bound well below int64 cents overflow.
	if f > 1e15 {
		return 0, &BadInputError{Message: "price out of range: " + text}
	}
	cents, err := DollarsToCents(f)
	if err != nil {
		return 0, &BadInputError{Message: err.Error()}
	}
	return cents, nil
}

// DollarsToCents converts a float64 currency amount to int64 cents.
// It validates that the input has at most 2 decimal places. Uses
// math.Round after multiplying by 100 to handle floating-point
// representation issues.
func DollarsToCents(f float64) (int64, error) {
	// Multiply by 1000 to check for a third decimal place.
	// Round to avoid floating-point artifacts (e.g., 1.10 * 1000 = 1099.9999...).
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}

	cents := math.Round(f * 100)
	return int64(cents), nil
}

// CentsToDollars converts an int64 cents value to a float64 amount.
func CentsToDollars(c int64) float64 {
	return float64(c) / 100.0
}

// FormatCents renders a cent amount the way the shop displays prices.
func FormatCents(c int64) string {
	return strconv.FormatFloat(CentsToDollars(c), 'f', 2, 64)
}
