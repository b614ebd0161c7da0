package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateAmount validates an expense amount against an upper bound.
// A zero max disables the bound.
func ValidateAmount(amount, max decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %s", amount)
	}
	if max.IsPositive() && amount.GreaterThan(max) {
		return fmt.Errorf("amount exceeds maximum limit of %s: %s", max, amount)
	}
	return nil
}

// ValidateCurrency validates an upper-case ISO 4217 style code
func ValidateCurrency(code string) error {
	if !currencyRegex.MatchString(code) {
		return fmt.Errorf("currency must be a three-letter code: %q", code)
	}
	return nil
}

// ValidateExpenseDate rejects missing dates and dates after today. The date
// is a calendar date read in its own location; today is read in now's.
func ValidateExpenseDate(date, now time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if calendarDay(date).After(calendarDay(now)) {
		return fmt.Errorf("date cannot be in the future: %s", date.Format("2006-01-02"))
	}
	return nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
