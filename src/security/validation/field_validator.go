package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxCurrencyCodeLength  = 3
	MaxDescriptionLength   = 255
	MaxNotesLength         = 1024
)

var currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateCurrencyCode checks an ISO 4217-style three-letter currency code.
// Empty is allowed; currency is optional on transactions.
func ValidateCurrencyCode(s string) error {
	if s == "" {
		return nil
	}
	if !currencyCodeRegex.MatchString(s) {
		return fmt.Errorf("%w: currency must be a 3-letter uppercase code", ErrValidationFailed)
	}
	return nil
}

// ValidateDate checks a YYYY-MM-DD date string.
func ValidateDate(s, fieldName string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("%w: %s must be a valid YYYY-MM-DD date", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidatePositiveAmount checks that a monetary amount is strictly positive.
func ValidatePositiveAmount(amount decimal.Decimal, fieldName string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateIPAddress checks that a string parses as an IPv4 or IPv6 address.
func ValidateIPAddress(s string) error {
	if net.ParseIP(strings.TrimSpace(s)) == nil {
		return fmt.Errorf("%w: '%s' is not a valid IP address", ErrValidationFailed, s)
	}
	return nil
}
