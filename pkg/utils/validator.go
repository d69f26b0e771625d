package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// MaxEntryAmount caps a single claimed expense line
var MaxEntryAmount = decimal.NewFromInt(1000000)

// NormalizeCode trims an employee or approver code
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// ValidateAmount validates a claimed or edited amount
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %s", amount.StringFixed(2))
	}

	if amount.GreaterThan(MaxEntryAmount) {
		return fmt.Errorf("amount exceeds maximum limit: %s", amount.StringFixed(2))
	}

	return nil
}

// ValidateDate validates a YYYY-MM-DD expense date
func ValidateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %q", date)
	}
	return nil
}

// SanitizeString trims s and removes control characters
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
