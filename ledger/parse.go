/*
parse.go - User input validation and normalization

PURPOSE:
  Every free-text value the bot accepts (name, phone, amount, days) passes
  through exactly one function here before it reaches a Store. Each function
  returns a *ValidationError on bad input so the conversation engine can
  re-prompt without ending the flow.

VALIDATION RULES:
  Name:   2..100 characters after trimming whitespace
  Phone:  spaces, dashes and parentheses stripped; the rest must be digits,
          optionally prefixed with a single +
  Amount: decimal with either . or , as the separator, strictly positive
  Days:   integer, strictly positive
*/
package ledger

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MinNameLen = 2
	MaxNameLen = 100
)

// ParseName trims the name and enforces the length bounds.
func ParseName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < MinNameLen {
		return "", &ValidationError{Field: "name", Reason: "too short"}
	}
	if n > MaxNameLen {
		return "", &ValidationError{Field: "name", Reason: "too long"}
	}
	return name, nil
}

// NormalizePhone strips spaces, dashes and parentheses, then checks that the
// remainder is digits with an optional leading +.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	if phone == "" {
		return "", &ValidationError{Field: "phone", Reason: "empty"}
	}
	digits := strings.TrimPrefix(phone, "+")
	if digits == "" {
		return "", &ValidationError{Field: "phone", Reason: "no digits"}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", &ValidationError{Field: "phone", Reason: "non-digit characters"}
		}
	}
	return phone, nil
}

// ParseAmount parses a positive decimal amount. A comma decimal separator is
// accepted ("1000,50" == "1000.50").
func ParseAmount(raw string) (decimal.Decimal, error) {
	text := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return amount, nil
}

// ParseDays parses a positive integer day count.
func ParseDays(raw string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: "days", Reason: "not an integer"}
	}
	if days <= 0 {
		return 0, &ValidationError{Field: "days", Reason: "must be positive"}
	}
	return days, nil
}
