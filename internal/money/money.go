// Package money converts between display-formatted Brazilian Real strings
// and integer centavos. In the display convention "." separates thousands
// and "," marks the decimal: "R$ 1.234,56" is 123456 centavos.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed monetary input. It is recoverable: the
// caller surfaces it as a field-level validation message.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid monetary value %q", e.Input)
}

// ParseBRL converts a display-formatted value to centavos. The currency
// symbol, spaces and thousands dots are stripped; at most two decimal digits
// follow the comma. Negative values are rejected.
func ParseBRL(input string) (int64, error) {
	v := strings.TrimSpace(input)
	v = strings.TrimPrefix(v, "R$")
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, ".", "")
	if v == "" {
		return 0, &ParseError{Input: input}
	}

	intPart := v
	fracPart := ""
	if idx := strings.Index(v, ","); idx >= 0 {
		intPart, fracPart = v[:idx], v[idx+1:]
		if strings.Contains(fracPart, ",") {
			return 0, &ParseError{Input: input}
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || len(fracPart) > 2 || (fracPart != "" && !isDigits(fracPart)) {
		return 0, &ParseError{Input: input}
	}

	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, &ParseError{Input: input}
	}

	cents := int64(0)
	if fracPart != "" {
		for len(fracPart) < 2 {
			fracPart += "0"
		}
		cents, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, &ParseError{Input: input}
		}
	}

	return units*100 + cents, nil
}

// FormatBRL renders centavos for display and CSV export, comma decimal
// marker, no thousands grouping.
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %d,%02d", sign, cents/100, cents%100)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
