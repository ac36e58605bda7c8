package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"
)

var errInvalidAmount = errors.New("invalid amount")

// scaleAmount converts a decimal UI amount such as "12.5" into base units of
// a mint with the given decimals. Results beyond uint64 saturate at
// math.MaxUint64; digits past the mint precision are rejected.
func scaleAmount(value string, decimals uint8) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: --amount is required", errInvalidAmount)
	}
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, fmt.Errorf("%w: %q", errInvalidAmount, value)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", errInvalidAmount, value, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return 0, fmt.Errorf("%w: amount must be positive", errInvalidAmount)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", errInvalidAmount, value)
		}
	}
	if len(digits) > 78 {
		return math.MaxUint64, nil
	}
	n, err := uint256.FromDecimal(digits)
	if err != nil {
		return math.MaxUint64, nil
	}
	if !n.IsUint64() {
		return math.MaxUint64, nil
	}
	return n.Uint64(), nil
}
